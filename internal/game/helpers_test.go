package game

import (
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDGenerator struct {
	mu     sync.Mutex
	prefix string
	index  int
}

func (g *staticIDGenerator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.index++
	return fmt.Sprintf("%s-%d", g.prefix, g.index), nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func (c *testClock) Set(instant time.Time) {
	c.now = instant
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Vote{}, &ClickEvent{}, &EpochConfig{}, &DailyStats{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestService(t *testing.T, start time.Time) (*Service, *gorm.DB, *testClock) {
	t.Helper()
	db := newTestDatabase(t)
	service, clock := newServiceOn(t, db, start)
	return service, db, clock
}

func newServiceOn(t *testing.T, db *gorm.DB, start time.Time) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{now: start}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: &staticIDGenerator{prefix: "click"},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service, clock
}

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}
