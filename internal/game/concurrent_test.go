package game

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Concurrent vote submissions from the same user: exactly one wins,
// regardless of interleaving.
func TestConcurrentVotesSameUser(t *testing.T) {
	service, db, _ := newTestService(t, testEpochStart)
	userID := mustUserID(t, "u1")

	const attempts = 16
	var accepted atomic.Int32
	var rejected atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.SubmitVote(context.Background(), userID, OptionLimitClicks)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ErrAlreadyVoted):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != 1 {
		t.Fatalf("expected exactly 1 accepted vote, got %d", accepted.Load())
	}
	if rejected.Load() != attempts-1 {
		t.Fatalf("expected %d rejections, got %d", attempts-1, rejected.Load())
	}

	var count int64
	if err := db.Model(&Vote{}).Count(&count).Error; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single persisted vote, got %d", count)
	}
}

// Concurrent clicks against a capped epoch: totals never pass the cap and
// accepted clicks match persisted events exactly.
func TestConcurrentClicksRespectCap(t *testing.T) {
	service, db, clock := newTestService(t, testEpochStart)
	ctx := context.Background()

	if _, err := service.SubmitVote(ctx, mustUserID(t, "voter"), OptionLimitClicks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(24 * time.Hour)
	epochID, cfg, err := service.ActiveConfig(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ClickCap == nil {
		t.Fatalf("expected a capped config")
	}

	attempts := int(*cfg.ClickCap) + 10
	var accepted atomic.Int64
	var capped atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(workerIdx int) {
			defer wg.Done()
			userID := mustUserID(t, "player-"+string(rune('a'+workerIdx%8)))
			_, err := service.RecordClick(ctx, userID)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ErrCapReached):
				capped.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if accepted.Load() != *cfg.ClickCap {
		t.Fatalf("expected %d accepted clicks, got %d", *cfg.ClickCap, accepted.Load())
	}
	if capped.Load() != int64(attempts)-*cfg.ClickCap {
		t.Fatalf("expected %d cap rejections, got %d", int64(attempts)-*cfg.ClickCap, capped.Load())
	}

	stats, err := service.CurrentStats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalClicks != *cfg.ClickCap {
		t.Fatalf("stats must stop at the cap, got %d", stats.TotalClicks)
	}

	var events int64
	if err := db.Model(&ClickEvent{}).Where("epoch_id = ?", epochID.String()).Count(&events).Error; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events != *cfg.ClickCap {
		t.Fatalf("event log must match accepted clicks, got %d", events)
	}
}
