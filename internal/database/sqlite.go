package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"github.com/pushorpass/backend/internal/game"
	"github.com/pushorpass/backend/internal/players"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// A single connection keeps the uniqueness and cap transactions serialized
// at the store as well as in the service.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&game.Vote{},
		&game.ClickEvent{},
		&game.EpochConfig{},
		&game.DailyStats{},
		&players.Identity{},
		&migrationRecord{},
	); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}
