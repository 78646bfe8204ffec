package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRecomputeDailyStats = "2026-08-14_recompute_daily_stats"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRecomputeDailyStats, apply: recomputeDailyStats},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// recomputeDailyStats rebuilds every stats projection from the click-event
// log. The log is the unit of truth; projections that drifted in earlier
// deployments are repaired in place.
func recomputeDailyStats(db *gorm.DB) error {
	const rebuild = `
UPDATE daily_stats SET
  total_clicks = (
    SELECT COUNT(*) FROM click_events
    WHERE click_events.epoch_id = daily_stats.epoch_id),
  community_score = (
    SELECT COALESCE(SUM(points_awarded), 0) FROM click_events
    WHERE click_events.epoch_id = daily_stats.epoch_id),
  unique_players = (
    SELECT COUNT(DISTINCT user_id) FROM click_events
    WHERE click_events.epoch_id = daily_stats.epoch_id);`
	return db.Exec(rebuild).Error
}
