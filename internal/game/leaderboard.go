package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Window selects which slice of the click-event history a leaderboard
// aggregates over.
type Window string

const (
	// WindowDay covers the active epoch only.
	WindowDay Window = "day"
	// WindowWeek covers the trailing seven epochs, the active one included.
	WindowWeek Window = "week"
	// WindowAll covers the entire event log.
	WindowAll Window = "all"
)

const defaultLeaderboardLimit = 10

// ErrInvalidWindow indicates an unrecognized leaderboard window.
var ErrInvalidWindow = errors.New("game: invalid leaderboard window")

// ParseWindow validates raw input, defaulting the empty string to the
// active epoch.
func ParseWindow(rawInput string) (Window, error) {
	switch Window(strings.TrimSpace(rawInput)) {
	case "", WindowDay:
		return WindowDay, nil
	case WindowWeek:
		return WindowWeek, nil
	case WindowAll:
		return WindowAll, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWindow, rawInput)
	}
}

// Leaderboard derives ranked standings from the click-event log. Ordering
// is clicks descending, ties broken by the earliest first click within the
// window, then by user id so the order is total. Purely a projection: it
// reads only click_events and can be re-derived at any time.
func (s *Service) Leaderboard(ctx context.Context, window Window, limit int) ([]PlayerAggregate, error) {
	epochID, err := s.ensureEpoch(ctx)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	query := s.db.WithContext(ctx).Model(&ClickEvent{})
	switch window {
	case WindowDay:
		query = query.Where("epoch_id = ?", epochID.String())
	case WindowWeek:
		from, err := epochOffset(epochID, 6)
		if err != nil {
			s.logError(opLeaderboard, "window_bounds_failed", err, zap.String("epoch_id", epochID.String()))
			return nil, newServiceError(opLeaderboard, "window_bounds_failed", err)
		}
		query = query.Where("epoch_id BETWEEN ? AND ?", from.String(), epochID.String())
	case WindowAll:
		// No filter: all epochs, archived included.
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidWindow, window)
	}

	type aggregateRow struct {
		UserID        string  `gorm:"column:user_id"`
		Clicks        int64   `gorm:"column:clicks"`
		Score         float64 `gorm:"column:score"`
		FirstClickSec int64   `gorm:"column:first_click_s"`
	}

	var rows []aggregateRow
	if err := query.
		Select("user_id, COUNT(*) AS clicks, SUM(points_awarded) AS score, MIN(occurred_at_s) AS first_click_s").
		Group("user_id").
		Order("clicks DESC, first_click_s ASC, user_id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		s.logError(opLeaderboard, "aggregate_failed", err, zap.String("window", string(window)))
		return nil, newServiceError(opLeaderboard, "aggregate_failed", err)
	}

	standings := make([]PlayerAggregate, 0, len(rows))
	for index, row := range rows {
		standings = append(standings, PlayerAggregate{
			Rank:         index + 1,
			UserID:       UserID(row.UserID),
			Clicks:       row.Clicks,
			Score:        row.Score,
			FirstClickAt: time.Unix(row.FirstClickSec, 0).UTC(),
		})
	}
	return standings, nil
}
