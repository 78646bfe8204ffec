package game

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("game: invalid user id")
	// ErrInvalidVoteOption indicates that a vote option is outside the fixed enumeration.
	ErrInvalidVoteOption = errors.New("game: invalid vote option")
	// ErrAlreadyVoted indicates the user already holds a vote for the epoch.
	ErrAlreadyVoted = errors.New("game: already voted this epoch")
	// ErrCapReached indicates the epoch's community click cap is exhausted.
	ErrCapReached = errors.New("game: click cap reached")
)

// EpochID identifies one calendar day (UTC) of play, formatted YYYY-MM-DD.
type EpochID string

// String returns the underlying date key.
func (id EpochID) String() string {
	return string(id)
}

// UserID represents a validated opaque player identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// VoteOption enumerates the rule changes the community can vote for.
// The declaration order is the fixed tie-break rank: when tallies tie,
// the lowest-ranked option among the tied ones wins.
type VoteOption string

const (
	OptionHelpCommunity VoteOption = "help_community"
	OptionMakeHarder    VoteOption = "make_harder"
	OptionLimitClicks   VoteOption = "limit_clicks"
)

// VoteOptions lists every option in tie-break rank order.
func VoteOptions() []VoteOption {
	return []VoteOption{OptionHelpCommunity, OptionMakeHarder, OptionLimitClicks}
}

// ParseVoteOption validates raw input against the enumeration.
func ParseVoteOption(rawInput string) (VoteOption, error) {
	candidate := VoteOption(strings.TrimSpace(rawInput))
	for _, option := range VoteOptions() {
		if candidate == option {
			return option, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidVoteOption, rawInput)
}

// Config carries the scoring rules active for one epoch. ClickCap is nil
// when the epoch places no community-wide limit on clicks.
type Config struct {
	Mode           VoteOption
	PointsPerClick float64
	ClickCap       *int64
	Description    string
}

// Vote records one user's choice for one epoch. The composite primary key
// is the write-time uniqueness constraint: one vote per (epoch, user).
type Vote struct {
	EpochID            string     `gorm:"column:epoch_id;primaryKey;size:10;not null"`
	UserID             string     `gorm:"column:user_id;primaryKey;size:190;not null"`
	Option             VoteOption `gorm:"column:option;size:32;not null"`
	SubmittedAtSeconds int64      `gorm:"column:submitted_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Vote) TableName() string {
	return "votes"
}

// ClickEvent is the append-only unit of truth for all aggregates.
type ClickEvent struct {
	ClickID           string  `gorm:"column:click_id;primaryKey;size:190;not null"`
	EpochID           string  `gorm:"column:epoch_id;size:10;not null;index:idx_clicks_epoch_user_time,priority:1"`
	UserID            string  `gorm:"column:user_id;size:190;not null;index:idx_clicks_epoch_user_time,priority:2"`
	OccurredAtSeconds int64   `gorm:"column:occurred_at_s;not null;index:idx_clicks_epoch_user_time,priority:3"`
	PointsAwarded     float64 `gorm:"column:points_awarded;not null"`
}

// TableName provides the explicit table binding for GORM.
func (ClickEvent) TableName() string {
	return "click_events"
}

// EpochConfig is the persisted Config for one epoch. Its existence is also
// the rollover idempotency marker: an epoch with a config row has already
// been entered.
type EpochConfig struct {
	EpochID          string     `gorm:"column:epoch_id;primaryKey;size:10;not null"`
	Mode             VoteOption `gorm:"column:mode;size:32;not null"`
	PointsPerClick   float64    `gorm:"column:points_per_click;not null"`
	ClickCap         *int64     `gorm:"column:click_cap"`
	Description      string     `gorm:"column:description;size:320;not null"`
	CreatedAtSeconds int64      `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (EpochConfig) TableName() string {
	return "epoch_configs"
}

// Config converts the stored row into the domain Config.
func (c EpochConfig) Config() Config {
	var clickCap *int64
	if c.ClickCap != nil {
		value := *c.ClickCap
		clickCap = &value
	}
	return Config{
		Mode:           c.Mode,
		PointsPerClick: c.PointsPerClick,
		ClickCap:       clickCap,
		Description:    c.Description,
	}
}

// DailyStats is the incrementally maintained projection of the epoch's
// click events. Mutable while the epoch is live, frozen at rollover.
type DailyStats struct {
	EpochID          string  `gorm:"column:epoch_id;primaryKey;size:10;not null"`
	TotalClicks      int64   `gorm:"column:total_clicks;not null;default:0"`
	CommunityScore   float64 `gorm:"column:community_score;not null;default:0"`
	UniquePlayers    int64   `gorm:"column:unique_players;not null;default:0"`
	Frozen           bool    `gorm:"column:frozen;not null;default:false"`
	UpdatedAtSeconds int64   `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (DailyStats) TableName() string {
	return "daily_stats"
}

// ClickOutcome reports the result of an accepted or cap-rejected click.
type ClickOutcome struct {
	EpochID        EpochID
	Accepted       bool
	CapReached     bool
	PointsAwarded  float64
	TotalClicks    int64
	CommunityScore float64
	UniquePlayers  int64
	NewPlayer      bool
	OccurredAt     time.Time
}

// PlayerAggregate is one leaderboard row, derived on demand from the
// click-event log. Never persisted.
type PlayerAggregate struct {
	Rank         int
	UserID       UserID
	Clicks       int64
	Score        float64
	FirstClickAt time.Time
}
