package players

import (
	"strings"
	"time"
)

// Identity is one registered player: an opaque server-issued user id and
// the display name shown on leaderboards. The game core never reads this
// table; it is presentation-side identity only.
type Identity struct {
	UserID      string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	DisplayName string    `gorm:"column:display_name;size:64;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at"`
}

// TableName exposes the table backing player identities.
func (Identity) TableName() string {
	return "player_identities"
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
