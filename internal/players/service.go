package players

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxDisplayNameLength   = 64
	displayNamePrefixChars = 8
)

// ErrUnknownPlayer indicates the user id has no identity row.
var ErrUnknownPlayer = errors.New("players: unknown player")

// ServiceConfig describes the dependencies required for player identity management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service issues and tracks anonymous player identities.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("players: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:    cfg.Database,
		now:   clock,
		cache: sync.Map{},
	}, nil
}

// Register creates a fresh anonymous identity. When no display name is
// supplied, a short prefix of the issued id stands in, the way the
// leaderboard truncates raw ids.
func (s *Service) Register(displayName string) (Identity, error) {
	issued, err := uuid.NewV7()
	if err != nil {
		return Identity{}, err
	}
	userID := issued.String()

	name := normalize(displayName)
	if name == "" {
		name = userID[:displayNamePrefixChars]
	}
	if len(name) > maxDisplayNameLength {
		name = name[:maxDisplayNameLength]
	}

	identity := Identity{
		UserID:      userID,
		DisplayName: name,
		LastSeenAt:  s.now(),
	}
	if err := s.db.Create(&identity).Error; err != nil {
		return Identity{}, err
	}

	s.cache.Store(userID, identity.DisplayName)
	return identity, nil
}

// Lookup returns the identity for a user id.
func (s *Service) Lookup(userID string) (Identity, error) {
	trimmed := normalize(userID)
	if trimmed == "" {
		return Identity{}, ErrUnknownPlayer
	}

	var identity Identity
	err := s.db.Where("user_id = ?", trimmed).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, ErrUnknownPlayer
	}
	if err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// DisplayName resolves a display name for leaderboard rendering, falling
// back to a truncated id for users without an identity row.
func (s *Service) DisplayName(userID string) string {
	if cached, ok := s.cache.Load(userID); ok {
		if name, ok := cached.(string); ok {
			return name
		}
	}

	identity, err := s.Lookup(userID)
	if err != nil {
		if len(userID) > displayNamePrefixChars {
			return userID[:displayNamePrefixChars]
		}
		return userID
	}

	s.cache.Store(userID, identity.DisplayName)
	return identity.DisplayName
}

// Touch records activity for the player.
func (s *Service) Touch(userID string) error {
	trimmed := normalize(userID)
	if trimmed == "" {
		return ErrUnknownPlayer
	}
	return s.db.Model(&Identity{}).
		Where("user_id = ?", trimmed).
		Update("last_seen_at", s.now()).
		Error
}
