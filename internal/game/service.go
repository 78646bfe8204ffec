package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	// errEpochSuperseded marks a write that resolved an epoch which was
	// rolled over before the write transaction ran. Archived epochs are
	// immutable; the write is retried against the re-resolved epoch.
	errEpochSuperseded = errors.New("game: epoch superseded by rollover")
	noOpLogger         = zap.NewNop()
)

// ServiceError wraps a storage or wiring failure with a dotted
// operation.reason code for callers and logs.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "game.service.new"
	opEnsureEpoch  = "game.ensure_epoch"
	opSubmitVote   = "game.submit_vote"
	opRecordClick  = "game.record_click"
	opActiveConfig = "game.active_config"
	opDailyStats   = "game.daily_stats"
	opVoteTally    = "game.vote_tally"
	opHasVoted     = "game.has_voted"
	opLeaderboard  = "game.leaderboard"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues unique identifiers for click events.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig wires the epoch engine's dependencies.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service is the epoch state machine and aggregation engine. Every entry
// point first ensures the wall clock's epoch has been entered, so rollover
// happens lazily on the next request that crosses a boundary.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger

	// rolloverMu serializes the whole epoch transition and guards
	// activeEpoch, the last epoch this instance has entered.
	rolloverMu  sync.Mutex
	activeEpoch EpochID
}

// NewService validates dependencies and constructs the engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// ensureEpoch resolves the calling request's epoch, performing the rollover
// transition exactly once when the boundary has been crossed. A backward
// clock move keeps the already-active epoch.
func (s *Service) ensureEpoch(ctx context.Context) (EpochID, error) {
	now := s.clock().UTC()
	current := CurrentEpochID(now)

	s.rolloverMu.Lock()
	defer s.rolloverMu.Unlock()

	if s.activeEpoch != "" && !HasCrossedBoundary(s.activeEpoch, now) {
		return s.activeEpoch, nil
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing EpochConfig
		err := tx.Where("epoch_id = ?", current.String()).Take(&existing).Error
		if err == nil {
			// Another request (or instance) already entered this epoch.
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opEnsureEpoch, "config_select_failed", err)
		}
		return s.enterEpoch(tx, current, now)
	})
	if txErr != nil {
		s.logError(opEnsureEpoch, "rollover_failed", txErr, zap.String("epoch_id", current.String()))
		return "", txErr
	}

	s.activeEpoch = current
	return current, nil
}

// invalidateEpoch drops the cached epoch after a write found it
// superseded, so the next ensureEpoch consults the store again.
func (s *Service) invalidateEpoch(epochID EpochID) {
	s.rolloverMu.Lock()
	defer s.rolloverMu.Unlock()
	if s.activeEpoch == epochID {
		s.activeEpoch = ""
	}
}

// epochSuperseded reports whether a later epoch has already been
// configured, meaning epochID's ledger and stats are archived.
func epochSuperseded(tx *gorm.DB, epochID EpochID) (bool, error) {
	var count int64
	if err := tx.Model(&EpochConfig{}).
		Where("epoch_id > ?", epochID.String()).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// enterEpoch performs the transition body: freeze the outgoing epoch's
// stats, tally its votes, resolve the incoming config, seed fresh stats.
// Runs inside the caller's transaction, under the rollover mutex.
func (s *Service) enterEpoch(tx *gorm.DB, incoming EpochID, now time.Time) error {
	resolved := DefaultConfig()

	var outgoing EpochConfig
	err := tx.Where("epoch_id < ?", incoming.String()).
		Order("epoch_id DESC").
		Take(&outgoing).Error
	switch {
	case err == nil:
		if err := tx.Model(&DailyStats{}).
			Where("epoch_id = ?", outgoing.EpochID).
			Update("frozen", true).Error; err != nil {
			return newServiceError(opEnsureEpoch, "stats_freeze_failed", err)
		}
		counts, err := tallyCounts(tx, EpochID(outgoing.EpochID))
		if err != nil {
			return newServiceError(opEnsureEpoch, "tally_failed", err)
		}
		resolved = Resolve(WinningOption(counts))
	case errors.Is(err, gorm.ErrRecordNotFound):
		// First run: no predecessor, the default config applies.
	default:
		return newServiceError(opEnsureEpoch, "predecessor_select_failed", err)
	}

	record := EpochConfig{
		EpochID:          incoming.String(),
		Mode:             resolved.Mode,
		PointsPerClick:   resolved.PointsPerClick,
		ClickCap:         resolved.ClickCap,
		Description:      resolved.Description,
		CreatedAtSeconds: now.Unix(),
	}
	if err := tx.Create(&record).Error; err != nil {
		return newServiceError(opEnsureEpoch, "config_insert_failed", err)
	}

	stats := DailyStats{EpochID: incoming.String(), UpdatedAtSeconds: now.Unix()}
	if err := tx.Create(&stats).Error; err != nil {
		return newServiceError(opEnsureEpoch, "stats_insert_failed", err)
	}

	s.loggerOrDefault().Info("epoch entered",
		zap.String("epoch_id", incoming.String()),
		zap.String("mode", string(resolved.Mode)))
	return nil
}

// SubmitVote appends the user's vote for the active epoch. At most one
// vote per (epoch, user): a second submission returns ErrAlreadyVoted.
// A vote that resolved an epoch since rolled over is retried against the
// re-resolved epoch, never appended to the tallied one.
func (s *Service) SubmitVote(ctx context.Context, userID UserID, option VoteOption) (EpochID, error) {
	for attempt := 0; ; attempt++ {
		epochID, err := s.ensureEpoch(ctx)
		if err != nil {
			return "", err
		}

		err = s.submitVoteInEpoch(ctx, epochID, userID, option)
		if errors.Is(err, errEpochSuperseded) {
			if attempt == 0 {
				s.invalidateEpoch(epochID)
				continue
			}
			s.logError(opSubmitVote, "epoch_superseded", err, zap.String("epoch_id", epochID.String()))
			return epochID, newServiceError(opSubmitVote, "epoch_superseded", err)
		}
		return epochID, err
	}
}

// submitVoteInEpoch runs the vote transaction against one epoch. The
// latest-epoch check shares the transaction with the insert, so a vote
// can never land in an epoch whose tally has already been consumed.
func (s *Service) submitVoteInEpoch(ctx context.Context, epochID EpochID, userID UserID, option VoteOption) error {
	now := s.clock().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		superseded, err := epochSuperseded(tx, epochID)
		if err != nil {
			s.logError(opSubmitVote, "supersede_check_failed", err, zap.String("epoch_id", epochID.String()))
			return newServiceError(opSubmitVote, "supersede_check_failed", err)
		}
		if superseded {
			return errEpochSuperseded
		}

		var existing Vote
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("epoch_id = ? AND user_id = ?", epochID.String(), userID.String()).
			Take(&existing).Error
		if err == nil {
			return ErrAlreadyVoted
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logError(opSubmitVote, "vote_select_failed", err, zap.String("user_id", userID.String()))
			return newServiceError(opSubmitVote, "vote_select_failed", err)
		}

		vote := Vote{
			EpochID:            epochID.String(),
			UserID:             userID.String(),
			Option:             option,
			SubmittedAtSeconds: now.Unix(),
		}
		if err := tx.Create(&vote).Error; err != nil {
			s.logError(opSubmitVote, "vote_insert_failed", err, zap.String("user_id", userID.String()))
			return newServiceError(opSubmitVote, "vote_insert_failed", err)
		}
		return nil
	})
}

// RecordClick appends a click event for the active epoch and updates the
// stats projection as one atomic unit. The cap check and the increment
// share a transaction so no interleaving admits clicks past the cap. Cap
// exhaustion is the only rejection: the outcome still carries the current
// totals alongside ErrCapReached. A click that resolved an epoch since
// rolled over is retried against the re-resolved epoch; frozen stats are
// never mutated.
func (s *Service) RecordClick(ctx context.Context, userID UserID) (ClickOutcome, error) {
	for attempt := 0; ; attempt++ {
		epochID, err := s.ensureEpoch(ctx)
		if err != nil {
			return ClickOutcome{}, err
		}

		outcome, err := s.recordClickInEpoch(ctx, epochID, userID)
		if errors.Is(err, errEpochSuperseded) {
			if attempt == 0 {
				s.invalidateEpoch(epochID)
				continue
			}
			s.logError(opRecordClick, "epoch_superseded", err, zap.String("epoch_id", epochID.String()))
			return ClickOutcome{}, newServiceError(opRecordClick, "epoch_superseded", err)
		}
		return outcome, err
	}
}

// recordClickInEpoch runs the click transaction against one epoch. The
// locked stats row carries the frozen flag set at rollover, so the same
// lock that serializes the cap check also rejects writes into an archive.
func (s *Service) recordClickInEpoch(ctx context.Context, epochID EpochID, userID UserID) (ClickOutcome, error) {
	now := s.clock().UTC()
	var outcome ClickOutcome
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var configRow EpochConfig
		if err := tx.Where("epoch_id = ?", epochID.String()).Take(&configRow).Error; err != nil {
			s.logError(opRecordClick, "config_select_failed", err, zap.String("epoch_id", epochID.String()))
			return newServiceError(opRecordClick, "config_select_failed", err)
		}
		activeConfig := configRow.Config()

		var stats DailyStats
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("epoch_id = ?", epochID.String()).
			Take(&stats).Error; err != nil {
			s.logError(opRecordClick, "stats_select_failed", err, zap.String("epoch_id", epochID.String()))
			return newServiceError(opRecordClick, "stats_select_failed", err)
		}
		if stats.Frozen {
			return errEpochSuperseded
		}

		if activeConfig.ClickCap != nil && stats.TotalClicks >= *activeConfig.ClickCap {
			outcome = ClickOutcome{
				EpochID:        epochID,
				CapReached:     true,
				TotalClicks:    stats.TotalClicks,
				CommunityScore: stats.CommunityScore,
				UniquePlayers:  stats.UniquePlayers,
				OccurredAt:     now,
			}
			return ErrCapReached
		}

		var priorClicks int64
		if err := tx.Model(&ClickEvent{}).
			Where("epoch_id = ? AND user_id = ?", epochID.String(), userID.String()).
			Count(&priorClicks).Error; err != nil {
			s.logError(opRecordClick, "prior_clicks_count_failed", err, zap.String("user_id", userID.String()))
			return newServiceError(opRecordClick, "prior_clicks_count_failed", err)
		}
		newPlayer := priorClicks == 0

		clickID, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opRecordClick, "id_generation_failed", err)
			return newServiceError(opRecordClick, "id_generation_failed", err)
		}
		event := ClickEvent{
			ClickID:           clickID,
			EpochID:           epochID.String(),
			UserID:            userID.String(),
			OccurredAtSeconds: now.Unix(),
			PointsAwarded:     activeConfig.PointsPerClick,
		}
		if err := tx.Create(&event).Error; err != nil {
			s.logError(opRecordClick, "event_insert_failed", err, zap.String("user_id", userID.String()))
			return newServiceError(opRecordClick, "event_insert_failed", err)
		}

		stats.TotalClicks++
		stats.CommunityScore += activeConfig.PointsPerClick
		if newPlayer {
			stats.UniquePlayers++
		}
		stats.UpdatedAtSeconds = now.Unix()
		if err := tx.Save(&stats).Error; err != nil {
			s.logError(opRecordClick, "stats_save_failed", err, zap.String("epoch_id", epochID.String()))
			return newServiceError(opRecordClick, "stats_save_failed", err)
		}

		outcome = ClickOutcome{
			EpochID:        epochID,
			Accepted:       true,
			PointsAwarded:  activeConfig.PointsPerClick,
			TotalClicks:    stats.TotalClicks,
			CommunityScore: stats.CommunityScore,
			UniquePlayers:  stats.UniquePlayers,
			NewPlayer:      newPlayer,
			OccurredAt:     now,
		}
		return nil
	})
	if txErr != nil {
		return outcome, txErr
	}

	return outcome, nil
}

// ActiveConfig returns the configuration governing the active epoch.
func (s *Service) ActiveConfig(ctx context.Context) (EpochID, Config, error) {
	epochID, err := s.ensureEpoch(ctx)
	if err != nil {
		return "", Config{}, err
	}

	var configRow EpochConfig
	if err := s.db.WithContext(ctx).
		Where("epoch_id = ?", epochID.String()).
		Take(&configRow).Error; err != nil {
		s.logError(opActiveConfig, "config_select_failed", err, zap.String("epoch_id", epochID.String()))
		return "", Config{}, newServiceError(opActiveConfig, "config_select_failed", err)
	}
	return epochID, configRow.Config(), nil
}

// CurrentStats returns the live stats projection for the active epoch.
func (s *Service) CurrentStats(ctx context.Context) (DailyStats, error) {
	epochID, err := s.ensureEpoch(ctx)
	if err != nil {
		return DailyStats{}, err
	}

	var stats DailyStats
	if err := s.db.WithContext(ctx).
		Where("epoch_id = ?", epochID.String()).
		Take(&stats).Error; err != nil {
		s.logError(opDailyStats, "stats_select_failed", err, zap.String("epoch_id", epochID.String()))
		return DailyStats{}, newServiceError(opDailyStats, "stats_select_failed", err)
	}
	return stats, nil
}

// Tally returns the active epoch's vote counts and the option winning so
// far, zero-filled across the full enumeration.
func (s *Service) Tally(ctx context.Context) (VoteTally, error) {
	epochID, err := s.ensureEpoch(ctx)
	if err != nil {
		return VoteTally{}, err
	}

	counts, err := tallyCounts(s.db.WithContext(ctx), epochID)
	if err != nil {
		s.logError(opVoteTally, "tally_failed", err, zap.String("epoch_id", epochID.String()))
		return VoteTally{}, newServiceError(opVoteTally, "tally_failed", err)
	}

	return VoteTally{
		EpochID:    epochID,
		Counts:     counts,
		Winning:    WinningOption(counts),
		TotalVotes: counts.Total(),
	}, nil
}

// HasVoted reports whether the user already holds a vote this epoch.
func (s *Service) HasVoted(ctx context.Context, userID UserID) (bool, error) {
	epochID, err := s.ensureEpoch(ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&Vote{}).
		Where("epoch_id = ? AND user_id = ?", epochID.String(), userID.String()).
		Count(&count).Error; err != nil {
		s.logError(opHasVoted, "vote_count_failed", err, zap.String("user_id", userID.String()))
		return false, newServiceError(opHasVoted, "vote_count_failed", err)
	}
	return count > 0, nil
}

// tallyCounts aggregates votes by option for one epoch, zero-filling the
// options no one picked.
func tallyCounts(db *gorm.DB, epochID EpochID) (CountsByOption, error) {
	type optionCount struct {
		Option VoteOption `gorm:"column:option"`
		Count  int64      `gorm:"column:count"`
	}

	var rows []optionCount
	if err := db.Model(&Vote{}).
		Select("option, COUNT(*) AS count").
		Where("epoch_id = ?", epochID.String()).
		Group("option").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(CountsByOption, len(VoteOptions()))
	for _, option := range VoteOptions() {
		counts[option] = 0
	}
	for _, row := range rows {
		counts[row.Option] = row.Count
	}
	return counts, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("game service error", attrs...)
}
