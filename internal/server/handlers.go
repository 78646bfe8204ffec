package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pushorpass/backend/internal/game"
	"github.com/pushorpass/backend/internal/players"
	"go.uber.org/zap"
)

type sessionRequestPayload struct {
	DisplayName string `json:"display_name"`
}

type sessionResponsePayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

func (h *httpHandler) handleCreateSession(c *gin.Context) {
	var request sessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	identity, err := h.playersService.Register(request.DisplayName)
	if err != nil {
		h.writeServiceError(c, "player registration failed", err)
		return
	}

	token, expiresIn, err := h.tokens.IssuePlayerToken(c.Request.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("failed to issue player token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
	})
}

type voteRequestPayload struct {
	Option string `json:"option"`
}

type voteResponsePayload struct {
	Accepted bool   `json:"accepted"`
	EpochID  string `json:"epoch_id"`
	Option   string `json:"option"`
}

func (h *httpHandler) handleSubmitVote(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}

	var request voteRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	option, err := game.ParseVoteOption(request.Option)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_option"})
		return
	}

	epochID, err := h.gameService.SubmitVote(c.Request.Context(), userID, option)
	if errors.Is(err, game.ErrAlreadyVoted) {
		c.JSON(http.StatusConflict, gin.H{"error": "already_voted", "epoch_id": epochID.String()})
		return
	}
	if err != nil {
		h.writeServiceError(c, "vote submission failed", err)
		return
	}

	h.touchPlayer(userID)
	c.JSON(http.StatusOK, voteResponsePayload{
		Accepted: true,
		EpochID:  epochID.String(),
		Option:   string(option),
	})
}

type clickResponsePayload struct {
	Accepted       bool    `json:"accepted"`
	CapReached     bool    `json:"cap_reached"`
	Points         float64 `json:"points"`
	CommunityScore float64 `json:"community_score"`
	TotalClicks    int64   `json:"total_clicks"`
	UniquePlayers  int64   `json:"unique_players"`
	NewPlayer      bool    `json:"new_player"`
	EpochID        string  `json:"epoch_id"`
}

func (h *httpHandler) handleRecordClick(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}

	outcome, err := h.gameService.RecordClick(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, game.ErrCapReached) {
		h.writeServiceError(c, "click recording failed", err)
		return
	}

	if outcome.Accepted {
		h.touchPlayer(userID)
	}
	c.JSON(http.StatusOK, clickResponsePayload{
		Accepted:       outcome.Accepted,
		CapReached:     outcome.CapReached,
		Points:         outcome.PointsAwarded,
		CommunityScore: outcome.CommunityScore,
		TotalClicks:    outcome.TotalClicks,
		UniquePlayers:  outcome.UniquePlayers,
		NewPlayer:      outcome.NewPlayer,
		EpochID:        outcome.EpochID.String(),
	})
}

type configResponsePayload struct {
	EpochID        string  `json:"epoch_id"`
	Mode           string  `json:"mode"`
	PointsPerClick float64 `json:"points_per_click"`
	ClickCap       *int64  `json:"click_cap"`
	Description    string  `json:"description"`
}

func (h *httpHandler) handleActiveConfig(c *gin.Context) {
	epochID, cfg, err := h.gameService.ActiveConfig(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, "active config lookup failed", err)
		return
	}

	c.JSON(http.StatusOK, configResponsePayload{
		EpochID:        epochID.String(),
		Mode:           string(cfg.Mode),
		PointsPerClick: cfg.PointsPerClick,
		ClickCap:       cfg.ClickCap,
		Description:    cfg.Description,
	})
}

type statsResponsePayload struct {
	EpochID        string  `json:"epoch_id"`
	TotalClicks    int64   `json:"total_clicks"`
	CommunityScore float64 `json:"community_score"`
	UniquePlayers  int64   `json:"unique_players"`
}

func (h *httpHandler) handleDailyStats(c *gin.Context) {
	stats, err := h.gameService.CurrentStats(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, "daily stats lookup failed", err)
		return
	}

	c.JSON(http.StatusOK, statsResponsePayload{
		EpochID:        stats.EpochID,
		TotalClicks:    stats.TotalClicks,
		CommunityScore: stats.CommunityScore,
		UniquePlayers:  stats.UniquePlayers,
	})
}

type tallyResponsePayload struct {
	EpochID    string           `json:"epoch_id"`
	Counts     map[string]int64 `json:"counts"`
	Winning    string           `json:"winning"`
	TotalVotes int64            `json:"total_votes"`
	Voted      bool             `json:"voted"`
}

func (h *httpHandler) handleVoteTally(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}

	tally, err := h.gameService.Tally(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, "vote tally failed", err)
		return
	}

	voted, err := h.gameService.HasVoted(c.Request.Context(), userID)
	if err != nil {
		h.writeServiceError(c, "vote lookup failed", err)
		return
	}

	counts := make(map[string]int64, len(tally.Counts))
	for option, count := range tally.Counts {
		counts[string(option)] = count
	}
	c.JSON(http.StatusOK, tallyResponsePayload{
		EpochID:    tally.EpochID.String(),
		Counts:     counts,
		Winning:    string(tally.Winning),
		TotalVotes: tally.TotalVotes,
		Voted:      voted,
	})
}

type leaderboardEntryPayload struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"user_id"`
	DisplayName string  `json:"display_name"`
	Clicks      int64   `json:"clicks"`
	Score       float64 `json:"score"`
}

type leaderboardResponsePayload struct {
	Window  string                    `json:"window"`
	Entries []leaderboardEntryPayload `json:"entries"`
}

func (h *httpHandler) handleLeaderboard(c *gin.Context) {
	window, err := game.ParseWindow(c.Query("window"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_window"})
		return
	}

	limit := 0
	if rawLimit := c.Query("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	standings, err := h.gameService.Leaderboard(c.Request.Context(), window, limit)
	if err != nil {
		h.writeServiceError(c, "leaderboard aggregation failed", err)
		return
	}

	entries := make([]leaderboardEntryPayload, 0, len(standings))
	for _, aggregate := range standings {
		entries = append(entries, leaderboardEntryPayload{
			Rank:        aggregate.Rank,
			UserID:      aggregate.UserID.String(),
			DisplayName: h.playersService.DisplayName(aggregate.UserID.String()),
			Clicks:      aggregate.Clicks,
			Score:       aggregate.Score,
		})
	}
	c.JSON(http.StatusOK, leaderboardResponsePayload{
		Window:  string(window),
		Entries: entries,
	})
}

type profileResponsePayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at_s"`
	LastSeenAt  int64  `json:"last_seen_at_s"`
}

func (h *httpHandler) handlePlayerProfile(c *gin.Context) {
	userID, ok := h.requestUserID(c)
	if !ok {
		return
	}

	identity, err := h.playersService.Lookup(userID.String())
	if errors.Is(err, players.ErrUnknownPlayer) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_player"})
		return
	}
	if err != nil {
		h.writeServiceError(c, "player lookup failed", err)
		return
	}

	c.JSON(http.StatusOK, profileResponsePayload{
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		CreatedAt:   identity.CreatedAt.Unix(),
		LastSeenAt:  identity.LastSeenAt.Unix(),
	})
}

func (h *httpHandler) touchPlayer(userID game.UserID) {
	if err := h.playersService.Touch(userID.String()); err != nil {
		h.logger.Warn("player touch failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
