package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pushorpass/backend/internal/game"
	"github.com/pushorpass/backend/internal/players"
	"go.uber.org/zap"
)

const userIDContextKey = "pushpass_user_id"

var (
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingGameService    = errors.New("game service dependency required")
	errMissingPlayersService = errors.New("players service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// PlayerTokenManager issues and validates the bearer tokens that carry
// opaque player ids.
type PlayerTokenManager interface {
	IssuePlayerToken(ctx context.Context, userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP layer.
type Dependencies struct {
	TokenManager        PlayerTokenManager
	GameService         *game.Service
	PlayersService      *players.Service
	Logger              *zap.Logger
	LeaderboardMaxLimit int
}

// NewHTTPHandler builds the REST surface over the epoch engine.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.GameService == nil {
		return nil, errMissingGameService
	}
	if deps.PlayersService == nil {
		return nil, errMissingPlayersService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxLimit := deps.LeaderboardMaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:         deps.TokenManager,
		gameService:    deps.GameService,
		playersService: deps.PlayersService,
		logger:         logger,
		maxLimit:       maxLimit,
	}

	router.POST("/auth/session", handler.handleCreateSession)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/game/votes", handler.handleSubmitVote)
	protected.POST("/game/clicks", handler.handleRecordClick)
	protected.GET("/game/config", handler.handleActiveConfig)
	protected.GET("/game/stats", handler.handleDailyStats)
	protected.GET("/game/votes/tally", handler.handleVoteTally)
	protected.GET("/game/leaderboard", handler.handleLeaderboard)
	protected.GET("/players/me", handler.handlePlayerProfile)

	return router, nil
}

type httpHandler struct {
	tokens         PlayerTokenManager
	gameService    *game.Service
	playersService *players.Service
	logger         *zap.Logger
	maxLimit       int
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		h.logger.Debug("request rejected", zap.Error(errInvalidAuthorization))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID, err := h.tokens.ValidateToken(strings.TrimSpace(parts[1]))
	if err != nil {
		h.logger.Debug("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Set(userIDContextKey, userID)
	c.Next()
}

// writeServiceError surfaces storage failures with the service's dotted
// code; caller-recoverable outcomes never reach here.
func (h *httpHandler) writeServiceError(c *gin.Context, message string, err error) {
	h.logger.Error(message, zap.Error(err))
	var serviceErr *game.ServiceError
	if errors.As(err, &serviceErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "code": serviceErr.Code()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

func (h *httpHandler) requestUserID(c *gin.Context) (game.UserID, bool) {
	raw := c.GetString(userIDContextKey)
	userID, err := game.NewUserID(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}
