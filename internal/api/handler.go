package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shilkatype/server/internal/models"
	"github.com/shilkatype/server/internal/realtime"
	"github.com/shilkatype/server/internal/service"
)

// AccessTokenCookie carries the JWT for browser clients
const AccessTokenCookie = "access_token"

// Handler handles HTTP requests
type Handler struct {
	service      service.Service
	hub          *realtime.Hub
	logger       *slog.Logger
	tokenTTL     time.Duration
	cookieSecure bool
	pingers      []Pinger
}

// Pinger is an extra dependency checked by the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandlerOption customizes a Handler
type HandlerOption func(*Handler)

// WithCookie sets the lifetime and Secure flag of the access token cookie
func WithCookie(ttl time.Duration, secure bool) HandlerOption {
	return func(h *Handler) {
		h.tokenTTL = ttl
		h.cookieSecure = secure
	}
}

// WithHealthCheck adds a dependency to GET /health
func WithHealthCheck(p Pinger) HandlerOption {
	return func(h *Handler) {
		h.pingers = append(h.pingers, p)
	}
}

// NewHandler creates a new Handler
func NewHandler(svc service.Service, hub *realtime.Hub, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		service:  svc,
		hub:      hub,
		logger:   logger,
		tokenTTL: 30 * time.Minute,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetupRoutes configures all the routes for the API
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", AuthMiddleware(), h.Me)
	}

	stats := router.Group("/api/stats")
	{
		stats.GET("/leaderboard", h.GetLeaderboard)

		authed := stats.Group("", AuthMiddleware())
		authed.POST("/typing-session", h.CreateTypingSession)
		authed.GET("/typing-sessions", h.ListTypingSessions)
		authed.POST("/typing-sessions/:id/reward", h.RewardTypingSession)
		authed.GET("/char-errors", h.GetCharErrorStats)
		authed.POST("/add-coins", h.AddCoins)
	}

	if h.hub != nil {
		router.GET("/ws/leaderboard", h.LeaderboardSocket)
	}
}

// Health reports whether the backing stores are reachable
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := append([]Pinger{h.service}, h.pingers...)
	for _, p := range checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Error("health check failed", "error", err)
			respondError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "Dependency unavailable")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Auth handlers
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	resp, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, resp.Token, int(h.tokenTTL.Seconds()), "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"detail": "Logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.service.GetUser(c.Request.Context(), c.GetInt64(userIDKey))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Typing session handlers
func (h *Handler) CreateTypingSession(c *gin.Context) {
	var req models.TypingSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	session, err := h.service.CreateTypingSession(c.Request.Context(), c.GetInt64(userIDKey), req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

func (h *Handler) ListTypingSessions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultSessionsLimit)))
	if err != nil || limit < 1 || limit > service.MaxSessionsLimit {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be between 1 and 100")
		return
	}
	minWPM, err := strconv.ParseFloat(c.DefaultQuery("min_wpm", "0"), 64)
	if err != nil || minWPM < 0 {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "min_wpm must be a non-negative number")
		return
	}

	sessions, err := h.service.ListTypingSessions(c.Request.Context(), c.GetInt64(userIDKey), minWPM, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := make([]models.TypingSessionResponse, 0, len(sessions))
	for i := range sessions {
		resp = append(resp, toSessionResponse(&sessions[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) RewardTypingSession(c *gin.Context) {
	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid session id")
		return
	}

	if err := h.service.RewardTypingSession(c.Request.Context(), c.GetInt64(userIDKey), sessionID); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// Stats handlers
func (h *Handler) GetCharErrorStats(c *gin.Context) {
	stats, err := h.service.GetCharErrorStats(c.Request.Context(), c.GetInt64(userIDKey))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetLeaderboard(c *gin.Context) {
	users, err := h.service.GetLeaderboard(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) AddCoins(c *gin.Context) {
	var req models.AddCoinsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	user, err := h.service.AddCoins(c.Request.Context(), c.GetInt64(userIDKey), req.Amount)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// LeaderboardSocket streams leaderboard snapshots over a websocket
func (h *Handler) LeaderboardSocket(c *gin.Context) {
	err := h.hub.Serve(c.Writer, c.Request, func(ctx context.Context) ([]models.PublicUser, error) {
		return h.service.GetLeaderboard(ctx)
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
	}
}

// handleError maps service errors to HTTP responses
func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserExists):
		respondError(c, http.StatusConflict, "USER_EXISTS", "Username already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect username or password")
	case errors.Is(err, service.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrSessionNotFound):
		respondError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Typing session not found")
	default:
		h.logger.Error("request failed",
			"method", c.Request.Method, "path", c.FullPath(),
			"request_id", c.GetString(requestIDKey), "error", err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

func toSessionResponse(s *models.TypingSession) models.TypingSessionResponse {
	return models.TypingSessionResponse{
		ID:         s.ID,
		WPM:        s.WPM,
		Accuracy:   s.Accuracy,
		Duration:   s.Duration,
		TypingMode: s.TypingMode,
		Language:   s.Language,
		TestType:   s.TestType,
		CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
	}
}
