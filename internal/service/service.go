package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shilkatype/server/internal/models"
	"github.com/shilkatype/server/internal/repository"
)

var (
	ErrUserExists         = errors.New("username already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("typing session not found")
)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	GetUser(ctx context.Context, userID int64) (*models.PublicUser, error)

	// Typing sessions
	CreateTypingSession(ctx context.Context, userID int64, req models.TypingSessionRequest) (*models.TypingSession, error)
	RewardTypingSession(ctx context.Context, userID, sessionID int64) error
	ListTypingSessions(ctx context.Context, userID int64, minWPM float64, limit int) ([]models.TypingSession, error)

	// Stats
	GetCharErrorStats(ctx context.Context, userID int64) ([]models.CharErrorStat, error)
	GetLeaderboard(ctx context.Context) ([]models.PublicUser, error)
	AddCoins(ctx context.Context, userID int64, amount int) (*models.PublicUser, error)

	Ping(ctx context.Context) error
}

// Notifier receives state changes after they are committed
type Notifier interface {
	Invalidate(ctx context.Context, pattern string) error
	PublishLeaderboard(ctx context.Context, users []models.PublicUser) error
}

// ViewCache stores read views between requests
type ViewCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

// NopNotifier drops every notification
type NopNotifier struct{}

func (NopNotifier) Invalidate(context.Context, string) error { return nil }

func (NopNotifier) PublishLeaderboard(context.Context, []models.PublicUser) error { return nil }

// NopViewCache never stores anything
type NopViewCache struct{}

func (NopViewCache) Get(context.Context, string, any) (bool, error) { return false, nil }

func (NopViewCache) Set(context.Context, string, any, time.Duration) error { return nil }

// Options tunes DefaultService. Zero values fall back to defaults.
type Options struct {
	JWTSecret        string
	TokenTTL         time.Duration
	MaxRewardRetries int
	RetryBackoff     time.Duration
	NotifyTimeout    time.Duration
	SessionsTTL      time.Duration
	CharErrorsTTL    time.Duration
	LeaderboardTTL   time.Duration
}

func (o Options) withDefaults() Options {
	if o.TokenTTL <= 0 {
		o.TokenTTL = 30 * time.Minute
	}
	if o.MaxRewardRetries <= 0 {
		o.MaxRewardRetries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 20 * time.Millisecond
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = 5 * time.Second
	}
	if o.SessionsTTL <= 0 {
		o.SessionsTTL = 30 * time.Second
	}
	if o.CharErrorsTTL <= 0 {
		o.CharErrorsTTL = 120 * time.Second
	}
	if o.LeaderboardTTL <= 0 {
		o.LeaderboardTTL = 60 * time.Second
	}
	return o
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo      repository.Repository
	notifier  Notifier
	views     ViewCache
	logger    *slog.Logger
	jwtSecret []byte
	opts      Options

	// generation is bumped before every cache invalidation so a read that
	// raced with a write does not store what it loaded
	generation atomic.Uint64
}

// NewDefaultService creates a new DefaultService. A nil notifier, view cache
// or logger is replaced by a no-op implementation.
func NewDefaultService(
	repo repository.Repository,
	notifier Notifier,
	views ViewCache,
	logger *slog.Logger,
	opts Options,
) *DefaultService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if views == nil {
		views = NopViewCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &DefaultService{
		repo:      repo,
		notifier:  notifier,
		views:     views,
		logger:    logger.With("component", "service"),
		jwtSecret: []byte(opts.JWTSecret),
		opts:      opts,
	}
}

func (s *DefaultService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// cached serves key from the view cache, filling it with load on a miss.
// Cache failures degrade to a direct load. A load that overlaps an
// invalidation is returned but not kept.
func cached[T any](ctx context.Context, s *DefaultService, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var out T
	hit, err := s.views.Get(ctx, key, &out)
	if err != nil {
		s.logger.Warn("view cache read failed", "key", key, "error", err)
	}
	if hit {
		return out, nil
	}

	gen := s.generation.Load()
	out, err = load()
	if err != nil {
		return out, err
	}
	if s.generation.Load() != gen {
		return out, nil
	}
	if err := s.views.Set(ctx, key, out, ttl); err != nil {
		s.logger.Warn("view cache write failed", "key", key, "error", err)
	}
	// An invalidation may have run between the check and the write
	if s.generation.Load() != gen {
		if err := s.notifier.Invalidate(ctx, key); err != nil {
			s.logger.Warn("view cache invalidation failed", "key", key, "error", err)
		}
	}
	return out, nil
}
