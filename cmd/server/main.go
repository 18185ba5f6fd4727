// Package main provides the CLI entrypoint for the shilka typing server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/shilkatype/server/internal/api"
	"github.com/shilkatype/server/internal/cache"
	"github.com/shilkatype/server/internal/config"
	"github.com/shilkatype/server/internal/realtime"
	"github.com/shilkatype/server/internal/repository"
	"github.com/shilkatype/server/internal/service"
	"github.com/shilkatype/server/internal/utils"
)

var (
	configPath string
	inMemory   bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "shilka-server",
		Short:        "Typing practice backend",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a .toml or .yaml config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE:  runServe,
	}
	serveCmd.Flags().BoolVar(&inMemory, "in-memory", false, "keep all data in process memory instead of Postgres")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE:  runMigrate,
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)
	return rootCmd
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := utils.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	// SetupDatabase applies the schema
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	logger.Info("schema is up to date", "database", cfg.Database.DBName)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create repository
	var repo repository.Repository
	if inMemory {
		logger.Warn("running with the in-memory repository, data is lost on exit")
		repo = repository.NewMemoryRepository()
	} else {
		db, err := config.SetupDatabase(cfg)
		if err != nil {
			return fmt.Errorf("failed to set up database: %w", err)
		}
		defer db.Close()
		repo = repository.NewPostgresRepository(db)
	}

	hub := realtime.NewHub(logger)
	handlerOpts := []api.HandlerOption{api.WithCookie(cfg.Auth.TokenTTL(), cfg.Auth.CookieSecure)}

	// Without Redis the hub is the notifier and views are not cached
	var (
		notifier service.Notifier = hub
		views    service.ViewCache
	)
	if cfg.Redis.URL != "" {
		rdb, err := config.ConnectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()

		viewCache := cache.NewViewCache(rdb, cache.DefaultPrefix)
		notifier = cache.NewRedisNotifier(rdb, viewCache)
		views = viewCache
		handlerOpts = append(handlerOpts, api.WithHealthCheck(redisPinger{rdb}))

		go func() {
			if err := hub.Subscribe(ctx, rdb, cache.LeaderboardChannel); err != nil {
				logger.Error("leaderboard subscription stopped", "error", err)
			}
		}()
	}

	svc := service.NewDefaultService(repo, notifier, views, logger, service.Options{
		JWTSecret:        cfg.Auth.JWTSecret,
		TokenTTL:         cfg.Auth.TokenTTL(),
		MaxRewardRetries: cfg.Ledger.MaxRewardRetries,
		NotifyTimeout:    cfg.Ledger.NotifyTimeout(),
		SessionsTTL:      time.Duration(cfg.Cache.SessionsTTLSeconds) * time.Second,
		CharErrorsTTL:    time.Duration(cfg.Cache.CharErrorsTTLSeconds) * time.Second,
		LeaderboardTTL:   time.Duration(cfg.Cache.LeaderboardTTLSeconds) * time.Second,
	})

	// Create API handler
	handler := api.NewHandler(svc, hub, logger, handlerOpts...)

	// Set up Gin router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		api.RequestID(),
		api.RequestLogger(logger),
		api.JWTSecret(cfg.Auth.JWTSecret),
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
