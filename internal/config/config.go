package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Log      LogConfig
	Ledger   LedgerConfig
	Cache    CacheConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port    int
	GinMode string
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	DBName       string
	SSLMode      string
	TestDBName   string // Separate database for testing
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds the cache/pub-sub configuration. An empty URL disables Redis.
type RedisConfig struct {
	URL string
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret          string
	TokenExpireMinutes int
	CookieSecure       bool
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

// LedgerConfig tunes the reward step of session submission
type LedgerConfig struct {
	MaxRewardRetries     int
	NotifyTimeoutSeconds int
}

// CacheConfig holds view cache TTLs in seconds
type CacheConfig struct {
	SessionsTTLSeconds    int
	CharErrorsTTLSeconds  int
	LeaderboardTTLSeconds int
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// TokenTTL returns the lifetime of issued access tokens
func (c *AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenExpireMinutes) * time.Minute
}

// NotifyTimeout bounds the post-commit notification hooks
func (c *LedgerConfig) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    8080,
			GinMode: "release",
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Username:     "postgres",
			Password:     "password",
			DBName:       "shilka",
			SSLMode:      "disable",
			TestDBName:   "shilka_test",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Auth: AuthConfig{
			JWTSecret:          "your-secret-key-here",
			TokenExpireMinutes: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Ledger: LedgerConfig{
			MaxRewardRetries:     3,
			NotifyTimeoutSeconds: 5,
		},
		Cache: CacheConfig{
			SessionsTTLSeconds:    30,
			CharErrorsTTLSeconds:  120,
			LeaderboardTTLSeconds: 60,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the optional config
// file at path, then environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		fileCfg.apply(cfg)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvAsInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.GinMode = getEnv("GIN_MODE", cfg.Server.GinMode)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvAsInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Username = getEnv("DB_USERNAME", cfg.Database.Username)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.TestDBName = getEnv("TEST_DB_NAME", cfg.Database.TestDBName)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.TokenExpireMinutes = getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", cfg.Auth.TokenExpireMinutes)
	cfg.Auth.CookieSecure = getEnvAsBool("COOKIE_SECURE", cfg.Auth.CookieSecure)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Ledger.MaxRewardRetries = getEnvAsInt("LEDGER_MAX_REWARD_RETRIES", cfg.Ledger.MaxRewardRetries)
	cfg.Ledger.NotifyTimeoutSeconds = getEnvAsInt("LEDGER_NOTIFY_TIMEOUT_SECONDS", cfg.Ledger.NotifyTimeoutSeconds)
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
