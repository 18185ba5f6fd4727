package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// clearEnv unsets the config variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_PORT", "GIN_MODE", "DB_HOST", "DB_PORT", "DB_USERNAME", "DB_PASSWORD", "DB_NAME",
		"DB_SSLMODE", "TEST_DB_NAME", "REDIS_URL", "JWT_SECRET", "ACCESS_TOKEN_EXPIRE_MINUTES",
		"COOKIE_SECURE", "LOG_LEVEL", "LOG_FORMAT", "LEDGER_MAX_REWARD_RETRIES", "LEDGER_NOTIFY_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Auth.TokenExpireMinutes)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL())
	assert.Equal(t, 3, cfg.Ledger.MaxRewardRetries)
	assert.Equal(t, 120, cfg.Cache.CharErrorsTTLSeconds)
}

func TestLoadConfigTOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "shilka.toml", `
[server]
port = 9000

[database]
host = "db.internal"
db_name = "typing"

[redis]
url = "redis://cache:6379/1"

[ledger]
max_reward_retries = 5
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "typing", cfg.Database.DBName)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, 5, cfg.Ledger.MaxRewardRetries)
}

func TestLoadConfigYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "shilka.yaml", `
auth:
  jwt_secret: from-file
  access_token_expire_minutes: 60
  cookie_secure: true
log:
  format: json
`)
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 60, cfg.Auth.TokenExpireMinutes)
	assert.True(t, cfg.Auth.CookieSecure)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigMissingFileIsNotAnError(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoadConfigRejectsUnknownFormat(t *testing.T) {
	path := writeFile(t, "shilka.ini", "port=1")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	db := Default().Database
	assert.Equal(t, "host=localhost port=5432 user=postgres password=password dbname=shilka sslmode=disable", db.GetDSN())
}
