package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config for TOML and YAML files. Unset keys stay nil and
// leave the defaults alone.
type FileConfig struct {
	Server struct {
		Port    *int    `toml:"port" yaml:"port"`
		GinMode *string `toml:"gin_mode" yaml:"gin_mode"`
	} `toml:"server" yaml:"server"`
	Database struct {
		Host         *string `toml:"host" yaml:"host"`
		Port         *int    `toml:"port" yaml:"port"`
		Username     *string `toml:"username" yaml:"username"`
		Password     *string `toml:"password" yaml:"password"`
		DBName       *string `toml:"db_name" yaml:"db_name"`
		SSLMode      *string `toml:"sslmode" yaml:"sslmode"`
		MaxOpenConns *int    `toml:"max_open_conns" yaml:"max_open_conns"`
		MaxIdleConns *int    `toml:"max_idle_conns" yaml:"max_idle_conns"`
	} `toml:"database" yaml:"database"`
	Redis struct {
		URL *string `toml:"url" yaml:"url"`
	} `toml:"redis" yaml:"redis"`
	Auth struct {
		JWTSecret          *string `toml:"jwt_secret" yaml:"jwt_secret"`
		TokenExpireMinutes *int    `toml:"access_token_expire_minutes" yaml:"access_token_expire_minutes"`
		CookieSecure       *bool   `toml:"cookie_secure" yaml:"cookie_secure"`
	} `toml:"auth" yaml:"auth"`
	Log struct {
		Level  *string `toml:"level" yaml:"level"`
		Format *string `toml:"format" yaml:"format"`
	} `toml:"log" yaml:"log"`
	Ledger struct {
		MaxRewardRetries     *int `toml:"max_reward_retries" yaml:"max_reward_retries"`
		NotifyTimeoutSeconds *int `toml:"notify_timeout_seconds" yaml:"notify_timeout_seconds"`
	} `toml:"ledger" yaml:"ledger"`
	Cache struct {
		SessionsTTLSeconds    *int `toml:"sessions_ttl_seconds" yaml:"sessions_ttl_seconds"`
		CharErrorsTTLSeconds  *int `toml:"char_errors_ttl_seconds" yaml:"char_errors_ttl_seconds"`
		LeaderboardTTLSeconds *int `toml:"leaderboard_ttl_seconds" yaml:"leaderboard_ttl_seconds"`
	} `toml:"cache" yaml:"cache"`
}

// LoadFile reads a TOML (.toml) or YAML (.yaml, .yml) config file. A missing
// file is not an error.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(raw), &fc); err != nil {
			return fc, fmt.Errorf("failed to decode toml config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return fc, fmt.Errorf("failed to decode yaml config: %w", err)
		}
	default:
		return fc, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return fc, nil
}

func (fc FileConfig) apply(cfg *Config) {
	setInt(&cfg.Server.Port, fc.Server.Port)
	setString(&cfg.Server.GinMode, fc.Server.GinMode)

	setString(&cfg.Database.Host, fc.Database.Host)
	setInt(&cfg.Database.Port, fc.Database.Port)
	setString(&cfg.Database.Username, fc.Database.Username)
	setString(&cfg.Database.Password, fc.Database.Password)
	setString(&cfg.Database.DBName, fc.Database.DBName)
	setString(&cfg.Database.SSLMode, fc.Database.SSLMode)
	setInt(&cfg.Database.MaxOpenConns, fc.Database.MaxOpenConns)
	setInt(&cfg.Database.MaxIdleConns, fc.Database.MaxIdleConns)

	setString(&cfg.Redis.URL, fc.Redis.URL)

	setString(&cfg.Auth.JWTSecret, fc.Auth.JWTSecret)
	setInt(&cfg.Auth.TokenExpireMinutes, fc.Auth.TokenExpireMinutes)
	if fc.Auth.CookieSecure != nil {
		cfg.Auth.CookieSecure = *fc.Auth.CookieSecure
	}

	setString(&cfg.Log.Level, fc.Log.Level)
	setString(&cfg.Log.Format, fc.Log.Format)

	setInt(&cfg.Ledger.MaxRewardRetries, fc.Ledger.MaxRewardRetries)
	setInt(&cfg.Ledger.NotifyTimeoutSeconds, fc.Ledger.NotifyTimeoutSeconds)

	setInt(&cfg.Cache.SessionsTTLSeconds, fc.Cache.SessionsTTLSeconds)
	setInt(&cfg.Cache.CharErrorsTTLSeconds, fc.Cache.CharErrorsTTLSeconds)
	setInt(&cfg.Cache.LeaderboardTTLSeconds, fc.Cache.LeaderboardTTLSeconds)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
