package config

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection and makes sure the schema exists
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// Migrate creates the tables and indexes if they don't exist
func Migrate(db *sqlx.DB) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(64) UNIQUE NOT NULL,
			password VARCHAR(255) NOT NULL,
			shilka_coins INTEGER NOT NULL DEFAULT 0 CHECK (shilka_coins >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	// Create typing_sessions table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS typing_sessions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			wpm DOUBLE PRECISION NOT NULL,
			accuracy DOUBLE PRECISION NOT NULL,
			duration INTEGER,
			words TEXT NOT NULL,
			history TEXT NOT NULL,
			typing_mode TEXT,
			language TEXT,
			test_type TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create coin_transactions table. The unique session reference makes
	// rewards idempotent; deleting a session deletes its transaction.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS coin_transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			typing_session_id BIGINT UNIQUE REFERENCES typing_sessions(id) ON DELETE CASCADE,
			amount INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_typing_sessions_user_created ON typing_sessions(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_coin_transactions_user_id ON coin_transactions(user_id)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			// Indexes are not critical
			slog.Warn("failed to create index", "error", err)
		}
	}

	return nil
}
