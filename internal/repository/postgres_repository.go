package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shilkatype/server/internal/models"
	"github.com/shilkatype/server/internal/scoring"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserBalance(ctx context.Context, userID int64) (int, error)
	ListUsersOrderedByBalance(ctx context.Context) ([]models.PublicUser, error)

	// Typing session operations
	InsertTypingSession(ctx context.Context, session *models.TypingSession) error
	GetTypingSession(ctx context.Context, id int64) (*models.TypingSession, error)
	ListTypingSessions(ctx context.Context, userID int64, minWPM float64, limit int) ([]models.TypingSession, error)
	ListAllSessionsForUser(ctx context.Context, userID int64) ([]models.TypingSession, error)

	// Coin transaction operations
	FindTransactionBySessionID(ctx context.Context, sessionID int64) (*models.CoinTransaction, error)
	ApplyCoinTransaction(ctx context.Context, txn *models.CoinTransaction) (int, error)

	Ping(ctx context.Context) error
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password, shilka_coins, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowxContext(ctx, query,
		user.Username, user.Password, user.ShilkaCoins, user.CreatedAt).Scan(&user.ID)
	if err != nil {
		return mapPQError(err, ErrDuplicateUser)
	}

	return nil
}

func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT * FROM users WHERE username = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserBalance(ctx context.Context, userID int64) (int, error) {
	var balance int
	err := r.db.GetContext(ctx, &balance, `SELECT COALESCE(shilka_coins, 0) FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return balance, nil
}

// ListUsersOrderedByBalance ranks users by coins, ties broken by id so new
// users sitting at zero keep a stable order.
func (r *PostgresRepository) ListUsersOrderedByBalance(ctx context.Context) ([]models.PublicUser, error) {
	query := `
		SELECT id, username, COALESCE(shilka_coins, 0) AS shilka_coins
		FROM users
		ORDER BY COALESCE(shilka_coins, 0) DESC, id ASC
	`

	users := []models.PublicUser{}
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, err
	}
	return users, nil
}

// Typing session repository methods
func (r *PostgresRepository) InsertTypingSession(ctx context.Context, session *models.TypingSession) error {
	query := `
		INSERT INTO typing_sessions
			(user_id, wpm, accuracy, duration, words, history, typing_mode, language, test_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	return r.db.QueryRowxContext(ctx, query,
		session.UserID, session.WPM, session.Accuracy, session.Duration,
		session.Words, session.History, session.TypingMode, session.Language,
		session.TestType, session.CreatedAt).Scan(&session.ID)
}

func (r *PostgresRepository) GetTypingSession(ctx context.Context, id int64) (*models.TypingSession, error) {
	var session models.TypingSession
	err := r.db.GetContext(ctx, &session, `SELECT * FROM typing_sessions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Session not found
		}
		return nil, err
	}
	return &session, nil
}

func (r *PostgresRepository) ListTypingSessions(
	ctx context.Context,
	userID int64,
	minWPM float64,
	limit int,
) ([]models.TypingSession, error) {
	query := `
		SELECT * FROM typing_sessions
		WHERE user_id = $1 AND wpm > $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	sessions := []models.TypingSession{}
	if err := r.db.SelectContext(ctx, &sessions, query, userID, minWPM, limit); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *PostgresRepository) ListAllSessionsForUser(ctx context.Context, userID int64) ([]models.TypingSession, error) {
	sessions := []models.TypingSession{}
	err := r.db.SelectContext(ctx, &sessions,
		`SELECT * FROM typing_sessions WHERE user_id = $1 ORDER BY id ASC`, userID)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// Coin transaction repository methods
func (r *PostgresRepository) FindTransactionBySessionID(ctx context.Context, sessionID int64) (*models.CoinTransaction, error) {
	var txn models.CoinTransaction
	err := r.db.GetContext(ctx, &txn,
		`SELECT * FROM coin_transactions WHERE typing_session_id = $1`, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not rewarded yet
		}
		return nil, err
	}
	return &txn, nil
}

// ApplyCoinTransaction adds txn.Amount to the owner's balance and records txn,
// both in one transaction with the user row locked. The amount is clamped so
// the balance never drops below zero; txn.Amount holds the applied value on
// return. A second transaction for the same session yields
// ErrDuplicateTransaction and changes nothing.
func (r *PostgresRepository) ApplyCoinTransaction(ctx context.Context, txn *models.CoinTransaction) (balance int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	// Lock the user row; concurrent rewards for one user queue up here
	err = tx.GetContext(ctx, &balance,
		`SELECT COALESCE(shilka_coins, 0) FROM users WHERE id = $1 FOR UPDATE`, txn.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrUserNotFound
			return 0, err
		}
		err = mapPQError(err, nil)
		return 0, err
	}

	if txn.TypingSessionID != nil {
		var exists bool
		err = tx.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM coin_transactions WHERE typing_session_id = $1)`,
			*txn.TypingSessionID)
		if err != nil {
			err = mapPQError(err, nil)
			return 0, err
		}
		if exists {
			err = ErrDuplicateTransaction
			return 0, err
		}
	}

	applied := scoring.ClampDelta(balance, txn.Amount)
	balance += applied

	_, err = tx.ExecContext(ctx, `UPDATE users SET shilka_coins = $1 WHERE id = $2`, balance, txn.UserID)
	if err != nil {
		err = mapPQError(err, nil)
		return 0, err
	}

	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO coin_transactions (user_id, typing_session_id, amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, txn.UserID, txn.TypingSessionID, applied, txn.CreatedAt).Scan(&txn.ID)
	if err != nil {
		err = mapPQError(err, ErrDuplicateTransaction)
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		err = mapPQError(err, nil)
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	txn.Amount = applied
	return balance, nil
}
