package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shilkatype/server/internal/models"
	"github.com/shilkatype/server/internal/scoring"
)

// MemoryRepository is a process-local Repository. A single mutex plays the
// role of the row locks and unique constraints of the Postgres schema.
type MemoryRepository struct {
	mu sync.Mutex

	users        map[int64]*models.User
	sessions     map[int64]*models.TypingSession
	transactions []models.CoinTransaction
	rewarded     map[int64]struct{}

	nextUserID    int64
	nextSessionID int64
	nextTxnID     int64
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:    map[int64]*models.User{},
		sessions: map[int64]*models.TypingSession{},
		rewarded: map[int64]struct{}{},
	}
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// User repository methods
func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username {
			return ErrDuplicateUser
		}
	}

	r.nextUserID++
	user.ID = r.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *MemoryRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (r *MemoryRepository) GetUserBalance(ctx context.Context, userID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	return u.ShilkaCoins, nil
}

func (r *MemoryRepository) ListUsersOrderedByBalance(ctx context.Context) ([]models.PublicUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]models.PublicUser, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u.Public())
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].ShilkaCoins == users[j].ShilkaCoins {
			return users[i].ID < users[j].ID
		}
		return users[i].ShilkaCoins > users[j].ShilkaCoins
	})
	return users, nil
}

// Typing session repository methods
func (r *MemoryRepository) InsertTypingSession(ctx context.Context, session *models.TypingSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[session.UserID]; !ok {
		return ErrUserNotFound
	}

	r.nextSessionID++
	session.ID = r.nextSessionID
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	stored := *session
	r.sessions[session.ID] = &stored
	return nil
}

func (r *MemoryRepository) GetTypingSession(ctx context.Context, id int64) (*models.TypingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	out := *s
	return &out, nil
}

func (r *MemoryRepository) ListTypingSessions(ctx context.Context, userID int64, minWPM float64, limit int) ([]models.TypingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := []models.TypingSession{}
	for _, s := range r.sessions {
		if s.UserID == userID && s.WPM > minWPM {
			sessions = append(sessions, *s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID > sessions[j].ID
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	if limit >= 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (r *MemoryRepository) ListAllSessionsForUser(ctx context.Context, userID int64) ([]models.TypingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := []models.TypingSession{}
	for _, s := range r.sessions {
		if s.UserID == userID {
			sessions = append(sessions, *s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

// Coin transaction repository methods
func (r *MemoryRepository) FindTransactionBySessionID(ctx context.Context, sessionID int64) (*models.CoinTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, txn := range r.transactions {
		if txn.TypingSessionID != nil && *txn.TypingSessionID == sessionID {
			out := txn
			return &out, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ApplyCoinTransaction(ctx context.Context, txn *models.CoinTransaction) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[txn.UserID]
	if !ok {
		return 0, ErrUserNotFound
	}
	if txn.TypingSessionID != nil {
		if _, done := r.rewarded[*txn.TypingSessionID]; done {
			return 0, ErrDuplicateTransaction
		}
	}

	applied := scoring.ClampDelta(u.ShilkaCoins, txn.Amount)
	u.ShilkaCoins += applied

	r.nextTxnID++
	txn.ID = r.nextTxnID
	txn.Amount = applied
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	stored := *txn
	if txn.TypingSessionID != nil {
		sessionID := *txn.TypingSessionID
		stored.TypingSessionID = &sessionID
		r.rewarded[sessionID] = struct{}{}
	}
	r.transactions = append(r.transactions, stored)

	return u.ShilkaCoins, nil
}

// Transactions returns a copy of every recorded coin transaction for a user
func (r *MemoryRepository) Transactions(userID int64) []models.CoinTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.CoinTransaction
	for _, txn := range r.transactions {
		if txn.UserID == userID {
			out = append(out, txn)
		}
	}
	return out
}
