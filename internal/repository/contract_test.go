package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shilkatype/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryContract exercises behavior every Repository must share.
// newRepo must return an empty repository.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	createUser := func(t *testing.T, repo Repository, name string) *models.User {
		t.Helper()
		user := &models.User{Username: name, Password: "hash"}
		require.NoError(t, repo.CreateUser(ctx, user))
		require.NotZero(t, user.ID)
		return user
	}

	insertSession := func(t *testing.T, repo Repository, userID int64, wpm float64, at time.Time) *models.TypingSession {
		t.Helper()
		session := &models.TypingSession{
			UserID:    userID,
			WPM:       wpm,
			Accuracy:  100,
			Words:     `["a"]`,
			History:   `[[{"char":"a","correct":true,"time":0}]]`,
			CreatedAt: at,
		}
		require.NoError(t, repo.InsertTypingSession(ctx, session))
		require.NotZero(t, session.ID)
		return session
	}

	t.Run("Users", func(t *testing.T) {
		repo := newRepo(t)
		user := createUser(t, repo, "alice")

		err := repo.CreateUser(ctx, &models.User{Username: "alice", Password: "x"})
		assert.ErrorIs(t, err, ErrDuplicateUser)

		found, err := repo.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, user.ID, found.ID)

		missing, err := repo.GetUserByID(ctx, user.ID+1000)
		require.NoError(t, err)
		assert.Nil(t, missing)

		_, err = repo.GetUserBalance(ctx, user.ID+1000)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("SessionRewardIsAppliedOnce", func(t *testing.T) {
		repo := newRepo(t)
		user := createUser(t, repo, "bob")
		session := insertSession(t, repo, user.ID, 40, time.Now().UTC())

		txn := &models.CoinTransaction{UserID: user.ID, TypingSessionID: &session.ID, Amount: 7}
		balance, err := repo.ApplyCoinTransaction(ctx, txn)
		require.NoError(t, err)
		assert.Equal(t, 7, balance)
		assert.Equal(t, 7, txn.Amount)

		again := &models.CoinTransaction{UserID: user.ID, TypingSessionID: &session.ID, Amount: 7}
		_, err = repo.ApplyCoinTransaction(ctx, again)
		assert.ErrorIs(t, err, ErrDuplicateTransaction)

		balance, err = repo.GetUserBalance(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, balance)

		found, err := repo.FindTransactionBySessionID(ctx, session.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, 7, found.Amount)
	})

	t.Run("BalanceIsClampedAtZero", func(t *testing.T) {
		repo := newRepo(t)
		user := createUser(t, repo, "carol")

		_, err := repo.ApplyCoinTransaction(ctx, &models.CoinTransaction{UserID: user.ID, Amount: 1})
		require.NoError(t, err)

		session := insertSession(t, repo, user.ID, 10, time.Now().UTC())
		txn := &models.CoinTransaction{UserID: user.ID, TypingSessionID: &session.ID, Amount: -5}
		balance, err := repo.ApplyCoinTransaction(ctx, txn)
		require.NoError(t, err)
		assert.Equal(t, 0, balance)
		assert.Equal(t, -1, txn.Amount)

		found, err := repo.FindTransactionBySessionID(ctx, session.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, -1, found.Amount)
	})

	t.Run("ConcurrentRewardsForOneUser", func(t *testing.T) {
		repo := newRepo(t)
		user := createUser(t, repo, "dave")

		const workers = 20
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				session := insertSession(t, repo, user.ID, float64(i+1), time.Now().UTC())
				_, err := repo.ApplyCoinTransaction(ctx, &models.CoinTransaction{
					UserID:          user.ID,
					TypingSessionID: &session.ID,
					Amount:          i + 1,
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		balance, err := repo.GetUserBalance(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, workers*(workers+1)/2, balance)
	})

	t.Run("ConcurrentRewardsForOneSession", func(t *testing.T) {
		repo := newRepo(t)
		user := createUser(t, repo, "erin")
		session := insertSession(t, repo, user.ID, 30, time.Now().UTC())

		const workers = 10
		var (
			wg         sync.WaitGroup
			mu         sync.Mutex
			applied    int
			duplicates int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.ApplyCoinTransaction(ctx, &models.CoinTransaction{
					UserID:          user.ID,
					TypingSessionID: &session.ID,
					Amount:          3,
				})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					applied++
				case errors.Is(err, ErrDuplicateTransaction):
					duplicates++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, applied)
		assert.Equal(t, workers-1, duplicates)

		balance, err := repo.GetUserBalance(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, balance)
	})

	t.Run("Leaderboard", func(t *testing.T) {
		repo := newRepo(t)
		var users []*models.User
		for i := 0; i < 5; i++ {
			users = append(users, createUser(t, repo, fmt.Sprintf("user%d", i)))
		}
		for _, grant := range []struct{ idx, amount int }{{1, 5}, {3, 5}, {4, 9}} {
			_, err := repo.ApplyCoinTransaction(ctx, &models.CoinTransaction{
				UserID: users[grant.idx].ID,
				Amount: grant.amount,
			})
			require.NoError(t, err)
		}

		board, err := repo.ListUsersOrderedByBalance(ctx)
		require.NoError(t, err)
		require.Len(t, board, 5)

		var ids []int64
		for _, u := range board {
			ids = append(ids, u.ID)
		}
		assert.Equal(t, []int64{users[4].ID, users[1].ID, users[3].ID, users[0].ID, users[2].ID}, ids)
		assert.Equal(t, 9, board[0].ShilkaCoins)
	})

	t.Run("ListTypingSessions", func(t *testing.T) {
		repo := newRepo(t)
		user := createUser(t, repo, "frank")
		other := createUser(t, repo, "grace")

		base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		first := insertSession(t, repo, user.ID, 20, base)
		insertSession(t, repo, user.ID, 0, base.Add(time.Minute))
		third := insertSession(t, repo, user.ID, 35, base.Add(2*time.Minute))
		fourth := insertSession(t, repo, user.ID, 50, base.Add(3*time.Minute))
		insertSession(t, repo, other.ID, 90, base.Add(4*time.Minute))

		sessions, err := repo.ListTypingSessions(ctx, user.ID, 0, 10)
		require.NoError(t, err)
		require.Len(t, sessions, 3)
		assert.Equal(t, fourth.ID, sessions[0].ID)
		assert.Equal(t, third.ID, sessions[1].ID)
		assert.Equal(t, first.ID, sessions[2].ID)

		limited, err := repo.ListTypingSessions(ctx, user.ID, 0, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		all, err := repo.ListAllSessionsForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Len(t, all, 4)
		assert.Equal(t, `[[{"char":"a","correct":true,"time":0}]]`, all[0].History)
	})
}
