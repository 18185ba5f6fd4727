package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shilkatype/server/internal/models"
	"github.com/shilkatype/server/internal/repository"
	"github.com/shilkatype/server/internal/scoring"
)

// GetCharErrorStats aggregates per-character error rates over every session
// the user has stored
func (s *DefaultService) GetCharErrorStats(ctx context.Context, userID int64) ([]models.CharErrorStat, error) {
	return cached(ctx, s, charErrorsKey(userID), s.opts.CharErrorsTTL, func() ([]models.CharErrorStat, error) {
		sessions, err := s.repo.ListAllSessionsForUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("error loading typing sessions: %w", err)
		}

		histories := make([]string, 0, len(sessions))
		for _, session := range sessions {
			histories = append(histories, session.History)
		}

		stats := scoring.CharErrorStats(histories)
		if stats == nil {
			stats = []models.CharErrorStat{}
		}
		return stats, nil
	})
}

// GetLeaderboard lists every user by balance, richest first
func (s *DefaultService) GetLeaderboard(ctx context.Context) ([]models.PublicUser, error) {
	return cached(ctx, s, leaderboardKey, s.opts.LeaderboardTTL, func() ([]models.PublicUser, error) {
		users, err := s.repo.ListUsersOrderedByBalance(ctx)
		if err != nil {
			return nil, fmt.Errorf("error loading leaderboard: %w", err)
		}
		if users == nil {
			users = []models.PublicUser{}
		}
		return users, nil
	})
}

// AddCoins records a manual balance adjustment. Negative amounts are clamped
// so the balance stops at zero.
func (s *DefaultService) AddCoins(ctx context.Context, userID int64, amount int) (*models.PublicUser, error) {
	txn, balance, err := s.applyWithRetry(ctx, models.CoinTransaction{
		UserID: userID,
		Amount: amount,
	})
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error adjusting balance: %w", err)
	}
	s.logger.Info("balance adjusted", "user_id", userID, "requested", amount, "applied", txn.Amount, "balance", balance)

	s.runHooks(ctx, s.invalidate(leaderboardPattern), s.publishLeaderboard())

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	public := user.Public()
	return &public, nil
}
