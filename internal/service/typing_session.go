package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shilkatype/server/internal/models"
	"github.com/shilkatype/server/internal/repository"
	"github.com/shilkatype/server/internal/scoring"
)

const (
	DefaultSessionsLimit = 10
	MaxSessionsLimit     = 100
)

// CreateTypingSession persists a completed run, rewards it and notifies
// subscribers. Only a failure to persist the session is returned; reward and
// notification failures leave the session stored and are logged.
func (s *DefaultService) CreateTypingSession(
	ctx context.Context,
	userID int64,
	req models.TypingSessionRequest,
) (*models.TypingSession, error) {
	words, err := json.Marshal(req.Words)
	if err != nil {
		return nil, fmt.Errorf("error encoding words: %w", err)
	}
	history, err := json.Marshal(req.History)
	if err != nil {
		return nil, fmt.Errorf("error encoding history: %w", err)
	}

	session := &models.TypingSession{
		UserID:     userID,
		WPM:        scoring.ComputeWPM(req.Words, req.History, req.Duration, req.WPM),
		Accuracy:   scoring.ComputeAccuracy(req.History, req.Accuracy),
		Duration:   req.Duration,
		Words:      string(words),
		History:    string(history),
		TypingMode: req.Mode,
		Language:   req.Language,
		TestType:   req.TestType,
	}

	if err := s.repo.InsertTypingSession(ctx, session); err != nil {
		return nil, fmt.Errorf("error saving typing session: %w", err)
	}

	if _, err := s.rewardSession(ctx, session); err != nil {
		s.logger.Error("typing session stored without reward",
			"user_id", userID, "session_id", session.ID, "error", err)
	}

	s.runHooks(ctx, s.sessionHooks(userID)...)
	return session, nil
}

// RewardTypingSession re-runs the reward step for a stored session. It is
// safe to call any number of times.
func (s *DefaultService) RewardTypingSession(ctx context.Context, userID, sessionID int64) error {
	session, err := s.repo.GetTypingSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("error getting typing session: %w", err)
	}
	if session == nil || session.UserID != userID {
		return ErrSessionNotFound
	}

	applied, err := s.rewardSession(ctx, session)
	if err != nil {
		return err
	}
	if applied {
		s.runHooks(ctx, s.sessionHooks(userID)...)
	}
	return nil
}

// rewardSession applies the session's coin delta unless a transaction for it
// already exists. It reports whether a new transaction was recorded.
func (s *DefaultService) rewardSession(ctx context.Context, session *models.TypingSession) (bool, error) {
	existing, err := s.repo.FindTransactionBySessionID(ctx, session.ID)
	if err != nil {
		return false, fmt.Errorf("error checking session reward: %w", err)
	}
	if existing != nil {
		s.logger.Debug("session already rewarded", "session_id", session.ID, "transaction_id", existing.ID)
		return false, nil
	}

	delta, fellBack := scoring.SessionReward(session.History, session.WPM, session.Accuracy, session.Duration, session.TestType)
	if fellBack {
		s.logger.Warn("unreadable keystroke history, using fallback reward",
			"session_id", session.ID, "delta", delta)
	}

	sessionID := session.ID
	txn, balance, err := s.applyWithRetry(ctx, models.CoinTransaction{
		UserID:          session.UserID,
		TypingSessionID: &sessionID,
		Amount:          delta,
	})
	if errors.Is(err, repository.ErrDuplicateTransaction) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error applying session reward: %w", err)
	}

	s.logger.Info("session rewarded",
		"user_id", session.UserID, "session_id", session.ID,
		"delta", delta, "applied", txn.Amount, "balance", balance)
	return true, nil
}

// applyWithRetry applies txn, retrying lock conflicts with a linear backoff.
// Each attempt works on a fresh copy so a failed attempt leaves no trace.
func (s *DefaultService) applyWithRetry(ctx context.Context, txn models.CoinTransaction) (*models.CoinTransaction, int, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxRewardRetries; attempt++ {
		try := txn
		balance, err := s.repo.ApplyCoinTransaction(ctx, &try)
		if err == nil {
			return &try, balance, nil
		}
		if !errors.Is(err, repository.ErrConcurrentUpdate) {
			return nil, 0, err
		}

		lastErr = err
		s.logger.Warn("balance update conflict, retrying",
			"user_id", txn.UserID, "attempt", attempt, "error", err)
		if attempt == s.opts.MaxRewardRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(time.Duration(attempt) * s.opts.RetryBackoff):
		}
	}
	return nil, 0, fmt.Errorf("giving up after %d attempts: %w", s.opts.MaxRewardRetries, lastErr)
}

// ListTypingSessions returns the user's most recent sessions faster than minWPM
func (s *DefaultService) ListTypingSessions(ctx context.Context, userID int64, minWPM float64, limit int) ([]models.TypingSession, error) {
	if limit <= 0 {
		limit = DefaultSessionsLimit
	}
	if limit > MaxSessionsLimit {
		limit = MaxSessionsLimit
	}

	return cached(ctx, s, sessionsKey(userID, minWPM, limit), s.opts.SessionsTTL, func() ([]models.TypingSession, error) {
		sessions, err := s.repo.ListTypingSessions(ctx, userID, minWPM, limit)
		if err != nil {
			return nil, fmt.Errorf("error listing typing sessions: %w", err)
		}
		if sessions == nil {
			sessions = []models.TypingSession{}
		}
		return sessions, nil
	})
}
