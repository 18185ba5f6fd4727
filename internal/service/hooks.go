package service

import (
	"context"
	"fmt"
)

// Cache keys and invalidation patterns for per-user and global views
const (
	leaderboardKey     = "leaderboard"
	leaderboardPattern = "leaderboard*"
)

func sessionsKey(userID int64, minWPM float64, limit int) string {
	return fmt.Sprintf("sessions:%d:%g:%d", userID, minWPM, limit)
}

func sessionsPattern(userID int64) string {
	return fmt.Sprintf("sessions:%d:*", userID)
}

func charErrorsKey(userID int64) string {
	return fmt.Sprintf("char_errors:%d", userID)
}

// hook is a notification executed after a transaction has committed
type hook struct {
	name string
	run  func(ctx context.Context) error
}

// runHooks executes hooks in order on a context detached from the request so
// that a disconnecting client does not cut notifications short. Failures are
// logged and never reach the caller.
func (s *DefaultService) runHooks(ctx context.Context, hooks ...hook) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	defer cancel()

	for _, h := range hooks {
		if err := h.run(ctx); err != nil {
			s.logger.Warn("post-commit hook failed", "hook", h.name, "error", err)
		}
	}
}

func (s *DefaultService) invalidate(pattern string) hook {
	return hook{
		name: "invalidate " + pattern,
		run: func(ctx context.Context) error {
			s.generation.Add(1)
			return s.notifier.Invalidate(ctx, pattern)
		},
	}
}

func (s *DefaultService) publishLeaderboard() hook {
	return hook{
		name: "publish leaderboard",
		run: func(ctx context.Context) error {
			users, err := s.repo.ListUsersOrderedByBalance(ctx)
			if err != nil {
				return fmt.Errorf("error loading leaderboard: %w", err)
			}
			return s.notifier.PublishLeaderboard(ctx, users)
		},
	}
}

// sessionHooks covers every view touched by a change to one user's sessions
// or balance
func (s *DefaultService) sessionHooks(userID int64) []hook {
	return []hook{
		s.invalidate(sessionsPattern(userID)),
		s.invalidate(charErrorsKey(userID)),
		s.invalidate(leaderboardPattern),
		s.publishLeaderboard(),
	}
}
