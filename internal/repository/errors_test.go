package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapPQError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		onUnique error
		want     error
	}{
		{"UniqueViolation", &pq.Error{Code: "23505"}, ErrDuplicateTransaction, ErrDuplicateTransaction},
		{"UniqueViolationWithoutSentinel", &pq.Error{Code: "23505"}, nil, nil},
		{"SerializationFailure", &pq.Error{Code: "40001", Message: "could not serialize access"}, nil, ErrConcurrentUpdate},
		{"DeadlockDetected", &pq.Error{Code: "40P01", Message: "deadlock detected"}, nil, ErrConcurrentUpdate},
		{"WrappedDeadlock", fmt.Errorf("lock re-check: %w", &pq.Error{Code: "40P01"}), nil, ErrConcurrentUpdate},
		{"OtherDriverError", &pq.Error{Code: "42P01"}, nil, nil},
		{"NotADriverError", sql.ErrConnDone, nil, sql.ErrConnDone},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapPQError(tc.err, tc.onUnique)
			if tc.want == nil {
				// Unmapped errors pass through untouched
				assert.Same(t, tc.err, got)
				return
			}
			assert.True(t, errors.Is(got, tc.want), "got %v", got)
		})
	}
}
