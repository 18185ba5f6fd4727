package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicateUser        = errors.New("username already registered")
	ErrDuplicateTransaction = errors.New("session already rewarded")
	ErrConcurrentUpdate     = errors.New("concurrent balance update")
)

// PostgreSQL error codes we translate
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// mapPQError translates driver errors into repository sentinels. onUnique is
// returned for unique violations.
func mapPQError(err error, onUnique error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		if onUnique != nil {
			return onUnique
		}
	case pqSerializationFailure, pqDeadlockDetected:
		return fmt.Errorf("%w: %s", ErrConcurrentUpdate, pqErr.Message)
	}
	return err
}
