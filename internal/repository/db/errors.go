package db

import (
	"errors"

	"github.com/lib/pq"
)

// SQLSTATE codes the repository reacts to.
const (
	CodeUniqueViolation      = "23505"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeLockNotAvailable     = "55P03"
)

// ErrorCode extracts the SQLSTATE and constraint name from a driver error.
func ErrorCode(err error) (code string, constraint string, ok bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return "", "", false
	}
	return string(pqErr.Code), pqErr.Constraint, true
}

// IsRetryable reports errors after which the whole transaction may be safely retried.
func IsRetryable(err error) bool {
	code, _, ok := ErrorCode(err)
	if !ok {
		return false
	}
	switch code {
	case CodeSerializationFailure, CodeDeadlockDetected, CodeLockNotAvailable:
		return true
	default:
		return false
	}
}

// IsUniqueViolation reports whether err was raised by the named unique constraint or index.
func IsUniqueViolation(err error, constraint string) bool {
	code, name, ok := ErrorCode(err)
	return ok && code == CodeUniqueViolation && name == constraint
}
