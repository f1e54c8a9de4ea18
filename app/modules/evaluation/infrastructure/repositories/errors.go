package evaluationdb

import (
	"errors"

	"github.com/uptrace/bun/driver/pgdriver"
)

// Sentinel errors for the repository layer. Infrastructure signals only; the
// service layer decides whether they are domain failures.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyResolved indicates a guarded battle update matched zero rows
	// because the battle already carries a result.
	ErrAlreadyResolved = errors.New("battle already resolved")

	// ErrDuplicateLink indicates the (module, evaluator) pair is already
	// linked.
	ErrDuplicateLink = errors.New("evaluator already linked to module")

	// ErrConcurrencyConflict indicates the transaction lost a row-level race
	// (serialization failure, deadlock, or a unique-key race on score
	// creation). The whole operation is safe to retry.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)

// Postgres SQLSTATE codes that mean "retry the whole transaction".
const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
	sqlstateLockNotAvailable     = "55P03"
	sqlstateUniqueViolation      = "23505"
)

// IsRetriableConflict reports whether err is a row-contention failure that a
// caller should resolve by re-reading state and retrying the operation.
func IsRetriableConflict(err error) bool {
	if errors.Is(err, ErrConcurrencyConflict) {
		return true
	}
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Field('C') {
	case sqlstateSerializationFailure, sqlstateDeadlockDetected, sqlstateLockNotAvailable, sqlstateUniqueViolation:
		return true
	}
	return false
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == sqlstateUniqueViolation
}
