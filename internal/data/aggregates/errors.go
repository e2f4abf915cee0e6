package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
)

var (
	// ErrValidation indicates caller input validation failure.
	ErrValidation = errors.New("aggregate validation")
	// ErrInvariant indicates invariant rule violation.
	ErrInvariant = errors.New("aggregate invariant violation")
	// ErrConflict indicates optimistic/concurrency conflict.
	ErrConflict = errors.New("aggregate conflict")
	// ErrRetryable indicates transient retryable failure.
	ErrRetryable = errors.New("aggregate retryable")
	// ErrForbidden indicates the actor may not perform the write.
	ErrForbidden = errors.New("aggregate forbidden")
	// ErrDuplicateTransaction indicates an external transaction id already bound elsewhere.
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
	// ErrPrecondition indicates the target is in a state that blocks the write.
	ErrPrecondition = errors.New("aggregate precondition failed")
)

// ValidationError tags an error as validation failure.
func ValidationError(msg string) error {
	return errors.Join(ErrValidation, errors.New(strings.TrimSpace(msg)))
}

// InvariantError tags an error as invariant violation.
func InvariantError(msg string) error {
	return errors.Join(ErrInvariant, errors.New(strings.TrimSpace(msg)))
}

// ConflictError tags an error as conflict failure.
func ConflictError(msg string) error {
	return errors.Join(ErrConflict, errors.New(strings.TrimSpace(msg)))
}

// RetryableError tags an error as retryable failure.
func RetryableError(msg string) error {
	return errors.Join(ErrRetryable, errors.New(strings.TrimSpace(msg)))
}

func ForbiddenError(msg string) error {
	return errors.Join(ErrForbidden, errors.New(strings.TrimSpace(msg)))
}

func DuplicateTransactionError(msg string) error {
	return errors.Join(ErrDuplicateTransaction, errors.New(strings.TrimSpace(msg)))
}

func PreconditionError(msg string) error {
	return errors.Join(ErrPrecondition, errors.New(strings.TrimSpace(msg)))
}

// MapError maps infrastructure/domain failures into aggregate error codes.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*domainagg.Error); ok {
		return err
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		return domainagg.Wrap(aggErr.Code, op, err)
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ledger.ErrUnknownStatus):
		return domainagg.Wrap(domainagg.CodeValidation, op, err)
	case errors.Is(err, ErrInvariant):
		return domainagg.Wrap(domainagg.CodeInvariantViolation, op, err)
	case errors.Is(err, ledger.ErrInvalidTransition):
		return domainagg.Wrap(domainagg.CodeInvalidTransition, op, err)
	case errors.Is(err, ErrDuplicateTransaction):
		return domainagg.Wrap(domainagg.CodeDuplicateTransaction, op, err)
	case errors.Is(err, ErrForbidden):
		return domainagg.Wrap(domainagg.CodeForbidden, op, err)
	case errors.Is(err, ErrPrecondition):
		return domainagg.Wrap(domainagg.CodePreconditionFailed, op, err)
	case errors.Is(err, ErrConflict):
		return domainagg.Wrap(domainagg.CodeConflict, op, err)
	case errors.Is(err, ErrRetryable):
		return domainagg.Wrap(domainagg.CodeRetryable, op, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainagg.Wrap(domainagg.CodeNotFound, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			if isTransactionIDConstraint(pgErr.ConstraintName + " " + pgErr.Message + " " + pgErr.Detail) {
				return domainagg.Wrap(domainagg.CodeDuplicateTransaction, op, err)
			}
			return domainagg.Wrap(domainagg.CodeConflict, op, err) // unique_violation
		case "23503":
			return domainagg.Wrap(domainagg.CodePreconditionFailed, op, err) // foreign_key_violation
		case "23514":
			return domainagg.Wrap(domainagg.CodeInvariantViolation, op, err) // check_violation
		case "40001", "40P01", "55P03":
			return domainagg.Wrap(domainagg.CodeRetryable, op, err) // serialization/deadlock/lock_not_available
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "duplicate key"),
		strings.Contains(msg, "unique constraint"),
		strings.Contains(msg, "already exists"):
		if isTransactionIDConstraint(msg) {
			return domainagg.Wrap(domainagg.CodeDuplicateTransaction, op, err)
		}
		return domainagg.Wrap(domainagg.CodeConflict, op, err)
	case strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "lock not available"),
		strings.Contains(msg, "temporar"):
		return domainagg.Wrap(domainagg.CodeRetryable, op, err)
	default:
		return domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
}

func isTransactionIDConstraint(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "idx_donation_transaction_id") || strings.Contains(s, "transaction_id")
}
