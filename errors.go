package redline

import (
	"errors"
	"fmt"

	"github.com/hupe1980/redline/blobstore"
	"github.com/hupe1980/redline/lock"
	"github.com/hupe1980/redline/textedit"
)

var (
	// ErrValidation is matched by malformed requests: bad ranges, empty
	// targets, occurrences below 1, empty ids.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned for missing or deleted documents.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when the stored document changed between read
	// and write.
	ErrConflict = errors.New("version conflict")

	// ErrLockTimeout is matched by *lock.TimeoutError.
	ErrLockTimeout = lock.ErrTimeout

	// ErrLockStolen is matched by *lock.StolenError.
	ErrLockStolen = lock.ErrStolen

	// ErrTargetNotFound is matched by *textedit.TargetNotFoundError.
	ErrTargetNotFound = textedit.ErrTargetNotFound
)

// ConflictError reports a write whose expected version no longer matched.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConflictError struct {
	DocumentID string
	Expected   int64
	cause      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: expected version %d", e.DocumentID, e.Expected)
}

// Is matches ErrConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.cause }

// Kind classifies the outcome of a batch item.
type Kind string

// Outcome kinds.
const (
	KindOK             Kind = "ok"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindTargetNotFound Kind = "target_not_found"
	KindConflict       Kind = "conflict"
	KindLockTimeout    Kind = "lock_timeout"
	KindInternal       Kind = "internal"
)

// KindOf classifies err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTargetNotFound):
		return KindTargetNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrLockTimeout):
		return KindLockTimeout
	default:
		return KindInternal
	}
}

// translateError maps leaf package errors onto the root sentinels while
// keeping the original in the chain.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if textedit.IsValidation(err) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
