package textedit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is matched by every *RangeError.
	ErrInvalidRange = errors.New("textedit: invalid range")
	// ErrEmptyTarget is returned when a target edit has no target text.
	ErrEmptyTarget = errors.New("textedit: empty target")
	// ErrInvalidOccurrence is returned for occurrences below 1.
	ErrInvalidOccurrence = errors.New("textedit: occurrence must be at least 1")
	// ErrTargetNotFound is matched by every *TargetNotFoundError.
	ErrTargetNotFound = errors.New("textedit: target occurrence not found")
)

// RangeError reports range bounds outside 0 <= Start <= End <= Length.
type RangeError struct {
	Start  int
	End    int
	Length int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("textedit: invalid range [%d, %d) for text of length %d", e.Start, e.End, e.Length)
}

// Unwrap returns ErrInvalidRange.
func (e *RangeError) Unwrap() error { return ErrInvalidRange }

// TargetNotFoundError reports an occurrence greater than Matches.
type TargetNotFoundError struct {
	Target     string
	Occurrence int
	Matches    int
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("textedit: occurrence %d of %q not found (%d matches)", e.Occurrence, e.Target, e.Matches)
}

// Unwrap returns ErrTargetNotFound.
func (e *TargetNotFoundError) Unwrap() error { return ErrTargetNotFound }

// IsValidation reports whether err rejects the edit itself rather than a
// missing match.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrEmptyTarget) ||
		errors.Is(err, ErrInvalidOccurrence)
}
