package lock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("lock: acquisition timed out")
	// ErrStolen is matched by every *StolenError.
	ErrStolen = errors.New("lock: token stolen")
	// ErrReleased is returned by Refresh after Release.
	ErrReleased = errors.New("lock: guard already released")
)

// errHeld signals a live token owned by someone else.
var errHeld = errors.New("lock: held")

// TimeoutError is returned when Acquire could not lock every resource before
// its deadline.
type TimeoutError struct {
	// Resources is the sorted set that was requested.
	Resources []string
	// Blocker is the id that was held on the last attempt.
	Blocker  string
	Waited   time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("lock: timed out after %s (%d attempts) acquiring [%s], blocked on %q",
		e.Waited.Round(time.Millisecond), e.Attempts, strings.Join(e.Resources, ", "), e.Blocker)
}

// Unwrap returns ErrTimeout.
func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// StolenError is reported when a guard finds its token replaced or gone.
type StolenError struct {
	ResourceID string
	HolderID   string
}

func (e *StolenError) Error() string {
	return fmt.Sprintf("lock: token for %q held by %s was stolen", e.ResourceID, e.HolderID)
}

// Unwrap returns ErrStolen.
func (e *StolenError) Unwrap() error { return ErrStolen }
