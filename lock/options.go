package lock

import (
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/redline/internal/resource"
)

const (
	// DefaultTTL is the advisory lifetime of a token.
	DefaultTTL = 5 * time.Minute
	// DefaultTimeout bounds a single Acquire call.
	DefaultTimeout = 30 * time.Second
)

type options struct {
	ttl        time.Duration
	timeout    time.Duration
	backoff    Backoff
	logger     *slog.Logger
	now        func() time.Time
	controller *resource.Controller
	onSteal    func(resourceID string)
	onStolen   func(resourceID string)
}

func defaultOptions() options {
	return options{
		ttl:     DefaultTTL,
		timeout: DefaultTimeout,
		backoff: DefaultBackoff(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
}

// Option configures a Manager.
type Option func(*options)

// WithTTL sets the advisory token lifetime.
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithTimeout sets the default Acquire deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithBackoff sets the retry schedule for contended acquisitions.
func WithBackoff(b Backoff) Option {
	return func(o *options) { o.backoff = b.normalized() }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the time source for token timestamps and expiry checks.
// Deadlines and backoff always use the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithController throttles store round trips through rc's poll budget.
func WithController(rc *resource.Controller) Option {
	return func(o *options) { o.controller = rc }
}

// WithStealHook is called after an expired token was taken over.
func WithStealHook(fn func(resourceID string)) Option {
	return func(o *options) { o.onSteal = fn }
}

// WithStolenHook is called when Release or Refresh finds a token stolen.
func WithStolenHook(fn func(resourceID string)) Option {
	return func(o *options) { o.onStolen = fn }
}

// AcquireOption configures a single Acquire call.
type AcquireOption func(*acquireOptions)

type acquireOptions struct {
	timeout time.Duration
}

// Timeout overrides the Manager's default deadline for one call.
func Timeout(d time.Duration) AcquireOption {
	return func(o *acquireOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}
