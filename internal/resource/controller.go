package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxWorkers is the maximum number of concurrent document loads during an
	// index rebuild.
	// If 0, defaults to 1.
	MaxWorkers int64

	// PollsPerSecond caps lock acquisition attempts against the blob store.
	// If 0, unlimited.
	PollsPerSecond float64

	// PollBurst is the token bucket size for polling.
	// If 0, defaults to 1.
	PollBurst int
}

// Controller manages shared concurrency and polling budgets.
type Controller struct {
	cfg Config

	workers *semaphore.Weighted

	// nil if unlimited
	poll *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	if cfg.PollBurst <= 0 {
		cfg.PollBurst = 1
	}

	c := &Controller{
		cfg:     cfg,
		workers: semaphore.NewWeighted(cfg.MaxWorkers),
	}

	if cfg.PollsPerSecond > 0 {
		c.poll = rate.NewLimiter(rate.Limit(cfg.PollsPerSecond), cfg.PollBurst)
	}

	return c
}

// MaxWorkers returns the configured worker limit.
func (c *Controller) MaxWorkers() int {
	if c == nil {
		return 1
	}
	return int(c.cfg.MaxWorkers)
}

// AcquireWorker reserves a worker slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workers.Acquire(ctx, 1)
}

// ReleaseWorker releases a worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workers.Release(1)
}

// WaitPoll blocks until the poll budget allows one store round trip.
// It fails early if ctx would expire before a token is available.
func (c *Controller) WaitPoll(ctx context.Context) error {
	if c == nil || c.poll == nil {
		return ctx.Err()
	}
	return c.poll.Wait(ctx)
}

