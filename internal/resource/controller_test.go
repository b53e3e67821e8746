package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acquireWithin(c *Controller, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return c.AcquireWorker(ctx)
}

func TestController_Workers(t *testing.T) {
	c := NewController(Config{MaxWorkers: 2})
	assert.Equal(t, 2, c.MaxWorkers())

	require.NoError(t, c.AcquireWorker(t.Context()))
	require.NoError(t, c.AcquireWorker(t.Context()))

	assert.ErrorIs(t, acquireWithin(c, 10*time.Millisecond), context.DeadlineExceeded)

	c.ReleaseWorker()
	assert.NoError(t, acquireWithin(c, 10*time.Millisecond))
}

func TestController_DefaultWorkers(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, 1, c.MaxWorkers())
	require.NoError(t, acquireWithin(c, 10*time.Millisecond))
	assert.ErrorIs(t, acquireWithin(c, 10*time.Millisecond), context.DeadlineExceeded)
}

func TestController_Poll(t *testing.T) {
	c := NewController(Config{PollsPerSecond: 1, PollBurst: 2})

	require.NoError(t, c.WaitPoll(t.Context()))
	require.NoError(t, c.WaitPoll(t.Context()))

	// The next token is a second away.
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, c.WaitPoll(ctx))
}

func TestController_UnlimitedPoll(t *testing.T) {
	c := NewController(Config{})
	for i := 0; i < 100; i++ {
		require.NoError(t, c.WaitPoll(t.Context()))
	}
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireWorker(t.Context()))
	c.ReleaseWorker()
	assert.Equal(t, 1, c.MaxWorkers())

	require.NoError(t, c.WaitPoll(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, c.WaitPoll(ctx), context.Canceled)
}
