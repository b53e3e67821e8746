package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/redline/blobstore"
	"github.com/hupe1980/redline/internal/resource"
	"github.com/hupe1980/redline/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fastBackoff() Option {
	return WithBackoff(Backoff{Initial: time.Millisecond, Max: 20 * time.Millisecond, Factor: 2, Jitter: true})
}

func TestAcquireRelease(t *testing.T) {
	store := blobstore.NewMemoryStore()
	m := NewManager(store)
	ctx := context.Background()

	g, err := m.Acquire(ctx, []string{"b", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Resources())
	assert.NotEmpty(t, g.HolderID())

	names, err := store.List(ctx, KeyPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"locks/a.lock", "locks/b.lock"}, names)

	tok, err := m.Inspect(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, g.HolderID(), tok.HolderID)
	assert.Equal(t, tok.AcquiredAt.Add(DefaultTTL), tok.ExpiresAt)

	require.NoError(t, g.Release(ctx))
	require.NoError(t, g.Release(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestAcquire_Empty(t *testing.T) {
	m := NewManager(blobstore.NewMemoryStore())
	g, err := m.Acquire(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, g.Resources())
	assert.NoError(t, g.Release(context.Background()))
}

func TestRelease_IgnoresCancellation(t *testing.T) {
	store := blobstore.NewMemoryStore()
	m := NewManager(store)

	g, err := m.Acquire(context.Background(), []string{"x"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, g.Release(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestAcquire_Exclusive(t *testing.T) {
	store := blobstore.NewMemoryStore()
	m := NewManager(store, fastBackoff())
	ctx := context.Background()

	g1, err := m.Acquire(ctx, []string{"x"})
	require.NoError(t, err)

	acquired := make(chan *Guard, 1)
	go func() {
		g2, err := m.Acquire(ctx, []string{"x"}, Timeout(5*time.Second))
		if assert.NoError(t, err) {
			acquired <- g2
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second guard acquired while first was held")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, g1.Release(ctx))

	select {
	case g2 := <-acquired:
		assert.NotEqual(t, g1.HolderID(), g2.HolderID())
		require.NoError(t, g2.Release(ctx))
	case <-time.After(5 * time.Second):
		t.Fatal("second guard never acquired")
	}
}

func TestAcquire_Timeout(t *testing.T) {
	store := blobstore.NewMemoryStore()
	m := NewManager(store, fastBackoff())
	ctx := context.Background()

	g, err := m.Acquire(ctx, []string{"b"})
	require.NoError(t, err)
	defer g.Release(ctx)

	start := time.Now()
	_, err = m.Acquire(ctx, []string{"a", "b", "c"}, Timeout(60*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)

	require.ErrorIs(t, err, ErrTimeout)
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "b", te.Blocker)
	assert.Equal(t, []string{"a", "b", "c"}, te.Resources)
	assert.Positive(t, te.Attempts)

	// The partial lock on "a" was released, "c" was never taken.
	_, _, err = store.Get(ctx, Key("a"))
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	_, _, err = store.Get(ctx, Key("c"))
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestAcquire_ContextCanceled(t *testing.T) {
	m := NewManager(blobstore.NewMemoryStore(), fastBackoff())

	g, err := m.Acquire(context.Background(), []string{"x"})
	require.NoError(t, err)
	defer g.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAcquire_StealsExpired(t *testing.T) {
	store := blobstore.NewMemoryStore()
	clock := newFakeClock()
	var steals []string
	m := NewManager(store,
		WithClock(clock.Now),
		WithTTL(time.Minute),
		WithStealHook(func(id string) { steals = append(steals, id) }),
		fastBackoff(),
	)
	ctx := context.Background()

	g1, err := m.Acquire(ctx, []string{"x"})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	g2, err := m.Acquire(ctx, []string{"x"}, Timeout(100*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, steals)

	err = g1.Release(ctx)
	require.ErrorIs(t, err, ErrStolen)
	var se *StolenError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "x", se.ResourceID)
	assert.Equal(t, g1.HolderID(), se.HolderID)
	assert.Equal(t, []string{"x"}, StolenResources(err))

	// The stealer still owns the lock.
	tok, err := m.Inspect(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, g2.HolderID(), tok.HolderID)

	require.NoError(t, g2.Release(ctx))
}

func TestAcquire_ReplacesCorruptToken(t *testing.T) {
	store := blobstore.NewMemoryStore()
	m := NewManager(store, fastBackoff())
	ctx := context.Background()

	_, err := store.CreateIfAbsent(ctx, Key("x"), []byte("not json"))
	require.NoError(t, err)

	g, err := m.Acquire(ctx, []string{"x"}, Timeout(100*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, g.Release(ctx))
}

func TestAcquire_LiveTokenNotStolen(t *testing.T) {
	store := blobstore.NewMemoryStore()
	clock := newFakeClock()
	m := NewManager(store, WithClock(clock.Now), WithTTL(time.Minute), fastBackoff())
	ctx := context.Background()

	g, err := m.Acquire(ctx, []string{"x"})
	require.NoError(t, err)
	defer g.Release(ctx)

	clock.Advance(59 * time.Second)
	_, err = m.Acquire(ctx, []string{"x"}, Timeout(30*time.Millisecond))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestGuard_Refresh(t *testing.T) {
	store := blobstore.NewMemoryStore()
	clock := newFakeClock()
	m := NewManager(store, WithClock(clock.Now), WithTTL(time.Minute), fastBackoff())
	ctx := context.Background()

	g, err := m.Acquire(ctx, []string{"a", "b"})
	require.NoError(t, err)

	clock.Advance(50 * time.Second)
	require.NoError(t, g.Refresh(ctx))
	assert.Equal(t, clock.Now().Add(time.Minute), g.ExpiresAt())

	clock.Advance(50 * time.Second)
	_, err = m.Acquire(ctx, []string{"b"}, Timeout(30*time.Millisecond))
	assert.ErrorIs(t, err, ErrTimeout)

	require.NoError(t, g.Release(ctx))
	assert.ErrorIs(t, g.Refresh(ctx), ErrReleased)
}

func TestGuard_RefreshDetectsSteal(t *testing.T) {
	store := blobstore.NewMemoryStore()
	clock := newFakeClock()
	m := NewManager(store, WithClock(clock.Now), WithTTL(time.Minute), fastBackoff())
	ctx := context.Background()

	g1, err := m.Acquire(ctx, []string{"x"})
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)
	g2, err := m.Acquire(ctx, []string{"x"})
	require.NoError(t, err)

	assert.ErrorIs(t, g1.Refresh(ctx), ErrStolen)
	assert.Empty(t, g1.Resources())
	assert.NoError(t, g1.Release(ctx))
	require.NoError(t, g2.Release(ctx))
}

func TestSweep(t *testing.T) {
	store := blobstore.NewMemoryStore()
	clock := newFakeClock()
	m := NewManager(store, WithClock(clock.Now), WithTTL(time.Minute))
	ctx := context.Background()

	old, err := m.Acquire(ctx, []string{"old"})
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	live, err := m.Acquire(ctx, []string{"live"})
	require.NoError(t, err)
	_, err = store.CreateIfAbsent(ctx, Key("corrupt"), []byte("{"))
	require.NoError(t, err)
	_, err = store.CreateIfAbsent(ctx, "documents/keep.json", []byte("{}"))
	require.NoError(t, err)

	n, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"documents/keep.json", "locks/live.lock"}, names)

	assert.ErrorIs(t, old.Release(ctx), ErrStolen)
	assert.NoError(t, live.Release(ctx))
}

// Overlapping batches acquired from many goroutines in random order must
// always finish, and no id may ever have two holders.
func TestAcquire_OverlappingBatchesNoDeadlock(t *testing.T) {
	for _, seed := range []int64{1, 7, 42} {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := testutil.NewRNG(seed)
			store := blobstore.NewMemoryStore()
			m := NewManager(store, fastBackoff())
			ids := []string{"A", "B", "C", "D"}

			var inUse sync.Map
			for _, id := range ids {
				inUse.Store(id, new(atomic.Int32))
			}

			const workers, rounds = 8, 15
			var (
				wg        sync.WaitGroup
				successes atomic.Int32
			)
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for r := 0; r < rounds; r++ {
						batch := rng.Subset(ids, 2+rng.Intn(2))
						g, err := m.Acquire(context.Background(), batch, Timeout(20*time.Second))
						if err != nil {
							assert.ErrorIs(t, err, ErrTimeout)
							continue
						}
						for _, id := range batch {
							c, _ := inUse.Load(id)
							assert.Equal(t, int32(1), c.(*atomic.Int32).Add(1), "id %s has two holders", id)
						}
						time.Sleep(rng.Duration(500 * time.Microsecond))
						for _, id := range batch {
							c, _ := inUse.Load(id)
							c.(*atomic.Int32).Add(-1)
						}
						assert.NoError(t, g.Release(context.Background()))
						successes.Add(1)
					}
				}()
			}

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(60 * time.Second):
				t.Fatal("batch acquisitions deadlocked")
			}

			assert.Equal(t, int32(workers*rounds), successes.Load())
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestAcquire_PollBudget(t *testing.T) {
	rc := resource.NewController(resource.Config{PollsPerSecond: 1, PollBurst: 1})
	m := NewManager(blobstore.NewMemoryStore(), WithController(rc))
	ctx := context.Background()

	g, err := m.Acquire(ctx, []string{"x"})
	require.NoError(t, err)
	defer g.Release(ctx)

	// The bucket is empty and the next token is a second away.
	ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = m.Acquire(ctx2, []string{"y"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAcquire_PollBudgetBoundedByTimeout(t *testing.T) {
	rc := resource.NewController(resource.Config{PollsPerSecond: 0.1, PollBurst: 1})
	m := NewManager(blobstore.NewMemoryStore(), WithController(rc))
	ctx := context.Background()

	g, err := m.Acquire(ctx, []string{"x"})
	require.NoError(t, err)
	defer g.Release(ctx)

	// No context deadline; the next token is ten seconds away.
	start := time.Now()
	_, err = m.Acquire(ctx, []string{"y"}, Timeout(50*time.Millisecond))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "locks/doc-1.lock", Key("doc-1"))

	id, ok := ResourceID("locks/doc-1.lock")
	require.True(t, ok)
	assert.Equal(t, "doc-1", id)

	_, ok = ResourceID("documents/doc-1.json")
	assert.False(t, ok)
}
