package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/redline/blobstore"
)

// Guard owns the tokens of one successful Acquire.
type Guard struct {
	m      *Manager
	holder string

	mu       sync.Mutex
	locks    []held
	released bool

	once sync.Once
	err  error
}

func newGuard(m *Manager, holder string, locks []held) *Guard {
	return &Guard{m: m, holder: holder, locks: locks}
}

// HolderID returns the unique id of this acquisition.
func (g *Guard) HolderID() string { return g.holder }

// Resources returns the sorted ids held by the guard.
func (g *Guard) Resources() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, len(g.locks))
	for i, h := range g.locks {
		ids[i] = h.id
	}
	return ids
}

// ExpiresAt returns the earliest token expiry.
func (g *Guard) ExpiresAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	var first time.Time
	for _, h := range g.locks {
		if first.IsZero() || h.token.ExpiresAt.Before(first) {
			first = h.token.ExpiresAt
		}
	}
	return first
}

// Release deletes every token of the guard. It runs exactly once; later calls
// return the first result. Cancellation of ctx does not interrupt it.
// Tokens found replaced or missing yield *StolenError values joined into the
// returned error; they are reported, never retried.
func (g *Guard) Release(ctx context.Context) error {
	g.once.Do(func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.released = true
		g.err = g.m.releaseAll(context.WithoutCancel(ctx), g.locks)
	})
	return g.err
}

// Refresh extends every token by the manager's TTL. It stops at the first
// token that was stolen and returns its *StolenError; that token is no
// longer owned and Release skips it.
func (g *Guard) Refresh(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return ErrReleased
	}

	now := g.m.opts.now()
	for i := range g.locks {
		h := &g.locks[i]
		tok := h.token
		tok.ExpiresAt = now.Add(g.m.opts.ttl)
		data, err := encodeToken(tok)
		if err != nil {
			return err
		}
		rev, err := g.m.store.Put(ctx, Key(h.id), data, h.rev)
		if blobstore.IsConflict(err) || blobstore.IsNotFound(err) {
			stolen := g.m.stolen(*h)
			g.locks = append(g.locks[:i], g.locks[i+1:]...)
			return stolen
		}
		if err != nil {
			return fmt.Errorf("refresh %q: %w", h.id, err)
		}
		h.rev = rev
		h.token = tok
	}
	return nil
}

// StolenResources extracts the resource ids from the StolenErrors in err.
func StolenResources(err error) []string {
	var ids []string
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if se, ok := err.(*StolenError); ok {
			ids = append(ids, se.ResourceID)
			return
		}
		if j, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range j.Unwrap() {
				walk(e)
			}
			return
		}
		walk(errors.Unwrap(err))
	}
	walk(err)
	return ids
}
