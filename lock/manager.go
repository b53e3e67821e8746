package lock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hupe1980/redline/blobstore"
	"github.com/oklog/ulid/v2"
)

// Manager hands out Guards over sets of resource ids.
// It holds no in-process lock state; all exclusion lives in the store.
type Manager struct {
	store blobstore.Store
	opts  options
}

// NewManager creates a lock manager on store.
func NewManager(store blobstore.Store, optFns ...Option) *Manager {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{store: store, opts: opts}
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration { return m.opts.ttl }

// held is one lock owned by a guard.
type held struct {
	id    string
	rev   blobstore.Revision
	token Token
}

// Acquire locks every id or none. Ids are de-duplicated and sorted before
// the first attempt. It returns *TimeoutError when the deadline passes while
// some id is still held, the context error on cancellation, or a wrapped
// store error. Partial acquisitions are always released before returning.
func (m *Manager) Acquire(ctx context.Context, ids []string, optFns ...AcquireOption) (*Guard, error) {
	ao := acquireOptions{timeout: m.opts.timeout}
	for _, fn := range optFns {
		fn(&ao)
	}

	ids = normalize(ids)
	start := time.Now()
	deadline := start.Add(ao.timeout)

	for attempt := 0; ; attempt++ {
		if err := m.waitPoll(ctx, deadline); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Poll budget would outlast the acquisition deadline.
			return nil, m.timeout(ids, "", start, attempt)
		}

		holder := ulid.Make().String()
		locks, blocker, err := m.tryAll(ctx, ids, holder)
		if err == nil {
			m.opts.logger.Debug("locks acquired",
				"resources", ids,
				"holder", holder,
				"attempts", attempt+1,
				"waited", time.Since(start))
			return newGuard(m, holder, locks), nil
		}
		if !errors.Is(err, errHeld) {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, m.timeout(ids, blocker, start, attempt+1)
		}
		wait := min(m.opts.backoff.Delay(attempt), remaining)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// waitPoll waits for the poll budget, never past deadline.
func (m *Manager) waitPoll(ctx context.Context, deadline time.Time) error {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	return m.opts.controller.WaitPoll(ctx)
}

func (m *Manager) timeout(ids []string, blocker string, start time.Time, attempts int) error {
	err := &TimeoutError{
		Resources: ids,
		Blocker:   blocker,
		Waited:    time.Since(start),
		Attempts:  attempts,
	}
	m.opts.logger.Warn("lock acquisition timed out",
		"resources", ids,
		"blocker", blocker,
		"attempts", attempts,
		"waited", err.Waited)
	return err
}

// tryAll makes one ordered pass over ids. On failure it releases what it
// took, in reverse order, and reports the id that stopped it.
func (m *Manager) tryAll(ctx context.Context, ids []string, holder string) ([]held, string, error) {
	locks := make([]held, 0, len(ids))
	for _, id := range ids {
		h, err := m.lockOne(ctx, id, holder)
		if err != nil {
			m.releaseAll(context.WithoutCancel(ctx), locks)
			return nil, id, err
		}
		locks = append(locks, h)
	}
	return locks, "", nil
}

func (m *Manager) lockOne(ctx context.Context, id, holder string) (held, error) {
	now := m.opts.now()
	tok := Token{
		ResourceID: id,
		HolderID:   holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(m.opts.ttl),
	}
	data, err := encodeToken(tok)
	if err != nil {
		return held{}, err
	}
	key := Key(id)

	rev, err := m.store.CreateIfAbsent(ctx, key, data)
	if err == nil {
		return held{id: id, rev: rev, token: tok}, nil
	}
	if !errors.Is(err, blobstore.ErrExists) {
		return held{}, fmt.Errorf("lock %q: %w", id, err)
	}

	cur, curRev, err := m.store.Get(ctx, key)
	if errors.Is(err, blobstore.ErrNotFound) {
		// Released between the two calls; the next pass will take it.
		return held{}, errHeld
	}
	if err != nil {
		return held{}, fmt.Errorf("lock %q: %w", id, err)
	}

	prev, decErr := decodeToken(cur)
	if decErr == nil && !prev.Expired(now) {
		return held{}, errHeld
	}

	rev, err = m.store.Put(ctx, key, data, curRev)
	if blobstore.IsConflict(err) || blobstore.IsNotFound(err) {
		// Another acquirer stole or the holder released first.
		return held{}, errHeld
	}
	if err != nil {
		return held{}, fmt.Errorf("lock %q: %w", id, err)
	}

	if decErr != nil {
		m.opts.logger.Warn("replaced unreadable lock token", "resource", id, "holder", holder, "error", decErr)
	} else {
		m.opts.logger.Warn("stole expired lock",
			"resource", id,
			"holder", holder,
			"previous_holder", prev.HolderID,
			"expired_at", prev.ExpiresAt)
	}
	if m.opts.onSteal != nil {
		m.opts.onSteal(id)
	}
	return held{id: id, rev: rev, token: tok}, nil
}

// releaseAll deletes tokens in reverse order and collects StolenErrors.
func (m *Manager) releaseAll(ctx context.Context, locks []held) error {
	var errs []error
	for i := len(locks) - 1; i >= 0; i-- {
		h := locks[i]
		err := m.store.DeleteIfMatches(ctx, Key(h.id), h.rev)
		switch {
		case err == nil:
		case blobstore.IsConflict(err) || blobstore.IsNotFound(err):
			errs = append(errs, m.stolen(h))
		default:
			m.opts.logger.Error("failed to release lock", "resource", h.id, "holder", h.token.HolderID, "error", err)
			errs = append(errs, fmt.Errorf("release %q: %w", h.id, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) stolen(h held) error {
	m.opts.logger.Warn("lock token was stolen", "resource", h.id, "holder", h.token.HolderID)
	if m.opts.onStolen != nil {
		m.opts.onStolen(h.id)
	}
	return &StolenError{ResourceID: h.id, HolderID: h.token.HolderID}
}

// Inspect returns the current token for a resource.
// A missing lock is reported as blobstore.ErrNotFound.
func (m *Manager) Inspect(ctx context.Context, id string) (Token, error) {
	data, _, err := m.store.Get(ctx, Key(id))
	if err != nil {
		return Token{}, err
	}
	return decodeToken(data)
}

// Sweep deletes expired and unreadable tokens and returns how many it removed.
// Tokens that change while sweeping are left alone.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	keys, err := m.store.List(ctx, KeyPrefix)
	if err != nil {
		return 0, err
	}
	now := m.opts.now()
	removed := 0
	for _, key := range keys {
		if _, ok := ResourceID(key); !ok {
			continue
		}
		data, rev, err := m.store.Get(ctx, key)
		if blobstore.IsNotFound(err) {
			continue
		}
		if err != nil {
			return removed, err
		}
		if tok, err := decodeToken(data); err == nil && !tok.Expired(now) {
			continue
		}
		err = m.store.DeleteIfMatches(ctx, key, rev)
		if blobstore.IsConflict(err) || blobstore.IsNotFound(err) {
			continue
		}
		if err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		m.opts.logger.Info("swept expired locks", "count", removed)
	}
	return removed, nil
}

func normalize(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
