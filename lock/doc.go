// Package lock implements hierarchical, distributed exclusive locks over
// resource ids on top of a blobstore.Store.
//
// A lock is a small JSON token stored at locks/<id>.lock. It is taken with
// CreateIfAbsent and released with DeleteIfMatches, so mutual exclusion holds
// across processes and machines that share the store.
//
// # Ordering
//
// Acquire sorts the requested ids and locks them one by one in that order.
// If any id is held, every token taken so far is released and the whole set
// is retried after a jittered exponential backoff. Because all callers
// approach shared ids in the same global order, overlapping batches cannot
// wait on each other in a cycle.
//
// # Expiry
//
// Tokens carry an advisory expiry that every acquirer checks. An expired or
// unreadable token is stolen with a compare-and-swap Put, which recovers
// from crashed holders. A guard whose token was stolen reports a StolenError
// on Release and leaves the stealer's token in place.
//
// # Usage
//
//	m := lock.NewManager(store)
//
//	g, err := m.Acquire(ctx, []string{"b", "a"})
//	if err != nil {
//	    return err // *lock.TimeoutError, context error or backend failure
//	}
//	defer g.Release(ctx)
package lock
