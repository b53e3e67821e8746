// Package resource implements the Controller for shared limits.
//
// The Controller governs two resources shared by every operation of a
// document store:
//
//   - Workers: bounds concurrent document loads while the search index
//     rebuilds (weighted semaphore)
//   - Store polling: rate-limits lock acquisition attempts against the blob
//     store while callers contend (token bucket)
//
// # Worker Limits
//
//	rc := resource.NewController(resource.Config{MaxWorkers: 8})
//
//	if err := rc.AcquireWorker(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseWorker()
//
// # Poll Rate Limiting
//
//	rc := resource.NewController(resource.Config{PollsPerSecond: 50, PollBurst: 10})
//
//	if err := rc.WaitPoll(ctx); err != nil {
//	    return err // context canceled or deadline too close
//	}
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
