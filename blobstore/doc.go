// Package blobstore provides the storage abstraction documents and lock tokens
// are persisted in.
//
// Store is a minimal versioned object store: plain reads, compare-and-swap
// writes, create-if-absent, and compare-and-delete. Nothing else is assumed of
// the backend, so the same lock and document logic runs on a local directory,
// S3, MinIO, GCS, DynamoDB or an embedded Badger database.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process maps, for tests and embedding
//   - LocalStore: local filesystem, safe across processes on one host
//   - SplitStore: routes a name prefix (e.g. "locks/") to a second store
//   - s3.Store / s3.DDBStore: Amazon S3 conditional writes, DynamoDB conditions
//   - minio.Store: MinIO and S3-compatible servers
//   - gcs.Store: Google Cloud Storage generation preconditions
//   - badger.Store: embedded Badger database
//
// # Custom Implementations
//
// Implement the Store interface to support custom storage backends:
//
//	type Store interface {
//	    Get(ctx, name) ([]byte, Revision, error)
//	    Put(ctx, name, data, expected) (Revision, error)
//	    CreateIfAbsent(ctx, name, data) (Revision, error)
//	    DeleteIfMatches(ctx, name, expected) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Map backend errors onto ErrNotFound, ErrExists and ErrConflict so callers
// can use errors.Is regardless of the provider.
package blobstore
