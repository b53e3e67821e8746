package blobstore

import (
	"context"
	"errors"
	"os"
)

var (
	// ErrNotFound is returned when a blob does not exist.
	//
	// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
	// The default maps to `os.ErrNotExist`.
	ErrNotFound = os.ErrNotExist

	// ErrExists is returned by CreateIfAbsent when the blob is already present.
	ErrExists = os.ErrExist

	// ErrConflict is returned when a conditional write or delete observes a
	// revision other than the expected one.
	ErrConflict = errors.New("blobstore: revision mismatch")
)

// Revision is an opaque token identifying one stored state of a blob.
//
// Backends choose the representation (a counter, an ETag, a GCS generation).
// Callers must only compare revisions for equality.
type Revision string

// NoRevision is the zero Revision. It never identifies a stored blob.
const NoRevision Revision = ""

// Store is a versioned object store with the conditional primitives needed
// for optimistic writes and advisory locking.
//
// Every call is independently atomic. There are no multi-object transactions.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the blob contents and its current revision.
	Get(ctx context.Context, name string) ([]byte, Revision, error)

	// Put replaces the blob only if its current revision equals expected.
	// Returns ErrNotFound if the blob is absent and ErrConflict on mismatch.
	Put(ctx context.Context, name string, data []byte, expected Revision) (Revision, error)

	// CreateIfAbsent writes the blob only if no blob with that name exists.
	// Returns ErrExists otherwise.
	CreateIfAbsent(ctx context.Context, name string, data []byte) (Revision, error)

	// DeleteIfMatches removes the blob only if its current revision equals expected.
	// Returns ErrNotFound if the blob is absent and ErrConflict on mismatch.
	DeleteIfMatches(ctx context.Context, name string, expected Revision) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// IsNotFound reports whether err means the blob does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is a failed precondition (revision mismatch
// or an existing blob on create).
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrExists)
}
