// Package redline stores text documents that many independent callers edit
// concurrently, and keeps a lazily rebuilt full-text index over them.
//
// # Quick Start
//
//	blobs := blobstore.NewMemoryStore()
//	s := redline.New(blobs)
//
//	doc, _ := s.Create(ctx, "memo", "The cat sat on the mat.")
//	res, _ := s.RedlineRange(ctx, []model.RangeEdit{
//		{DocumentID: doc.ID, Start: 4, End: 7, Replacement: "dog"},
//	})
//	hits, _ := s.Search(ctx, "dog", model.WithBuffer(10))
//
// # Storage
//
// Documents and lock tokens live in a blobstore.Store:
//
//	documents/<id>.json   serialized model.Document (see package codec)
//	locks/<id>.lock       lock.Token with an advisory expiry
//
// Backends exist for memory, the local filesystem, S3, DynamoDB, MinIO, GCS
// and Badger. Any number of Stores, in any number of processes, may share a
// blob store; all cross-caller exclusion goes through the lock tokens.
//
// # Mutations
//
// Append, Update, Delete, RedlineRange and RedlineTarget:
//
//  1. lock every involved document in one sorted acquisition,
//  2. read the current blob and its revision,
//  3. compute the new text with package textedit,
//  4. write back conditionally on the revision read (ErrConflict otherwise),
//  5. invalidate the search index,
//  6. release the locks, whatever happened before.
//
// Batch redlines report one Outcome per item. A bad item never blocks the
// others and nothing is rolled back.
//
// # Errors
//
// Use errors.Is with ErrValidation, ErrNotFound, ErrConflict,
// ErrLockTimeout, ErrLockStolen and ErrTargetNotFound. The typed errors
// (*textedit.RangeError, *textedit.TargetNotFoundError, *lock.TimeoutError,
// *ConflictError) carry details and are reachable with errors.As.
package redline
