// Package minio provides a blobstore.Store implementation using the MinIO client.
//
// MinIO and other S3-compatible systems (Ceph, SeaweedFS, Garage) honor
// If-Match and If-None-Match on PUT, which is all the store needs for
// compare-and-swap.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "redline/")
//	docs := redline.New(store)
//
// # Deletes
//
// RemoveObject carries no precondition. DeleteIfMatches stats the object,
// compares the ETag and removes the stat'ed version. Enable bucket versioning
// to make that removal exact.
//
// Without versioning, lock release is weaker than on the other backends: a
// steal that lands between the stat and the remove is deleted by the stale
// holder, and the stale holder sees no StolenError. Keep lock tokens on a
// versioned bucket, or route them to another store with
// blobstore.NewSplitStore.
package minio
