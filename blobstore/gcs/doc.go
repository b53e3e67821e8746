// Package gcs provides a blobstore.Store implementation on Google Cloud Storage.
//
// Object generations serve as revisions. Creates use the DoesNotExist
// precondition, replacements and deletes use GenerationMatch, so every
// conditional write is enforced server-side.
//
//	client, err := storage.NewClient(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := gcs.NewStore(client, "my-bucket", "redline/")
package gcs
