// Package badger provides an embedded blobstore.Store on BadgerDB.
//
// Each value carries an 8-byte big-endian revision ahead of the payload.
// Revisions come from a database-wide badger.Sequence, so a name that is
// deleted and recreated never reuses an old revision. Compare-and-swap runs
// inside a serializable read-write transaction; a commit that loses a race
// surfaces badger.ErrConflict, which maps to blobstore.ErrConflict.
//
//	store, err := badger.Open(badger.DefaultConfig("/var/lib/redline"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
package badger
