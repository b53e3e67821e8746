// Package storetest provides a conformance suite for blobstore.Store
// implementations.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/redline/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) blobstore.Store

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, _, err := s.Get(context.Background(), "documents/missing.json")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("CreateGetPut", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rev1, err := s.CreateIfAbsent(ctx, "documents/a.json", []byte("v1"))
		require.NoError(t, err)
		require.NotEqual(t, blobstore.NoRevision, rev1)

		data, rev, err := s.Get(ctx, "documents/a.json")
		require.NoError(t, err)
		assert.Equal(t, "v1", string(data))
		assert.Equal(t, rev1, rev)

		rev2, err := s.Put(ctx, "documents/a.json", []byte("v2"), rev1)
		require.NoError(t, err)
		assert.NotEqual(t, rev1, rev2)

		data, rev, err = s.Get(ctx, "documents/a.json")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(data))
		assert.Equal(t, rev2, rev)
	})

	t.Run("CreateExisting", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.CreateIfAbsent(ctx, "locks/a.lock", []byte("first"))
		require.NoError(t, err)

		_, err = s.CreateIfAbsent(ctx, "locks/a.lock", []byte("second"))
		assert.ErrorIs(t, err, blobstore.ErrExists)

		data, _, err := s.Get(ctx, "locks/a.lock")
		require.NoError(t, err)
		assert.Equal(t, "first", string(data))
	})

	t.Run("PutStaleRevision", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rev1, err := s.CreateIfAbsent(ctx, "documents/b.json", []byte("one"))
		require.NoError(t, err)
		_, err = s.Put(ctx, "documents/b.json", []byte("two"), rev1)
		require.NoError(t, err)

		_, err = s.Put(ctx, "documents/b.json", []byte("three"), rev1)
		assert.ErrorIs(t, err, blobstore.ErrConflict)

		data, _, err := s.Get(ctx, "documents/b.json")
		require.NoError(t, err)
		assert.Equal(t, "two", string(data))
	})

	t.Run("PutMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Put(context.Background(), "documents/none.json", []byte("x"), blobstore.Revision("1"))
		assert.True(t, blobstore.IsNotFound(err) || blobstore.IsConflict(err), "unexpected error: %v", err)
	})

	t.Run("DeleteIfMatches", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rev1, err := s.CreateIfAbsent(ctx, "locks/c.lock", []byte("one"))
		require.NoError(t, err)
		rev2, err := s.Put(ctx, "locks/c.lock", []byte("two"), rev1)
		require.NoError(t, err)

		err = s.DeleteIfMatches(ctx, "locks/c.lock", rev1)
		assert.ErrorIs(t, err, blobstore.ErrConflict)

		require.NoError(t, s.DeleteIfMatches(ctx, "locks/c.lock", rev2))

		_, _, err = s.Get(ctx, "locks/c.lock")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)

		err = s.DeleteIfMatches(ctx, "locks/c.lock", rev2)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("RecreateGetsFreshRevision", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rev1, err := s.CreateIfAbsent(ctx, "locks/r.lock", []byte("holder-1"))
		require.NoError(t, err)
		rev2, err := s.Put(ctx, "locks/r.lock", []byte("holder-2"), rev1)
		require.NoError(t, err)
		require.NoError(t, s.DeleteIfMatches(ctx, "locks/r.lock", rev2))

		rev3, err := s.CreateIfAbsent(ctx, "locks/r.lock", []byte("holder-3"))
		require.NoError(t, err)
		assert.NotEqual(t, rev1, rev3)
		assert.NotEqual(t, rev2, rev3)

		// Revisions from before the delete match nothing.
		assert.ErrorIs(t, s.DeleteIfMatches(ctx, "locks/r.lock", rev1), blobstore.ErrConflict)
		_, err = s.Put(ctx, "locks/r.lock", []byte("stale"), rev1)
		assert.ErrorIs(t, err, blobstore.ErrConflict)

		data, rev, err := s.Get(ctx, "locks/r.lock")
		require.NoError(t, err)
		assert.Equal(t, "holder-3", string(data))
		assert.Equal(t, rev3, rev)
	})

	t.Run("List", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, name := range []string{"documents/b.json", "documents/a.json", "locks/a.lock"} {
			_, err := s.CreateIfAbsent(ctx, name, []byte(name))
			require.NoError(t, err)
		}

		names, err := s.List(ctx, "documents/")
		require.NoError(t, err)
		assert.Equal(t, []string{"documents/a.json", "documents/b.json"}, names)

		names, err = s.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"documents/a.json", "documents/b.json", "locks/a.lock"}, names)
	})

	t.Run("ConcurrentCreateSingleWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const workers = 8
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.CreateIfAbsent(ctx, "locks/race.lock", []byte("x")); err == nil {
					wins.Add(1)
				} else {
					assert.ErrorIs(t, err, blobstore.ErrExists)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("ConcurrentPutSingleWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rev, err := s.CreateIfAbsent(ctx, "documents/cas.json", []byte("base"))
		require.NoError(t, err)

		const workers = 8
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := s.Put(ctx, "documents/cas.json", []byte{byte('a' + i)}, rev); err == nil {
					wins.Add(1)
				} else {
					assert.ErrorIs(t, err, blobstore.ErrConflict)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}
