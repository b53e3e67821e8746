package blobstore_test

import (
	"context"
	"testing"

	"github.com/hupe1980/redline/blobstore"
	"github.com/hupe1980/redline/blobstore/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) blobstore.Store {
		return blobstore.NewSplitStore(blobstore.NewMemoryStore(), "locks/", blobstore.NewMemoryStore())
	})
}

func TestSplitStore_Routing(t *testing.T) {
	docs := blobstore.NewMemoryStore()
	locks := blobstore.NewMemoryStore()
	s := blobstore.NewSplitStore(docs, "locks/", locks)
	ctx := context.Background()

	_, err := s.CreateIfAbsent(ctx, "locks/a.lock", []byte("t"))
	require.NoError(t, err)
	_, err = s.CreateIfAbsent(ctx, "documents/a.json", []byte("d"))
	require.NoError(t, err)

	assert.Equal(t, 1, docs.Len())
	assert.Equal(t, 1, locks.Len())

	names, err := s.List(ctx, "locks/")
	require.NoError(t, err)
	assert.Equal(t, []string{"locks/a.lock"}, names)
}
