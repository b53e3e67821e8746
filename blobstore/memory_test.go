package blobstore_test

import (
	"context"
	"testing"

	"github.com/hupe1980/redline/blobstore"
	"github.com/hupe1980/redline/blobstore/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) blobstore.Store {
		return blobstore.NewMemoryStore()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := blobstore.NewMemoryStore()
	ctx := context.Background()

	in := []byte("hello")
	_, err := s.CreateIfAbsent(ctx, "a", in)
	require.NoError(t, err)
	in[0] = 'j'

	out, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	out[0] = 'y'
	again, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(again))
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := blobstore.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CreateIfAbsent(ctx, "a", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
