package gcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/hupe1980/redline/blobstore"
	"github.com/hupe1980/redline/blobstore/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// TestStore_Integration runs against fake-gcs-server or the real service.
// Set STORAGE_EMULATOR_HOST (and optionally GCS_TEST_BUCKET) to enable.
func TestStore_Integration(t *testing.T) {
	if os.Getenv("STORAGE_EMULATOR_HOST") == "" {
		t.Skip("STORAGE_EMULATOR_HOST not set")
	}
	bucket := os.Getenv("GCS_TEST_BUCKET")
	if bucket == "" {
		bucket = "test-redline"
	}

	ctx := context.Background()
	client, err := storage.NewClient(ctx, option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_ = client.Bucket(bucket).Create(ctx, "test-project", nil)

	n := 0
	storetest.Run(t, func(t *testing.T) blobstore.Store {
		n++
		return NewStore(client, bucket, fmt.Sprintf("run-%d-%d/", time.Now().UnixNano(), n))
	})
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(storage.ErrObjectNotExist), blobstore.ErrNotFound)
	assert.ErrorIs(t, mapError(&googleapi.Error{Code: 412}), blobstore.ErrConflict)
	assert.ErrorIs(t, mapError(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 404})), blobstore.ErrNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
}

func TestParseGeneration(t *testing.T) {
	gen, err := parseGeneration("1700000000000001")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000001), gen)
	assert.Equal(t, blobstore.Revision("42"), formatGeneration(42))

	for _, bad := range []blobstore.Revision{blobstore.NoRevision, "0", "-3", "etag"} {
		_, err := parseGeneration(bad)
		assert.Error(t, err, bad)
	}
}
