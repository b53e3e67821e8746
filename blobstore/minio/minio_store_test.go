package minio

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hupe1980/redline/blobstore"
	"github.com/hupe1980/redline/blobstore/storetest"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := envOr("MINIO_ENDPOINT", "localhost:9000")
	accessKey := envOr("MINIO_ACCESS_KEY", "minioadmin")
	secretKey := envOr("MINIO_SECRET_KEY", "minioadmin")
	bucket := "test-redline"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Check if MinIO is reachable
	if _, err = client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(context.Background(), bucket)
	require.NoError(t, err)
	if !exists {
		err = client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{})
		require.NoError(t, err)
	}

	n := 0
	storetest.Run(t, func(t *testing.T) blobstore.Store {
		n++
		return NewStore(client, bucket, fmt.Sprintf("run-%d-%d/", time.Now().UnixNano(), n))
	})
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}, blobstore.ErrNotFound},
		{"precondition", minio.ErrorResponse{Code: "PreconditionFailed", StatusCode: 412}, blobstore.ErrConflict},
		{"status 412", minio.ErrorResponse{StatusCode: 412}, blobstore.ErrConflict},
		{"status 404", minio.ErrorResponse{StatusCode: 404}, blobstore.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}

	other := minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}
	assert.Equal(t, error(other), mapError(other))
}

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "bucket", "")
	assert.Equal(t, "locks/a.lock", s.key("locks/a.lock"))

	s = NewStore(nil, "bucket", "redline/")
	assert.Equal(t, "redline/locks/a.lock", s.key("locks/a.lock"))
}
