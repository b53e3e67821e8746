package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/hupe1980/redline/blobstore"
	"github.com/minio/minio-go/v7"
)

// Store implements blobstore.Store for MinIO and S3-compatible storage.
//
// Revisions are ETags. Conditional writes use If-Match / If-None-Match.
// Deletes are conditional only on versioned buckets; see DeleteIfMatches.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ blobstore.Store = (*Store)(nil)

// NewStore creates a new MinIO blob store.
// bucket is the MinIO bucket name.
// rootPrefix is prepended to all keys (e.g. "redline/").
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Get reads the object and its ETag.
func (s *Store) Get(ctx context.Context, name string) ([]byte, blobstore.Revision, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, blobstore.NoRevision, mapError(err)
	}
	defer obj.Close()

	// Stat pins the ETag of the object version the reader serves.
	info, err := obj.Stat()
	if err != nil {
		return nil, blobstore.NoRevision, mapError(err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, blobstore.NoRevision, mapError(err)
	}
	return data, blobstore.Revision(info.ETag), nil
}

// Put replaces the object if its ETag matches expected.
func (s *Store) Put(ctx context.Context, name string, data []byte, expected blobstore.Revision) (blobstore.Revision, error) {
	if expected == blobstore.NoRevision {
		return blobstore.NoRevision, blobstore.ErrConflict
	}
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	opts.SetMatchETag(string(expected))

	info, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return blobstore.NoRevision, mapError(err)
	}
	return blobstore.Revision(info.ETag), nil
}

// CreateIfAbsent writes the object only if the key is unused.
func (s *Store) CreateIfAbsent(ctx context.Context, name string, data []byte) (blobstore.Revision, error) {
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	opts.SetMatchETagExcept("*")

	info, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		if errors.Is(mapError(err), blobstore.ErrConflict) {
			return blobstore.NoRevision, blobstore.ErrExists
		}
		return blobstore.NoRevision, mapError(err)
	}
	return blobstore.Revision(info.ETag), nil
}

// DeleteIfMatches removes the object if its ETag matches expected.
//
// RemoveObject has no If-Match. On versioned buckets the exact version that
// was compared is removed, so a concurrent replacement survives. On
// unversioned buckets a replacement racing between stat and remove is lost,
// so a stale lock holder can delete a token that was stolen from it.
func (s *Store) DeleteIfMatches(ctx context.Context, name string, expected blobstore.Revision) error {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return mapError(err)
	}
	if blobstore.Revision(info.ETag) != expected {
		return blobstore.ErrConflict
	}
	err = s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{VersionID: info.VersionID})
	return mapError(err)
}

// List returns all blob names with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.key(prefix)

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    fullPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		// Strip our root prefix
		name := strings.TrimPrefix(obj.Key, s.prefix)
		name = strings.TrimPrefix(name, "/")
		if name != "" && strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	errResp := minio.ToErrorResponse(err)
	switch errResp.Code {
	case "NoSuchKey", "NotFound":
		return blobstore.ErrNotFound
	case "PreconditionFailed", "ConditionalRequestConflict":
		return blobstore.ErrConflict
	}
	switch errResp.StatusCode {
	case 404:
		return blobstore.ErrNotFound
	case 409, 412:
		return blobstore.ErrConflict
	}
	return err
}
