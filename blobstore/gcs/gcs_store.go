package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/hupe1980/redline/blobstore"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// Store implements blobstore.Store for a GCS bucket.
type Store struct {
	bucket *storage.BucketHandle
	prefix string
}

var _ blobstore.Store = (*Store)(nil)

// NewStore creates a new GCS blob store.
// rootPrefix is prepended to all object names (e.g. "redline/").
func NewStore(client *storage.Client, bucket, rootPrefix string) *Store {
	return &Store{
		bucket: client.Bucket(bucket),
		prefix: rootPrefix,
	}
}

func (s *Store) object(name string) *storage.ObjectHandle {
	if s.prefix == "" {
		return s.bucket.Object(name)
	}
	return s.bucket.Object(path.Join(s.prefix, name))
}

// Get reads the object and returns its generation as the revision.
func (s *Store) Get(ctx context.Context, name string) ([]byte, blobstore.Revision, error) {
	r, err := s.object(name).NewReader(ctx)
	if err != nil {
		return nil, blobstore.NoRevision, mapError(err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, blobstore.NoRevision, mapError(err)
	}
	return data, formatGeneration(r.Attrs.Generation), nil
}

// Put replaces the object if its generation equals expected.
func (s *Store) Put(ctx context.Context, name string, data []byte, expected blobstore.Revision) (blobstore.Revision, error) {
	gen, err := parseGeneration(expected)
	if err != nil {
		return blobstore.NoRevision, blobstore.ErrConflict
	}
	return s.write(ctx, s.object(name).If(storage.Conditions{GenerationMatch: gen}), data)
}

// CreateIfAbsent writes the object only if it does not exist.
func (s *Store) CreateIfAbsent(ctx context.Context, name string, data []byte) (blobstore.Revision, error) {
	rev, err := s.write(ctx, s.object(name).If(storage.Conditions{DoesNotExist: true}), data)
	if errors.Is(err, blobstore.ErrConflict) {
		return blobstore.NoRevision, blobstore.ErrExists
	}
	return rev, err
}

// DeleteIfMatches deletes the object if its generation equals expected.
func (s *Store) DeleteIfMatches(ctx context.Context, name string, expected blobstore.Revision) error {
	gen, err := parseGeneration(expected)
	if err != nil {
		return blobstore.ErrConflict
	}
	return mapError(s.object(name).If(storage.Conditions{GenerationMatch: gen}).Delete(ctx))
}

// List returns all names with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := prefix
	if s.prefix != "" {
		full = path.Join(s.prefix, prefix)
		if prefix == "" || strings.HasSuffix(prefix, "/") {
			full += "/"
		}
	}

	var names []string
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: full})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, mapError(err)
		}
		name := strings.TrimPrefix(attrs.Name, s.prefix)
		name = strings.TrimPrefix(name, "/")
		if name != "" && strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) write(ctx context.Context, obj *storage.ObjectHandle, data []byte) (blobstore.Revision, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	// Single request upload: preconditions apply to the whole object.
	w.ChunkSize = 0

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return blobstore.NoRevision, mapError(err)
	}
	if err := w.Close(); err != nil {
		return blobstore.NoRevision, mapError(err)
	}
	return formatGeneration(w.Attrs().Generation), nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return blobstore.ErrNotFound
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return blobstore.ErrNotFound
		case http.StatusPreconditionFailed, http.StatusConflict:
			return blobstore.ErrConflict
		}
	}
	return err
}

func parseGeneration(rev blobstore.Revision) (int64, error) {
	gen, err := strconv.ParseInt(string(rev), 10, 64)
	if err != nil {
		return 0, err
	}
	if gen <= 0 {
		return 0, errors.New("gcs: invalid generation")
	}
	return gen, nil
}

func formatGeneration(gen int64) blobstore.Revision {
	return blobstore.Revision(strconv.FormatInt(gen, 10))
}
