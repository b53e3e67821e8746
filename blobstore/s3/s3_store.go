package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/redline/blobstore"
)

// Store implements blobstore.Store for S3 using conditional requests.
//
// Revisions are ETags. Creates send If-None-Match: *, replacements and
// deletes send If-Match with the expected ETag.
type Store struct {
	client   Client
	uploader *manager.Uploader
	cfg      UploadConfig
	bucket   string
	prefix   string
}

var _ blobstore.Store = (*Store)(nil)

// NewStore creates a new S3 blob store.
// rootPrefix is prepended to all keys (e.g. "my-db/").
func NewStore(client Client, bucket, rootPrefix string, optFns ...func(*UploadConfig)) *Store {
	cfg := DefaultUploadConfig()
	for _, fn := range optFns {
		fn(&cfg)
	}
	return &Store{
		client:   client,
		uploader: newUploader(client, cfg),
		cfg:      cfg,
		bucket:   bucket,
		prefix:   rootPrefix,
	}
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Get downloads the object and returns its ETag as the revision.
func (s *Store) Get(ctx context.Context, name string) ([]byte, blobstore.Revision, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, blobstore.NoRevision, mapError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, blobstore.NoRevision, err
	}
	return data, blobstore.Revision(aws.ToString(resp.ETag)), nil
}

// Put replaces the object if its ETag matches expected.
func (s *Store) Put(ctx context.Context, name string, data []byte, expected blobstore.Revision) (blobstore.Revision, error) {
	if expected == blobstore.NoRevision {
		return blobstore.NoRevision, blobstore.ErrConflict
	}
	input := s.putInput(name, data)
	input.IfMatch = aws.String(string(expected))
	return s.upload(ctx, input, len(data))
}

// CreateIfAbsent writes the object only if the key is unused.
func (s *Store) CreateIfAbsent(ctx context.Context, name string, data []byte) (blobstore.Revision, error) {
	input := s.putInput(name, data)
	input.IfNoneMatch = aws.String("*")
	rev, err := s.upload(ctx, input, len(data))
	if errors.Is(err, blobstore.ErrConflict) {
		return blobstore.NoRevision, blobstore.ErrExists
	}
	return rev, err
}

// DeleteIfMatches deletes the object if its ETag matches expected.
func (s *Store) DeleteIfMatches(ctx context.Context, name string, expected blobstore.Revision) error {
	key := s.key(name)

	// S3 answers a conditional delete of a missing key with success, so the
	// existence check needs its own round trip.
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError(err)
	}
	if blobstore.Revision(aws.ToString(head.ETag)) != expected {
		return blobstore.ErrConflict
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(key),
		IfMatch: aws.String(string(expected)),
	})
	return mapError(err)
}

// List returns all names with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := listObjects(ctx, s.client, s.bucket, s.key(prefix), s.prefix)
	if err != nil {
		return nil, mapError(err)
	}
	names := keys[:0]
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			names = append(names, k)
		}
	}
	return names, nil
}

func (s *Store) putInput(name string, data []byte) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	}
	if s.cfg.EnableChecksum {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
		input.ChecksumCRC32C = aws.String(computeCRC32C(data))
	}
	return input
}

func (s *Store) upload(ctx context.Context, input *s3.PutObjectInput, size int) (blobstore.Revision, error) {
	if int64(size) >= s.cfg.PartSize {
		return blobstore.NoRevision, ErrTooLarge
	}
	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return blobstore.NoRevision, mapError(err)
	}
	return blobstore.Revision(aws.ToString(out.ETag)), nil
}
