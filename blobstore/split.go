package blobstore

import (
	"context"
	"sort"
	"strings"
)

// SplitStore routes every blob whose name starts with Prefix to Routed and all
// other blobs to Primary.
//
// A typical deployment keeps documents in an object store and lock tokens in
// a store with cheaper conditional writes, e.g. S3 for "documents/" and
// DynamoDB for "locks/".
type SplitStore struct {
	Primary Store
	Routed  Store
	Prefix  string
}

// NewSplitStore creates a SplitStore.
func NewSplitStore(primary Store, prefix string, routed Store) *SplitStore {
	return &SplitStore{Primary: primary, Routed: routed, Prefix: prefix}
}

func (s *SplitStore) pick(name string) Store {
	if strings.HasPrefix(name, s.Prefix) {
		return s.Routed
	}
	return s.Primary
}

// Get reads from the store owning name.
func (s *SplitStore) Get(ctx context.Context, name string) ([]byte, Revision, error) {
	return s.pick(name).Get(ctx, name)
}

// Put writes to the store owning name.
func (s *SplitStore) Put(ctx context.Context, name string, data []byte, expected Revision) (Revision, error) {
	return s.pick(name).Put(ctx, name, data, expected)
}

// CreateIfAbsent creates in the store owning name.
func (s *SplitStore) CreateIfAbsent(ctx context.Context, name string, data []byte) (Revision, error) {
	return s.pick(name).CreateIfAbsent(ctx, name, data)
}

// DeleteIfMatches deletes from the store owning name.
func (s *SplitStore) DeleteIfMatches(ctx context.Context, name string, expected Revision) error {
	return s.pick(name).DeleteIfMatches(ctx, name, expected)
}

// List merges listings from both stores when the prefix can span them.
func (s *SplitStore) List(ctx context.Context, prefix string) ([]string, error) {
	switch {
	case strings.HasPrefix(prefix, s.Prefix):
		return s.Routed.List(ctx, prefix)
	case !strings.HasPrefix(s.Prefix, prefix):
		return s.Primary.List(ctx, prefix)
	}

	primary, err := s.Primary.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	routed, err := s.Routed.List(ctx, s.Prefix)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(primary)+len(routed))
	for _, n := range primary {
		if !strings.HasPrefix(n, s.Prefix) {
			names = append(names, n)
		}
	}
	names = append(names, routed...)
	sort.Strings(names)
	return names, nil
}
