package blobstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store implementation for testing.
// It stores blobs in memory without any filesystem dependency.
// Thread-safe for concurrent reads and writes.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memoryEntry
	seq   uint64
}

type memoryEntry struct {
	data []byte
	rev  Revision
}

// NewMemoryStore creates a new in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string]memoryEntry),
	}
}

// Get returns a copy of the blob and its revision.
func (m *MemoryStore) Get(ctx context.Context, name string) ([]byte, Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, NoRevision, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.blobs[name]
	if !ok {
		return nil, NoRevision, ErrNotFound
	}

	// Return a copy to prevent external mutation
	return clone(e.data), e.rev, nil
}

// Put replaces the blob if its revision matches.
func (m *MemoryStore) Put(ctx context.Context, name string, data []byte, expected Revision) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return NoRevision, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.blobs[name]
	if !ok {
		return NoRevision, ErrNotFound
	}
	if e.rev != expected {
		return NoRevision, ErrConflict
	}
	return m.storeLocked(name, data), nil
}

// CreateIfAbsent writes the blob if the name is unused.
func (m *MemoryStore) CreateIfAbsent(ctx context.Context, name string, data []byte) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return NoRevision, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[name]; ok {
		return NoRevision, ErrExists
	}
	return m.storeLocked(name, data), nil
}

// DeleteIfMatches removes the blob if its revision matches.
func (m *MemoryStore) DeleteIfMatches(ctx context.Context, name string, expected Revision) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.blobs[name]
	if !ok {
		return ErrNotFound
	}
	if e.rev != expected {
		return ErrConflict
	}
	delete(m.blobs, name)
	return nil
}

// List returns all blobs matching the prefix.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

func (m *MemoryStore) storeLocked(name string, data []byte) Revision {
	m.seq++
	rev := Revision(strconv.FormatUint(m.seq, 10))
	m.blobs[name] = memoryEntry{data: clone(data), rev: rev}
	return rev
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
