package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	localLockFile  = ".redline.lock"
	localTmpPrefix = ".tmp-"
)

// LocalStore implements Store using the local file system.
//
// Conditional operations are serialized with an exclusive advisory lock on a
// file in the root directory, so several processes may share one root.
// Revisions are content hashes.
type LocalStore struct {
	root string
	mu   sync.Mutex
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
// The directory is created if it does not exist.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the root directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("blobstore: invalid blob name %q", name)
	}
	return filepath.Join(s.root, clean), nil
}

// Get reads the blob. Writers replace files by rename, so a read observes
// either the old or the new content in full.
func (s *LocalStore) Get(ctx context.Context, name string) ([]byte, Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, NoRevision, err
	}
	p, err := s.path(name)
	if err != nil {
		return nil, NoRevision, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NoRevision, ErrNotFound
		}
		return nil, NoRevision, err
	}
	return data, contentRevision(data), nil
}

// Put replaces the blob if its revision matches.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte, expected Revision) (Revision, error) {
	p, err := s.path(name)
	if err != nil {
		return NoRevision, err
	}
	var rev Revision
	err = s.withLock(ctx, func() error {
		current, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return ErrNotFound
			}
			return err
		}
		if contentRevision(current) != expected {
			return ErrConflict
		}
		if err := writeFileAtomic(p, data); err != nil {
			return err
		}
		rev = contentRevision(data)
		return nil
	})
	return rev, err
}

// CreateIfAbsent writes the blob if the name is unused.
func (s *LocalStore) CreateIfAbsent(ctx context.Context, name string, data []byte) (Revision, error) {
	p, err := s.path(name)
	if err != nil {
		return NoRevision, err
	}
	var rev Revision
	err = s.withLock(ctx, func() error {
		if _, err := os.Stat(p); err == nil {
			return ErrExists
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := writeFileAtomic(p, data); err != nil {
			return err
		}
		rev = contentRevision(data)
		return nil
	})
	return rev, err
}

// DeleteIfMatches removes the blob if its revision matches.
func (s *LocalStore) DeleteIfMatches(ctx context.Context, name string, expected Revision) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	return s.withLock(ctx, func() error {
		current, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return ErrNotFound
			}
			return err
		}
		if contentRevision(current) != expected {
			return ErrConflict
		}
		return os.Remove(p)
	})
}

// List returns all blob names with the given prefix, using forward slashes.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := d.Name()
		if base == localLockFile || strings.HasPrefix(base, localTmpPrefix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (s *LocalStore) withLock(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(s.root, localLockFile), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("blobstore: lock %s: %w", s.root, err)
	}
	defer func() { _ = unlockFile(f) }()

	return fn()
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, localTmpPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func contentRevision(data []byte) Revision {
	sum := sha256.Sum256(data)
	return Revision(hex.EncodeToString(sum[:16]))
}
