package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/hupe1980/redline/blobstore"
)

const (
	revSize     = 8
	seqKey      = "\x00redline/seq"
	seqLeaseLen = 128
)

// Config holds configuration for a BadgerDB-backed store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger
}

// DefaultConfig returns durable settings for a database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns settings for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store implements blobstore.Store on a BadgerDB database.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	ownsDB bool
}

var _ blobstore.Store = (*Store)(nil)

// Open opens (or creates) a database and wraps it in a Store.
// Close releases the database.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badger: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	s, err := NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewStore wraps an already open database. The caller keeps ownership of db.
func NewStore(db *badger.DB) (*Store, error) {
	seq, err := db.GetSequence([]byte(seqKey), seqLeaseLen)
	if err != nil {
		return nil, fmt.Errorf("badger: revision sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

// Close releases the revision sequence and, for stores created by Open, the
// database.
func (s *Store) Close() error {
	err := s.seq.Release()
	if s.ownsDB {
		err = errors.Join(err, s.db.Close())
	}
	return err
}

// Get reads a value and its revision.
func (s *Store) Get(ctx context.Context, name string) ([]byte, blobstore.Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, blobstore.NoRevision, err
	}
	var (
		data []byte
		rev  uint64
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		data, rev, err = load(txn, name)
		return err
	})
	if err != nil {
		return nil, blobstore.NoRevision, err
	}
	return data, formatRev(rev), nil
}

// Put replaces a value if its revision equals expected.
func (s *Store) Put(ctx context.Context, name string, data []byte, expected blobstore.Revision) (blobstore.Revision, error) {
	if err := ctx.Err(); err != nil {
		return blobstore.NoRevision, err
	}
	want, err := parseRev(expected)
	if err != nil {
		return blobstore.NoRevision, blobstore.ErrConflict
	}

	next, err := s.seq.Next()
	if err != nil {
		return blobstore.NoRevision, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		_, cur, err := load(txn, name)
		if err != nil {
			return err
		}
		if cur != want {
			return blobstore.ErrConflict
		}
		return txn.Set([]byte(name), encode(next, data))
	})
	if err != nil {
		return blobstore.NoRevision, mapError(err)
	}
	return formatRev(next), nil
}

// CreateIfAbsent writes a value only if name is unused.
func (s *Store) CreateIfAbsent(ctx context.Context, name string, data []byte) (blobstore.Revision, error) {
	if err := ctx.Err(); err != nil {
		return blobstore.NoRevision, err
	}

	next, err := s.seq.Next()
	if err != nil {
		return blobstore.NoRevision, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		_, _, err := load(txn, name)
		if err == nil {
			return blobstore.ErrExists
		}
		if !errors.Is(err, blobstore.ErrNotFound) {
			return err
		}
		return txn.Set([]byte(name), encode(next, data))
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent transaction created the name first.
		return blobstore.NoRevision, blobstore.ErrExists
	}
	if err != nil {
		return blobstore.NoRevision, err
	}
	return formatRev(next), nil
}

// DeleteIfMatches removes a value if its revision equals expected.
func (s *Store) DeleteIfMatches(ctx context.Context, name string, expected blobstore.Revision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	want, err := parseRev(expected)
	if err != nil {
		return blobstore.ErrConflict
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		_, cur, err := load(txn, name)
		if err != nil {
			return err
		}
		if cur != want {
			return blobstore.ErrConflict
		}
		return txn.Delete([]byte(name))
	})
	return mapError(err)
}

// List returns all names with the given prefix in lexical order.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if string(key) == seqKey {
				continue
			}
			names = append(names, string(key))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func load(txn *badger.Txn, name string) ([]byte, uint64, error) {
	item, err := txn.Get([]byte(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, 0, blobstore.ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, 0, err
	}
	if len(raw) < revSize {
		return nil, 0, fmt.Errorf("badger: corrupt value for %q", name)
	}
	return raw[revSize:], binary.BigEndian.Uint64(raw[:revSize]), nil
}

func encode(rev uint64, data []byte) []byte {
	buf := make([]byte, revSize+len(data))
	binary.BigEndian.PutUint64(buf, rev)
	copy(buf[revSize:], data)
	return buf
}

func mapError(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return blobstore.ErrConflict
	}
	return err
}

func parseRev(rev blobstore.Revision) (uint64, error) {
	return strconv.ParseUint(string(rev), 10, 64)
}

func formatRev(rev uint64) blobstore.Revision {
	return blobstore.Revision(strconv.FormatUint(rev, 10))
}
