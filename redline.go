package redline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/redline/blobstore"
	"github.com/hupe1980/redline/codec"
	"github.com/hupe1980/redline/internal/resource"
	"github.com/hupe1980/redline/lexical"
	"github.com/hupe1980/redline/lock"
	"github.com/hupe1980/redline/model"
)

const (
	documentPrefix = "documents/"
	documentSuffix = ".json"
)

func documentKey(id string) string {
	return documentPrefix + id + documentSuffix
}

func documentID(key string) (string, bool) {
	if !strings.HasPrefix(key, documentPrefix) || !strings.HasSuffix(key, documentSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, documentPrefix), documentSuffix)
	return id, id != ""
}

// Store is a collection of concurrently redlined documents kept in a
// blob store. Every mutation locks the documents it touches through the
// lock manager; reads and searches take no locks.
//
// A Store holds no exclusive state: any number of Stores, in any number of
// processes, may share one blob store.
type Store struct {
	blobs blobstore.Store
	opts  options
	env   codec.Envelope
	rc    *resource.Controller
	locks *lock.Manager
	index *lexical.Index
}

// New creates a Store on top of blobs.
func New(blobs blobstore.Store, optFns ...Option) *Store {
	o := applyOptions(optFns)

	s := &Store{
		blobs: blobs,
		opts:  o,
		env:   codec.Envelope{Codec: o.codec, Compression: o.compression},
		rc: resource.NewController(resource.Config{
			MaxWorkers:     o.indexWorkers,
			PollsPerSecond: o.pollsPerSecond,
			PollBurst:      o.pollBurst,
		}),
	}

	lockOpts := []lock.Option{
		lock.WithTTL(o.lockTTL),
		lock.WithTimeout(o.lockTimeout),
		lock.WithLogger(o.logger.Logger),
		lock.WithClock(o.now),
		lock.WithController(s.rc),
	}
	if o.backoff != nil {
		lockOpts = append(lockOpts, lock.WithBackoff(*o.backoff))
	}
	s.locks = lock.NewManager(blobs, lockOpts...)

	s.index = lexical.New(corpus{s},
		lexical.WithLogger(o.logger.Logger),
		lexical.WithController(s.rc),
		lexical.WithDocumentCacheSize(o.docCacheSize),
		lexical.WithRebuildHook(o.metricsCollector.RecordIndexRebuild),
	)
	return s
}

// Create stores a new document at version 1 and returns it.
func (s *Store) Create(ctx context.Context, title, text string) (*model.Document, error) {
	start := time.Now()
	doc, err := s.create(ctx, title, text)
	s.opts.metricsCollector.RecordCreate(time.Since(start), err)

	id := ""
	if doc != nil {
		id = doc.ID
	}
	s.opts.logger.LogCreate(ctx, id, err)
	return doc, err
}

func (s *Store) create(ctx context.Context, title, text string) (*model.Document, error) {
	id := uuid.NewString()

	guard, err := s.locks.Acquire(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, guard)

	now := s.opts.now().UTC()
	doc := &model.Document{
		ID:           id,
		Title:        title,
		Text:         text,
		Version:      1,
		CreatedAt:    now,
		LastModified: now,
	}
	data, err := s.env.Encode(doc)
	if err != nil {
		return nil, err
	}
	if _, err := s.blobs.CreateIfAbsent(ctx, documentKey(id), data); err != nil {
		if blobstore.IsConflict(err) {
			return nil, &ConflictError{DocumentID: id, cause: err}
		}
		return nil, err
	}

	s.index.Invalidate(id)
	return doc, nil
}

// Get returns the current state of a document without locking.
func (s *Store) Get(ctx context.Context, id string) (*model.Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	doc, _, err := s.load(ctx, id)
	if err != nil {
		return nil, s.loadError(id, err)
	}
	return doc, nil
}

// List returns every document id in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	keys, err := s.blobs.List(ctx, documentPrefix)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if id, ok := documentID(key); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Append adds text to the end of a document.
func (s *Store) Append(ctx context.Context, id, text string) (*model.Document, error) {
	return s.mutate(ctx, "append", id, func(doc *model.Document) error {
		doc.Text += text
		return nil
	})
}

// Update replaces the title and text of a document.
func (s *Store) Update(ctx context.Context, id, title, text string) (*model.Document, error) {
	return s.mutate(ctx, "update", id, func(doc *model.Document) error {
		doc.Title = title
		doc.Text = text
		return nil
	})
}

// Delete removes a document. Further operations on id return ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.delete(ctx, id)
	s.opts.metricsCollector.RecordDelete(time.Since(start), err)
	s.opts.logger.LogDelete(ctx, id, err)
	return err
}

func (s *Store) delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	guard, err := s.locks.Acquire(ctx, []string{id})
	if err != nil {
		return err
	}
	// Releasing also removes the lock object, so nothing is left under id.
	defer s.release(ctx, guard)

	doc, rev, err := s.load(ctx, id)
	if err != nil {
		return s.loadError(id, err)
	}

	err = s.blobs.DeleteIfMatches(ctx, documentKey(id), rev)
	switch {
	case err == nil:
	case blobstore.IsNotFound(err):
		return notFound(id)
	case blobstore.IsConflict(err):
		return &ConflictError{DocumentID: id, Expected: doc.Version, cause: err}
	default:
		return fmt.Errorf("delete %s: %w", id, err)
	}

	s.index.Invalidate(id)
	return nil
}

// Search queries the global index. The index is rebuilt first if any
// mutation happened since the last build.
func (s *Store) Search(ctx context.Context, query string, optFns ...model.SearchOption) ([]model.SearchHit, error) {
	start := time.Now()
	hits, err := s.search(ctx, query, optFns)
	s.opts.metricsCollector.RecordSearch(len(hits), time.Since(start), err)
	s.opts.logger.LogSearch(ctx, "", query, len(hits), err)
	return hits, err
}

func (s *Store) search(ctx context.Context, query string, optFns []model.SearchOption) ([]model.SearchHit, error) {
	opts, err := searchOptions(optFns)
	if err != nil {
		return nil, err
	}
	hits, err := s.index.Search(ctx, query, opts)
	if errors.Is(err, lexical.ErrEmptyQuery) {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return hits, err
}

// SearchDocument queries a single document. It reads the document without
// locking and leaves the global index untouched.
func (s *Store) SearchDocument(ctx context.Context, id, query string, optFns ...model.SearchOption) ([]model.SearchHit, error) {
	start := time.Now()
	hits, err := s.searchDocument(ctx, id, query, optFns)
	s.opts.metricsCollector.RecordSearch(len(hits), time.Since(start), err)
	s.opts.logger.LogSearch(ctx, id, query, len(hits), err)
	return hits, err
}

func (s *Store) searchDocument(ctx context.Context, id, query string, optFns []model.SearchOption) ([]model.SearchHit, error) {
	opts, err := searchOptions(optFns)
	if err != nil {
		return nil, err
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	hits, err := s.index.SearchText(doc.ID, doc.Version, doc.Text, query, opts)
	if errors.Is(err, lexical.ErrEmptyQuery) {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return hits, err
}

// SweepLocks removes expired and unreadable lock tokens left behind by
// crashed holders and returns how many were removed.
func (s *Store) SweepLocks(ctx context.Context) (int, error) {
	return s.locks.Sweep(ctx)
}

// mutate runs the locked read-modify-write cycle for one document.
func (s *Store) mutate(ctx context.Context, op, id string, fn func(doc *model.Document) error) (*model.Document, error) {
	start := time.Now()
	doc, err := s.mutateLocked(ctx, id, fn)
	s.opts.metricsCollector.RecordMutation(op, time.Since(start), err)

	var version int64
	if doc != nil {
		version = doc.Version
	}
	s.opts.logger.LogMutation(ctx, op, id, version, err)
	return doc, err
}

func (s *Store) mutateLocked(ctx context.Context, id string, fn func(doc *model.Document) error) (*model.Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	guard, err := s.locks.Acquire(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, guard)

	doc, rev, err := s.load(ctx, id)
	if err != nil {
		return nil, s.loadError(id, err)
	}
	expected := doc.Version
	if err := fn(doc); err != nil {
		return nil, translateError(err)
	}
	if err := s.commit(ctx, doc, rev, expected); err != nil {
		return nil, err
	}

	s.index.Invalidate(id)
	return doc, nil
}

// load reads and decodes a document. A missing document is reported as
// blobstore.ErrNotFound.
func (s *Store) load(ctx context.Context, id string) (*model.Document, blobstore.Revision, error) {
	data, rev, err := s.blobs.Get(ctx, documentKey(id))
	if err != nil {
		return nil, blobstore.NoRevision, err
	}
	var doc model.Document
	if err := s.env.Decode(data, &doc); err != nil {
		return nil, blobstore.NoRevision, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &doc, rev, nil
}

func (s *Store) loadError(id string, err error) error {
	if blobstore.IsNotFound(err) {
		return notFound(id)
	}
	return err
}

// commit writes doc as version expected+1, provided the stored revision is
// still rev.
func (s *Store) commit(ctx context.Context, doc *model.Document, rev blobstore.Revision, expected int64) error {
	doc.Version = expected + 1
	doc.LastModified = s.opts.now().UTC()

	data, err := s.env.Encode(doc)
	if err != nil {
		doc.Version = expected
		return err
	}
	_, err = s.blobs.Put(ctx, documentKey(doc.ID), data, rev)
	if err == nil {
		return nil
	}
	doc.Version = expected

	switch {
	case blobstore.IsNotFound(err):
		return notFound(doc.ID)
	case blobstore.IsConflict(err):
		return &ConflictError{DocumentID: doc.ID, Expected: expected, cause: err}
	default:
		return fmt.Errorf("write %s: %w", doc.ID, err)
	}
}

// release ends a guarded section. Stolen tokens are reported, never
// returned: the write they guarded has already committed or failed on its
// own.
func (s *Store) release(ctx context.Context, g *lock.Guard) {
	err := g.Release(ctx)
	if err == nil {
		return
	}
	if stolen := lock.StolenResources(err); len(stolen) > 0 {
		s.opts.logger.LogLockStolen(ctx, stolen, err)
		s.opts.metricsCollector.RecordLockStolen(len(stolen))
		return
	}
	s.opts.logger.ErrorContext(ctx, "lock release failed", "resources", g.Resources(), "error", err)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func validateID(id string) error {
	if id == "" {
		return validationf("empty document id")
	}
	if strings.ContainsAny(id, "/\\") {
		return validationf("document id %q contains a path separator", id)
	}
	return nil
}

func searchOptions(optFns []model.SearchOption) (model.SearchOptions, error) {
	opts := model.DefaultSearchOptions()
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}
	if opts.Limit < 0 || opts.Offset < 0 || opts.Buffer < 0 {
		return opts, validationf("negative limit, offset or buffer")
	}
	return opts, nil
}

// corpus feeds the search index from the blob store.
type corpus struct {
	s *Store
}

func (c corpus) IDs(ctx context.Context) ([]string, error) {
	return c.s.List(ctx)
}

func (c corpus) Text(ctx context.Context, id string) (string, bool, error) {
	doc, _, err := c.s.load(ctx, id)
	if blobstore.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.Text, true, nil
}
