package lexical

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/redline/internal/cache"
	"github.com/hupe1980/redline/internal/resource"
	"github.com/hupe1980/redline/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrEmptyQuery is returned for queries without any letter or digit.
var ErrEmptyQuery = errors.New("lexical: query has no searchable terms")

// Corpus is the source of truth the index is built from.
type Corpus interface {
	// IDs returns every document id.
	IDs(ctx context.Context) ([]string, error)
	// Text returns the current text of a document. ok is false when the
	// document vanished since IDs was called.
	Text(ctx context.Context, id string) (text string, ok bool, err error)
}

// RebuildHook observes finished rebuilds.
type RebuildHook func(docs int, took time.Duration, err error)

type options struct {
	logger    *slog.Logger
	rc        *resource.Controller
	cacheSize int
	onRebuild RebuildHook
}

// Option configures an Index.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithController bounds concurrent document loads by rc's worker limit.
func WithController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// WithDocumentCacheSize sets how many single-document indexes SearchText
// keeps. Zero disables the cache.
func WithDocumentCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithRebuildHook registers a callback for every rebuild.
func WithRebuildHook(fn RebuildHook) Option {
	return func(o *options) { o.onRebuild = fn }
}

type docKey struct {
	id      string
	version int64
}

// Index is the lazily rebuilt global search index.
type Index struct {
	corpus Corpus
	opts   options

	// gen counts invalidations; builtGen is the gen the snapshot reflects.
	gen      atomic.Uint64
	mu       sync.RWMutex
	snap     *snapshot
	builtGen uint64

	group  singleflight.Group
	single *cache.LRU[docKey, *snapshot]
}

// New creates an index over corpus. Nothing is built until the first query.
func New(corpus Corpus, optFns ...Option) *Index {
	opts := options{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		cacheSize: 128,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	idx := &Index{
		corpus: corpus,
		opts:   opts,
		single: cache.NewLRU[docKey, *snapshot](opts.cacheSize),
	}
	// Start stale.
	idx.gen.Store(1)
	return idx
}

// Invalidate marks the index stale. The rebuild is deferred to the next
// query. ids only drop cached single-document indexes; the global index is
// always rebuilt whole.
func (idx *Index) Invalidate(ids ...string) {
	idx.gen.Add(1)
	if len(ids) > 0 {
		idx.single.Invalidate(func(k docKey) bool { return slices.Contains(ids, k.id) })
	}
}

// Stale reports whether the next query will rebuild.
func (idx *Index) Stale() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.snap == nil || idx.builtGen != idx.gen.Load()
}

// EnsureBuilt rebuilds the index if it is stale.
func (idx *Index) EnsureBuilt(ctx context.Context) error {
	_, err := idx.current(ctx)
	return err
}

// built is a snapshot and the generation it reflects.
type built struct {
	snap *snapshot
	gen  uint64
}

// current returns a snapshot at least as new as the generation observed on
// entry. A flight that started before a later invalidation is not enough;
// the caller waits for it and then starts another.
func (idx *Index) current(ctx context.Context) (*snapshot, error) {
	want := idx.gen.Load()
	for {
		idx.mu.RLock()
		snap, gen := idx.snap, idx.builtGen
		idx.mu.RUnlock()
		if snap != nil && gen >= want {
			return snap, nil
		}

		v, err, _ := idx.group.Do("rebuild", func() (any, error) {
			return idx.rebuild(ctx)
		})
		if err != nil {
			return nil, err
		}
		if b := v.(built); b.gen >= want {
			return b.snap, nil
		}
	}
}

func (idx *Index) rebuild(ctx context.Context) (built, error) {
	gen := idx.gen.Load()
	idx.mu.RLock()
	snap, fresh := idx.snap, idx.snap != nil && idx.builtGen >= gen
	cur := idx.builtGen
	idx.mu.RUnlock()
	if fresh {
		// A flight that ended after our check already rebuilt it.
		return built{snap: snap, gen: cur}, nil
	}

	start := time.Now()
	snap, err := idx.build(ctx)
	took := time.Since(start)
	if idx.opts.onRebuild != nil {
		docs := 0
		if snap != nil {
			docs = len(snap.docs)
		}
		idx.opts.onRebuild(docs, took, err)
	}
	if err != nil {
		idx.opts.logger.Warn("search index rebuild failed", "error", err, "took", took)
		return built{}, err
	}

	idx.mu.Lock()
	if idx.snap == nil || gen >= idx.builtGen {
		idx.snap = snap
		idx.builtGen = gen
	}
	idx.mu.Unlock()

	idx.opts.logger.Debug("search index rebuilt", "documents", len(snap.docs), "generation", gen, "took", took)
	return built{snap: snap, gen: gen}, nil
}

func (idx *Index) build(ctx context.Context) (*snapshot, error) {
	ids, err := idx.corpus.IDs(ctx)
	if err != nil {
		return nil, err
	}
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	docs := make([]document, len(ids))
	found := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.opts.rc.MaxWorkers())
	for i, id := range ids {
		g.Go(func() error {
			if err := idx.opts.rc.AcquireWorker(gctx); err != nil {
				return err
			}
			defer idx.opts.rc.ReleaseWorker()

			text, ok, err := idx.corpus.Text(gctx, id)
			if err != nil {
				return err
			}
			if ok {
				docs[i] = newDocument(id, text)
				found[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := docs[:0]
	for i := range docs {
		if found[i] {
			kept = append(kept, docs[i])
		}
	}
	return newSnapshot(kept), nil
}

// Search queries the global index, rebuilding it first if stale.
func (idx *Index) Search(ctx context.Context, query string, opts model.SearchOptions) ([]model.SearchHit, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}
	snap, err := idx.current(ctx)
	if err != nil {
		return nil, err
	}
	return snap.search(terms, opts), nil
}

// SearchText searches a single document without touching the global index.
// The transient index is cached under (id, version).
func (idx *Index) SearchText(id string, version int64, text, query string, opts model.SearchOptions) ([]model.SearchHit, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}
	key := docKey{id: id, version: version}
	snap, ok := idx.single.Get(key)
	if !ok {
		snap = newSnapshot([]document{newDocument(id, text)})
		idx.single.Set(key, snap)
	}
	return snap.search(terms, opts), nil
}

// Documents returns the number of documents in the current snapshot, or
// zero if nothing has been built.
func (idx *Index) Documents() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.snap == nil {
		return 0
	}
	return len(idx.snap.docs)
}
