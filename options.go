package redline

import (
	"log/slog"
	"time"

	"github.com/hupe1980/redline/codec"
	"github.com/hupe1980/redline/lock"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	codec            codec.Codec
	compression      codec.Compression
	metricsCollector MetricsCollector
	logger           *Logger

	lockTTL     time.Duration
	lockTimeout time.Duration
	backoff     *lock.Backoff

	pollsPerSecond float64
	pollBurst      int
	indexWorkers   int64
	docCacheSize   int

	now func() time.Time
}

// WithCodec sets the codec used to serialize documents.
// Pass nil to use codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithCompression compresses stored documents. Reads accept every
// compression regardless of this setting.
func WithCompression(c codec.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics.
//
// Example with basic metrics:
//
//	metrics := &redline.BasicMetricsCollector{}
//	s := redline.New(blobs, redline.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
//	fmt.Printf("Batches: %d, failed items: %d\n", stats.BatchCount, stats.BatchFailed)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := redline.NewJSONLogger(slog.LevelInfo)
//	s := redline.New(blobs, redline.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithLockTTL sets the advisory lifetime of lock tokens.
func WithLockTTL(d time.Duration) Option {
	return func(o *options) {
		o.lockTTL = d
	}
}

// WithLockTimeout bounds how long a mutation waits for its locks.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = d
	}
}

// WithBackoff sets the retry schedule for contended lock acquisitions.
func WithBackoff(b lock.Backoff) Option {
	return func(o *options) {
		o.backoff = &b
	}
}

// WithPollRate caps lock acquisition attempts against the blob store,
// shared by all mutations of the Store. perSecond <= 0 means unlimited.
func WithPollRate(perSecond float64, burst int) Option {
	return func(o *options) {
		o.pollsPerSecond = perSecond
		o.pollBurst = burst
	}
}

// WithIndexWorkers sets how many documents an index rebuild loads
// concurrently.
func WithIndexWorkers(n int) Option {
	return func(o *options) {
		o.indexWorkers = int64(n)
	}
}

// WithDocumentCacheSize sets how many per-document search indexes are kept.
// Zero disables the cache.
func WithDocumentCacheSize(n int) Option {
	return func(o *options) {
		o.docCacheSize = n
	}
}

// WithClock replaces time.Now for timestamps and lock expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            nil,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		lockTTL:          lock.DefaultTTL,
		lockTimeout:      lock.DefaultTimeout,
		indexWorkers:     8,
		docCacheSize:     128,
		now:              time.Now,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}
