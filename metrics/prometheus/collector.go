// Package prometheus exports redline operation metrics to Prometheus.
//
//	c := prometheus.NewCollector("redline")
//	c.MustRegister(registry) // any prometheus.Registerer
//	s := redline.New(blobs, redline.WithMetricsCollector(c))
package prometheus

import (
	"time"

	"github.com/hupe1980/redline"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements redline.MetricsCollector with Prometheus vectors.
type Collector struct {
	opLatency   *prometheus.HistogramVec
	ops         *prometheus.CounterVec
	batchItems  *prometheus.CounterVec
	searchHits  prometheus.Histogram
	locksStolen prometheus.Counter
	rebuilds    *prometheus.CounterVec
	indexDocs   prometheus.Gauge
}

var _ redline.MetricsCollector = (*Collector)(nil)

// NewCollector creates unregistered metrics under the given namespace.
func NewCollector(namespace string) *Collector {
	return &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of document store operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total document store operations",
		}, []string{"op", "status"}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Batch redline items by outcome",
		}, []string{"op", "status"}),
		searchHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_hits",
			Help:      "Hits returned per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		}),
		locksStolen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locks_stolen_total",
			Help:      "Lock tokens found replaced or missing on release",
		}),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_rebuilds_total",
			Help:      "Global search index rebuilds",
		}, []string{"status"}),
		indexDocs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_documents",
			Help:      "Documents in the last successfully built index",
		}),
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.opLatency,
		c.ops,
		c.batchItems,
		c.searchHits,
		c.locksStolen,
		c.rebuilds,
		c.indexDocs,
	}
}

// Register registers every metric with reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, m := range c.collectors() {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (c *Collector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c.collectors()...)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.opLatency.WithLabelValues(op, s).Observe(d.Seconds())
	c.ops.WithLabelValues(op, s).Inc()
}

// RecordCreate implements redline.MetricsCollector.
func (c *Collector) RecordCreate(d time.Duration, err error) {
	c.observe("create", d, err)
}

// RecordMutation implements redline.MetricsCollector.
func (c *Collector) RecordMutation(op string, d time.Duration, err error) {
	c.observe(op, d, err)
}

// RecordBatch implements redline.MetricsCollector.
func (c *Collector) RecordBatch(op string, count, failed int, d time.Duration) {
	c.observe(op, d, nil)
	c.batchItems.WithLabelValues(op, "success").Add(float64(count - failed))
	c.batchItems.WithLabelValues(op, "error").Add(float64(failed))
}

// RecordSearch implements redline.MetricsCollector.
func (c *Collector) RecordSearch(hits int, d time.Duration, err error) {
	c.observe("search", d, err)
	if err == nil {
		c.searchHits.Observe(float64(hits))
	}
}

// RecordDelete implements redline.MetricsCollector.
func (c *Collector) RecordDelete(d time.Duration, err error) {
	c.observe("delete", d, err)
}

// RecordLockStolen implements redline.MetricsCollector.
func (c *Collector) RecordLockStolen(resources int) {
	c.locksStolen.Add(float64(resources))
}

// RecordIndexRebuild implements redline.MetricsCollector.
func (c *Collector) RecordIndexRebuild(docs int, d time.Duration, err error) {
	c.rebuilds.WithLabelValues(status(err)).Inc()
	c.observe("index_rebuild", d, err)
	if err == nil {
		c.indexDocs.Set(float64(docs))
	}
}
