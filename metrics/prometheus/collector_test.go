package prometheus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hupe1980/redline"
	"github.com/hupe1980/redline/blobstore"
	"github.com/hupe1980/redline/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Records(t *testing.T) {
	c := NewCollector("redline")
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))

	c.RecordCreate(time.Millisecond, nil)
	c.RecordMutation("append", time.Millisecond, errors.New("boom"))
	c.RecordBatch("redline range", 5, 2, time.Millisecond)
	c.RecordLockStolen(2)
	c.RecordIndexRebuild(7, time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("create", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("append", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.batchItems.WithLabelValues("redline range", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.batchItems.WithLabelValues("redline range", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.locksStolen))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.indexDocs))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rebuilds.WithLabelValues("success")))
}

func TestCollector_RegisterTwice(t *testing.T) {
	c := NewCollector("redline")
	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))
	assert.Error(t, c.Register(reg))
}

func TestCollector_WithStore(t *testing.T) {
	c := NewCollector("redline")
	reg := prometheus.NewRegistry()
	c.MustRegister(reg)

	s := redline.New(blobstore.NewMemoryStore(), redline.WithMetricsCollector(c))
	ctx := context.Background()

	doc, err := s.Create(ctx, "", "hello world")
	require.NoError(t, err)
	_, err = s.RedlineTarget(ctx, []model.TargetEdit{{DocumentID: doc.ID, Target: "world", Occurrence: 1, Replacement: "there"}})
	require.NoError(t, err)
	_, err = s.Search(ctx, "there")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("create", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batchItems.WithLabelValues("redline target", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ops.WithLabelValues("search", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.indexDocs))

	n, err := testutil.GatherAndCount(reg, "redline_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
