package store

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heysubinoy/quickmdb/pkg/kv"
)

// TestInstrumentedStore_Counts verifies every call is counted under its
// operation name and result.
func TestInstrumentedStore_Counts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	s := NewInstrumentedStore(kv.NewDB(NewMemStore()), metrics)

	require.NoError(t, s.Set(ctx, "n", kv.Number(1)))
	require.NoError(t, s.Add(ctx, "n", 2))
	require.ErrorIs(t, s.Push(ctx, "n", kv.Null()), kv.ErrNotArray)
	_, err = s.Get(ctx, "n")
	require.NoError(t, err)
	_, err = s.All(ctx)
	require.NoError(t, err)

	ops := metrics.Operations
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("set", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("push", "shape_mismatch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("fetch", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues("fetch_all", "ok")))

	assert.Equal(t, 5, testutil.CollectAndCount(metrics.Operations))
	assert.Equal(t, 5, testutil.CollectAndCount(metrics.Duration), "one histogram per operation")
}

// TestNewMetrics_Reuse verifies a second registration reuses the collectors.
func TestNewMetrics_Reuse(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := NewMetrics(reg)
	require.NoError(t, err)
	second, err := NewMetrics(reg)
	require.NoError(t, err)

	assert.Same(t, first.Operations, second.Operations)
	assert.Same(t, first.Duration, second.Duration)
}

func TestResultLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", resultLabel(nil))
	assert.Equal(t, "shape_mismatch", resultLabel(&kv.ShapeError{Key: "k", Want: kv.ErrNotNumber}))
	assert.Equal(t, "conflict", resultLabel(kv.ErrConflict))
	assert.Equal(t, "error", resultLabel(context.Canceled))
}
