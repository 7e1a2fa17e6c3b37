package quickmdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/heysubinoy/quickmdb/internal/store"
	"github.com/heysubinoy/quickmdb/pkg/config"
	"github.com/heysubinoy/quickmdb/pkg/kv"
)

// TestConnect_Memory verifies a client opened from a memory URL serves the
// full store contract and closes cleanly.
func TestConnect_Memory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, err := Connect(ctx, "memory://", WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close(ctx)) }()

	assert.IsType(t, &kv.DB{}, c.Store, "no metrics unless asked")

	require.NoError(t, c.Set(ctx, "visits", kv.Number(0)))
	require.NoError(t, c.Add(ctx, "visits", 1))
	got, err := c.Get(ctx, "visits")
	require.NoError(t, err)
	assert.True(t, got.Equal(kv.Number(1)))
}

// TestOpen_BoltRoundtrip verifies data written through one client is read
// back by another client on the same file.
func TestOpen_BoltRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := config.Default("bolt://" + filepath.Join(t.TempDir(), "kv.db"))

	c, err := Open(ctx, cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "list", kv.MustValue([]any{"a"})))
	require.NoError(t, c.Push(ctx, "list", kv.String("b")))
	require.NoError(t, c.Close(ctx))

	c, err = Open(ctx, cfg, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer c.Close(ctx)

	got, err := c.Fetch(ctx, "list")
	require.NoError(t, err)
	assert.True(t, got.Equal(kv.MustValue([]any{"a", "b"})))
}

// TestOpen_Metrics verifies WithRegisterer wraps the store with instrumentation.
func TestOpen_Metrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := prometheus.NewRegistry()

	c, err := Connect(ctx, "memory://", WithLogger(zap.NewNop()), WithRegisterer(reg))
	require.NoError(t, err)
	defer c.Close(ctx)

	require.IsType(t, &store.InstrumentedStore{}, c.Store)
	require.NoError(t, c.Set(ctx, "k", kv.Null()))
	_, err = c.Has(ctx, "k")
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "quickmdb_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotNil(t, c.DB())
}

func TestOpen_InvalidConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := Open(ctx, &config.Config{})
	require.Error(t, err)

	_, err = Connect(ctx, "ftp://example.com", WithLogger(zap.NewNop()))
	require.ErrorIs(t, err, store.ErrUnsupportedScheme)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	cfg := config.Default("memory://")
	cfg.LogLevel = "warn"
	cfg.LogFormat = "console"

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	cfg.LogLevel = "shout"
	_, err = NewLogger(cfg)
	require.Error(t, err)
}
