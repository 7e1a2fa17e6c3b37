package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/heysubinoy/quickmdb/pkg/kv"
)

func openTestBolt(t *testing.T) *BoltStore {
	t.Helper()

	s, err := OpenBolt(filepath.Join(t.TempDir(), "kv.db"), DefaultCollection, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// TestBoltStore_PersistsAcrossReopen verifies documents and revisions survive
// closing and reopening the file.
func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := OpenBolt(path, DefaultCollection, time.Second)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Upsert(ctx, "k", kv.MustValue(map[string]any{"a": []any{1}})))
	require.NoError(t, s.Upsert(ctx, "k", kv.MustValue(map[string]any{"a": []any{1, 2}})))
	require.NoError(t, s.Close(ctx))

	s, err = OpenBolt(path, DefaultCollection, time.Second)
	require.NoError(t, err)
	defer s.Close(ctx)

	doc, err := s.FindOne(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Rev)
	assert.True(t, doc.Value.Equal(kv.MustValue(map[string]any{"a": []any{1, 2}})))
}

// TestBoltStore_CompareAndSwap verifies swaps against current and stale revisions.
func TestBoltStore_CompareAndSwap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestBolt(t)

	require.NoError(t, s.Upsert(ctx, "k", kv.Number(1)))
	doc, err := s.FindOne(ctx, "k")
	require.NoError(t, err)

	swapped, err := s.CompareAndSwap(ctx, doc, kv.Number(2))
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = s.CompareAndSwap(ctx, doc, kv.Number(3))
	require.NoError(t, err)
	assert.False(t, swapped)

	swapped, err = s.CompareAndSwap(ctx, kv.Document{Key: "absent"}, kv.Number(3))
	require.NoError(t, err)
	assert.False(t, swapped)
}

// TestBoltStore_PrefixOrder verifies Find walks keys lexicographically and
// stops at the end of the prefix range.
func TestBoltStore_PrefixOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestBolt(t)
	for _, k := range []string{"user.2", "user.10", "order.1", "user.1", "userz"} {
		require.NoError(t, s.Upsert(ctx, k, kv.Null()))
	}

	docs, err := s.Find(ctx, "user.")
	require.NoError(t, err)

	keys := make([]string, len(docs))
	for i, d := range docs {
		keys[i] = d.Key
	}
	assert.Equal(t, []string{"user.1", "user.10", "user.2"}, keys)

	n, err := s.DeleteMany(ctx, "user.")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.DeleteMany(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

// TestBoltStore_CorruptDocument verifies undecodable payloads surface as
// ErrCorruptDocument.
func TestBoltStore_CorruptDocument(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestBolt(t)

	err := s.handle.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte("bad"), []byte("{not json"))
	})
	require.NoError(t, err)

	_, err = s.FindOne(ctx, "bad")
	require.ErrorIs(t, err, ErrCorruptDocument)
}

// TestBoltStore_CanceledContext verifies operations refuse a canceled context.
func TestBoltStore_CanceledContext(t *testing.T) {
	t.Parallel()

	s := openTestBolt(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, s.Upsert(ctx, "k", kv.Null()), context.Canceled)
	_, err := s.FindOne(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}
