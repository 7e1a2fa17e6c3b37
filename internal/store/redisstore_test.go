package store

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heysubinoy/quickmdb/pkg/kv"
)

func TestEscapeGlob(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "quick.mdbs:user.", escapeGlob("quick.mdbs:user."))
	assert.Equal(t, `a\*b\?c\[d\]e\\f`, escapeGlob(`a*b?c[d]e\f`))
}

// TestParseRedisHash covers present, absent and corrupt HMGET replies.
func TestParseRedisHash(t *testing.T) {
	t.Parallel()

	doc, err := parseRedisHash("k", []any{"3", `{"a":[1]}`})
	require.NoError(t, err)
	assert.Equal(t, int64(3), doc.Rev)
	assert.True(t, doc.Value.Equal(kv.MustValue(map[string]any{"a": []any{1}})))

	_, err = parseRedisHash("k", []any{nil, nil})
	require.ErrorIs(t, err, kv.ErrNoDocument)

	_, err = parseRedisHash("k", []any{"x", "1"})
	require.ErrorIs(t, err, ErrCorruptDocument)

	_, err = parseRedisHash("k", []any{"1", "{"})
	require.ErrorIs(t, err, ErrCorruptDocument)
}

func TestRedisStore_Namespace(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	s := NewRedisStore(client, "quick.mdbs")
	defer s.Close(context.Background())

	assert.Equal(t, "quick.mdbs:user.1", s.redisKey("user.1"))
}

func TestOpenRedis_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := OpenRedis(context.Background(), "redis://host:notaport", DefaultCollection)
	require.Error(t, err)
}
