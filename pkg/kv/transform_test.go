package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendValue(t *testing.T) {
	t.Parallel()

	cur := Sequence(String("a"), String("b"))
	next, ok := AppendValue(cur, String("c"))
	require.True(t, ok)
	assert.True(t, next.Equal(Sequence(String("a"), String("b"), String("c"))))
	assert.Equal(t, 2, cur.Len(), "input must not change")

	_, ok = AppendValue(Number(1), String("c"))
	assert.False(t, ok)
	_, ok = AppendValue(Null(), String("c"))
	assert.False(t, ok)
}

func TestAddNumber(t *testing.T) {
	t.Parallel()

	next, ok := AddNumber(Number(5), 3)
	require.True(t, ok)
	assert.True(t, next.Equal(Number(8)))

	_, ok = AddNumber(String("5"), 3)
	assert.False(t, ok)
}

// TestRemoveEqual verifies every equal item is removed and value equality is
// used rather than identity.
func TestRemoveEqual(t *testing.T) {
	t.Parallel()

	cur := MustValue([]any{1, 2, 1, 3})
	next, changed, ok := RemoveEqual(cur, Number(1))
	require.True(t, ok)
	assert.True(t, changed)
	assert.True(t, next.Equal(MustValue([]any{2, 3})))
	assert.Equal(t, 4, cur.Len(), "input must not change")

	objs := MustValue([]any{map[string]any{"id": 1}, map[string]any{"id": 2}})
	next, changed, ok = RemoveEqual(objs, MustValue(map[string]any{"id": 1}))
	require.True(t, ok)
	assert.True(t, changed)
	assert.True(t, next.Equal(MustValue([]any{map[string]any{"id": 2}})))

	_, changed, ok = RemoveEqual(cur, Number(9))
	assert.True(t, ok)
	assert.False(t, changed)

	_, _, ok = RemoveEqual(Mapping(nil), Number(1))
	assert.False(t, ok)
}

func TestRemoveField(t *testing.T) {
	t.Parallel()

	cur := MustValue(map[string]any{"a": 1, "b": 2})
	next, changed, ok := RemoveField(cur, "a")
	require.True(t, ok)
	assert.True(t, changed)
	assert.True(t, next.Equal(MustValue(map[string]any{"b": 2})))
	assert.Equal(t, 2, cur.Len(), "input must not change")

	_, changed, ok = RemoveField(cur, "missing")
	assert.True(t, ok)
	assert.False(t, changed)

	_, _, ok = RemoveField(Sequence(), "a")
	assert.False(t, ok)
}
