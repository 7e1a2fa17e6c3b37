package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/heysubinoy/quickmdb/pkg/kv"
)

// TestToBSON verifies numbers are narrowed like the JS driver does and
// mappings are written with sorted keys.
func TestToBSON(t *testing.T) {
	t.Parallel()

	assert.Nil(t, toBSON(kv.Null()))
	assert.Equal(t, int32(8), toBSON(kv.Number(8)))
	assert.Equal(t, 2.5, toBSON(kv.Number(2.5)))
	assert.Equal(t, float64(1<<40), toBSON(kv.Number(1<<40)))
	assert.Equal(t, "s", toBSON(kv.String("s")))

	got := toBSON(kv.MustValue(map[string]any{"b": []any{1, true}, "a": nil}))
	assert.Equal(t, bson.D{
		{Key: "a", Value: nil},
		{Key: "b", Value: bson.A{int32(1), true}},
	}, got)
}

// TestFromBSON verifies decoded driver types become plain JSON-compatible
// values.
func TestFromBSON(t *testing.T) {
	t.Parallel()

	oid := bson.NewObjectID()
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	got, err := fromBSON(bson.D{
		{Key: "i32", Value: int32(1)},
		{Key: "i64", Value: int64(2)},
		{Key: "arr", Value: bson.A{"x", bson.M{"y": 1.5}}},
		{Key: "id", Value: oid},
		{Key: "at", Value: bson.NewDateTimeFromTime(when)},
		{Key: "nil", Value: nil},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"i32": 1.0,
		"i64": 2.0,
		"arr": []any{"x", map[string]any{"y": 1.5}},
		"id":  oid.Hex(),
		"at":  "2024-05-01T12:00:00Z",
		"nil": nil,
	}, got)

	_, err = fromBSON(bson.Binary{Data: []byte{1}})
	require.ErrorIs(t, err, ErrUnsupportedBSON)
}

// TestMongoDocument_ToDocument verifies the decoded record keeps key and rev.
func TestMongoDocument_ToDocument(t *testing.T) {
	t.Parallel()

	doc, err := mongoDocument{Key: "k", Value: bson.A{int32(1), int32(2)}, Rev: 4}.toDocument()
	require.NoError(t, err)
	assert.Equal(t, "k", doc.Key)
	assert.Equal(t, int64(4), doc.Rev)
	assert.True(t, doc.Value.Equal(kv.MustValue([]any{1, 2})))
}

// TestPrefixFilter verifies prefixes are anchored and matched literally.
func TestPrefixFilter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, bson.D{}, prefixFilter(""))
	assert.Equal(t,
		bson.D{{Key: "key", Value: bson.Regex{Pattern: `^user\.`}}},
		prefixFilter("user."),
	)
}

// TestRevisionFilter verifies documents without rev are matched by revision 0.
func TestRevisionFilter(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		bson.D{{Key: "key", Value: "k"}, {Key: "rev", Value: int64(3)}},
		revisionFilter(kv.Document{Key: "k", Rev: 3}),
	)
	assert.Equal(t,
		bson.D{
			{Key: "key", Value: "k"},
			{Key: "rev", Value: bson.D{{Key: "$in", Value: bson.A{nil, int64(0)}}}},
		},
		revisionFilter(kv.Document{Key: "k"}),
	)
}
