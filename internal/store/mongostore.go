package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/heysubinoy/quickmdb/pkg/kv"
)

// DefaultCollection is the collection name used when none is configured.
// It matches the name existing quick.mdb deployments write to.
const DefaultCollection = "quick.mdbs"

// verify MongoStore implements the collection interface in compile time
var _ kv.Collection = (*MongoStore)(nil)

// mongoDocument is the on-disk shape: {key, value, rev}. Documents created by
// other writers may lack rev, which then decodes as 0.
type mongoDocument struct {
	Key   string `bson:"key"`
	Value any    `bson:"value"`
	Rev   int64  `bson:"rev"`
}

// MongoStore is a kv.Collection backed by a MongoDB collection with a unique
// index on key.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to uri, pings the deployment and ensures the unique key
// index on database.collection.
func OpenMongo(ctx context.Context, uri, database, collection string, timeout time.Duration) (*MongoStore, error) {
	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := NewMongoStore(client, database, collection)
	if err := s.EnsureIndex(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// NewMongoStore wraps an already connected client.
func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}
}

// EnsureIndex creates the unique index on key if it does not exist.
func (s *MongoStore) EnsureIndex(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create key index on %s: %w", s.coll.Name(), err)
	}
	return nil
}

// FindOne returns the document stored under key.
func (s *MongoStore) FindOne(ctx context.Context, key string) (kv.Document, error) {
	var doc mongoDocument
	err := s.coll.FindOne(ctx, bson.D{{Key: "key", Value: key}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return kv.Document{}, kv.ErrNoDocument
	}
	if err != nil {
		return kv.Document{}, fmt.Errorf("find %q: %w", key, err)
	}
	return doc.toDocument()
}

// Find returns the documents whose key starts with prefix, in natural order.
func (s *MongoStore) Find(ctx context.Context, prefix string) ([]kv.Document, error) {
	cursor, err := s.coll.Find(ctx, prefixFilter(prefix))
	if err != nil {
		return nil, fmt.Errorf("find prefix %q: %w", prefix, err)
	}

	var raw []mongoDocument
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("find prefix %q: %w", prefix, err)
	}

	docs := make([]kv.Document, 0, len(raw))
	for _, r := range raw {
		doc, err := r.toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Upsert stores value under key and bumps its revision.
func (s *MongoStore) Upsert(ctx context.Context, key string, value kv.Value) error {
	filter := bson.D{{Key: "key", Value: key}}
	update := setValue(value)
	opts := options.UpdateOne().SetUpsert(true)

	_, err := s.coll.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent upsert inserted the key first; this one now matches it.
		_, err = s.coll.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return fmt.Errorf("upsert %q: %w", key, err)
	}
	return nil
}

// CompareAndSwap stores value if the document still has revision doc.Rev.
func (s *MongoStore) CompareAndSwap(ctx context.Context, doc kv.Document, value kv.Value) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, revisionFilter(doc), setValue(value))
	if err != nil {
		return false, fmt.Errorf("update %q: %w", doc.Key, err)
	}
	return res.MatchedCount == 1, nil
}

// DeleteOne removes key. Missing keys are ignored.
func (s *MongoStore) DeleteOne(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: "key", Value: key}}); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// DeleteMany removes every key starting with prefix.
func (s *MongoStore) DeleteMany(ctx context.Context, prefix string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, prefixFilter(prefix))
	if err != nil {
		return 0, fmt.Errorf("delete prefix %q: %w", prefix, err)
	}
	return res.DeletedCount, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// prefixFilter matches keys starting with prefix through an anchored regex,
// which MongoDB can answer from the key index. An empty prefix matches all.
func prefixFilter(prefix string) bson.D {
	if prefix == "" {
		return bson.D{}
	}
	return bson.D{{Key: "key", Value: bson.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}}}
}

// revisionFilter matches doc only while its revision is unchanged. Revision 0
// stands for documents without a rev field.
func revisionFilter(doc kv.Document) bson.D {
	if doc.Rev == 0 {
		return bson.D{
			{Key: "key", Value: doc.Key},
			{Key: "rev", Value: bson.D{{Key: "$in", Value: bson.A{nil, int64(0)}}}},
		}
	}
	return bson.D{{Key: "key", Value: doc.Key}, {Key: "rev", Value: doc.Rev}}
}

func setValue(value kv.Value) bson.D {
	return bson.D{
		{Key: "$set", Value: bson.D{{Key: "value", Value: toBSON(value)}}},
		{Key: "$inc", Value: bson.D{{Key: "rev", Value: int64(1)}}},
	}
}

func (d mongoDocument) toDocument() (kv.Document, error) {
	plain, err := fromBSON(d.Value)
	if err != nil {
		return kv.Document{}, fmt.Errorf("decode %q: %w", d.Key, err)
	}
	value, err := kv.ValueOf(plain)
	if err != nil {
		return kv.Document{}, fmt.Errorf("decode %q: %w", d.Key, err)
	}
	return kv.Document{Key: d.Key, Value: value, Rev: d.Rev}, nil
}

// toBSON converts a Value into BSON-ready Go values. Integral numbers that fit
// in 32 bits are written as int32, everything else numeric as double.
// Mapping keys are written in sorted order.
func toBSON(v kv.Value) any {
	switch v.Kind() {
	case kv.KindBool:
		b, _ := v.AsBool()
		return b
	case kv.KindNumber:
		n, _ := v.AsNumber()
		if n == math.Trunc(n) && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n)
		}
		return n
	case kv.KindString:
		s, _ := v.AsString()
		return s
	case kv.KindSequence:
		items, _ := v.AsSequence()
		arr := make(bson.A, len(items))
		for i, item := range items {
			arr[i] = toBSON(item)
		}
		return arr
	case kv.KindMapping:
		entries, _ := v.AsMapping()
		doc := make(bson.D, 0, len(entries))
		for _, k := range v.Keys() {
			doc = append(doc, bson.E{Key: k, Value: toBSON(entries[k])})
		}
		return doc
	}
	return nil
}

// fromBSON converts decoded BSON values into the plain types kv.ValueOf
// accepts. ObjectIDs become hex strings and dates become RFC 3339 strings.
func fromBSON(x any) (any, error) {
	switch t := x.(type) {
	case nil, bool, string, float64:
		return t, nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case bson.A:
		return fromBSONSlice(t)
	case []any:
		return fromBSONSlice(t)
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			v, err := fromBSON(e.Value)
			if err != nil {
				return nil, err
			}
			out[e.Key] = v
		}
		return out, nil
	case bson.M:
		return fromBSONMap(t)
	case map[string]any:
		return fromBSONMap(t)
	case bson.ObjectID:
		return t.Hex(), nil
	case bson.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano), nil
	case bson.Decimal128:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: decimal %s", ErrUnsupportedBSON, t.String())
		}
		return f, nil
	case bson.Null:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedBSON, x)
}

func fromBSONSlice(items []any) (any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		v, err := fromBSON(item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func fromBSONMap(m map[string]any) (any, error) {
	out := make(map[string]any, len(m))
	for k, item := range m {
		v, err := fromBSON(item)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
