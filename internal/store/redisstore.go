package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v7"

	"github.com/heysubinoy/quickmdb/pkg/kv"
)

const (
	redisRevField   = "rev"
	redisValueField = "value"
	redisScanCount  = 512
)

// RedisStore is a kv.Collection backed by Redis. Each record is a hash named
// "<collection>:<key>" with a rev and a JSON-encoded value field.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

var _ kv.Collection = (*RedisStore)(nil)

// OpenRedis connects to the Redis server described by url and checks it
// answers a PING.
func OpenRedis(ctx context.Context, url, collection string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.WithContext(ctx).Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisStore(client, collection), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, collection string) *RedisStore {
	return &RedisStore{client: client, namespace: collection + ":"}
}

func (s *RedisStore) redisKey(key string) string {
	return s.namespace + key
}

// FindOne returns the document stored under key.
func (s *RedisStore) FindOne(ctx context.Context, key string) (kv.Document, error) {
	fields, err := s.client.WithContext(ctx).HMGet(s.redisKey(key), redisRevField, redisValueField).Result()
	if err != nil {
		return kv.Document{}, fmt.Errorf("find %q: %w", key, err)
	}
	return parseRedisHash(key, fields)
}

// Find returns the documents whose key starts with prefix.
func (s *RedisStore) Find(ctx context.Context, prefix string) ([]kv.Document, error) {
	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.SliceCmd, len(keys))
	_, err = s.client.WithContext(ctx).Pipelined(func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.HMGet(k, redisRevField, redisValueField)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find prefix %q: %w", prefix, err)
	}

	docs := make([]kv.Document, 0, len(keys))
	for i, cmd := range cmds {
		key := strings.TrimPrefix(keys[i], s.namespace)
		doc, err := parseRedisHash(key, cmd.Val())
		if errors.Is(err, kv.ErrNoDocument) {
			// removed between SCAN and HMGET
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Upsert stores value under key and bumps its revision in one MULTI block.
func (s *RedisStore) Upsert(ctx context.Context, key string, value kv.Value) error {
	data, err := value.MarshalJSON()
	if err != nil {
		return err
	}

	rk := s.redisKey(key)
	_, err = s.client.WithContext(ctx).TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.HSet(rk, redisValueField, data)
		pipe.HIncrBy(rk, redisRevField, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert %q: %w", key, err)
	}
	return nil
}

// CompareAndSwap stores value if the document still has revision doc.Rev,
// using WATCH to detect writes between the check and the update.
func (s *RedisStore) CompareAndSwap(ctx context.Context, doc kv.Document, value kv.Value) (bool, error) {
	data, err := value.MarshalJSON()
	if err != nil {
		return false, err
	}

	rk := s.redisKey(doc.Key)
	swapped := false
	err = s.client.WithContext(ctx).Watch(func(tx *redis.Tx) error {
		fields, err := tx.HMGet(rk, redisRevField, redisValueField).Result()
		if err != nil {
			return err
		}
		cur, err := parseRedisHash(doc.Key, fields)
		if errors.Is(err, kv.ErrNoDocument) {
			return nil
		}
		if err != nil {
			return err
		}
		if cur.Rev != doc.Rev {
			return nil
		}

		_, err = tx.TxPipelined(func(pipe redis.Pipeliner) error {
			pipe.HSet(rk, redisValueField, data)
			pipe.HIncrBy(rk, redisRevField, 1)
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, rk)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update %q: %w", doc.Key, err)
	}
	return swapped, nil
}

// DeleteOne removes key. Missing keys are ignored.
func (s *RedisStore) DeleteOne(ctx context.Context, key string) error {
	if err := s.client.WithContext(ctx).Del(s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// DeleteMany removes every key starting with prefix.
func (s *RedisStore) DeleteMany(ctx context.Context, prefix string) (int64, error) {
	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return 0, err
	}

	var n int64
	for start := 0; start < len(keys); start += redisScanCount {
		end := min(start+redisScanCount, len(keys))
		deleted, err := s.client.WithContext(ctx).Del(keys[start:end]...).Result()
		if err != nil {
			return n, fmt.Errorf("delete prefix %q: %w", prefix, err)
		}
		n += deleted
	}
	return n, nil
}

// Close closes the client.
func (s *RedisStore) Close(context.Context) error {
	return s.client.Close()
}

// scan returns the redis keys in the namespace starting with prefix.
func (s *RedisStore) scan(ctx context.Context, prefix string) ([]string, error) {
	client := s.client.WithContext(ctx)
	match := escapeGlob(s.namespace+prefix) + "*"

	var (
		keys   []string
		cursor uint64
	)
	for {
		page, next, err := client.Scan(cursor, match, redisScanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		keys = append(keys, page...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseRedisHash builds a document from the HMGET reply for rev and value.
func parseRedisHash(key string, fields []any) (kv.Document, error) {
	if len(fields) != 2 || fields[1] == nil {
		return kv.Document{}, kv.ErrNoDocument
	}

	var rev int64
	if raw, ok := fields[0].(string); ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return kv.Document{}, fmt.Errorf("%w: %q: rev %q", ErrCorruptDocument, key, raw)
		}
		rev = n
	}

	raw, ok := fields[1].(string)
	if !ok {
		return kv.Document{}, fmt.Errorf("%w: %q: value is %T", ErrCorruptDocument, key, fields[1])
	}

	var value kv.Value
	if err := value.UnmarshalJSON([]byte(raw)); err != nil {
		return kv.Document{}, fmt.Errorf("%w: %q: %v", ErrCorruptDocument, key, err)
	}
	return kv.Document{Key: key, Value: value, Rev: rev}, nil
}
