package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/heysubinoy/quickmdb/pkg/kv"
)

// BoltStore is a kv.Collection backed by a bbolt file. Each collection is a
// bucket; bucket keys are record keys and bucket values are JSON envelopes
// holding the revision and the value.
//
// Writes run in a single Bolt write transaction, so CompareAndSwap is atomic.
// Keys come back from Find in lexicographic order.
type BoltStore struct {
	handle *bolt.DB
	bucket []byte
}

// Compile-time check to ensure BoltStore implements kv.Collection.
var _ kv.Collection = (*BoltStore)(nil)

// OpenBolt opens (creating if needed) the bbolt file at path and ensures the
// bucket for collection exists. timeout bounds the wait for the file lock.
func OpenBolt(path, collection string, timeout time.Duration) (*BoltStore, error) {
	handle, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt file %s: %w", path, err)
	}

	bucket := []byte(collection)
	err = handle.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return fmt.Errorf("create bucket %q: %w", collection, err)
		}
		return nil
	})
	if err != nil {
		_ = handle.Close()
		return nil, err
	}

	return &BoltStore{handle: handle, bucket: bucket}, nil
}

// Path returns the file backing the store.
func (s *BoltStore) Path() string {
	return s.handle.Path()
}

func (s *BoltStore) bucketOf(tx *bolt.Tx) (*bolt.Bucket, error) {
	b := tx.Bucket(s.bucket)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBucketNotFound, s.bucket)
	}
	return b, nil
}

// FindOne returns the document stored under key.
func (s *BoltStore) FindOne(ctx context.Context, key string) (kv.Document, error) {
	if err := ctx.Err(); err != nil {
		return kv.Document{}, err
	}

	var doc kv.Document
	err := s.handle.View(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}
		data := b.Get([]byte(key))
		if data == nil {
			return kv.ErrNoDocument
		}
		doc, err = decodeEnvelope(key, data)
		return err
	})
	return doc, err
}

// Find returns the documents whose key starts with prefix.
func (s *BoltStore) Find(ctx context.Context, prefix string) ([]kv.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var docs []kv.Document
	err := s.handle.View(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}

		p := []byte(prefix)
		c := b.Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			doc, err := decodeEnvelope(string(k), v)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	return docs, err
}

// Upsert stores value under key and bumps its revision.
func (s *BoltStore) Upsert(ctx context.Context, key string, value kv.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.handle.Update(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}

		var rev int64
		if data := b.Get([]byte(key)); data != nil {
			cur, err := decodeEnvelope(key, data)
			if err != nil {
				return err
			}
			rev = cur.Rev
		}

		data, err := encodeEnvelope(rev+1, value)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// CompareAndSwap stores value if the document still has revision doc.Rev.
func (s *BoltStore) CompareAndSwap(ctx context.Context, doc kv.Document, value kv.Value) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var swapped bool
	err := s.handle.Update(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}

		data := b.Get([]byte(doc.Key))
		if data == nil {
			return nil
		}
		cur, err := decodeEnvelope(doc.Key, data)
		if err != nil {
			return err
		}
		if cur.Rev != doc.Rev {
			return nil
		}

		next, err := encodeEnvelope(cur.Rev+1, value)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(doc.Key), next); err != nil {
			return err
		}
		swapped = true
		return nil
	})
	return swapped, err
}

// DeleteOne removes key. Missing keys are ignored.
func (s *BoltStore) DeleteOne(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.handle.Update(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}
		return b.Delete([]byte(key))
	})
}

// DeleteMany removes every key starting with prefix. An empty prefix drops
// and recreates the bucket.
func (s *BoltStore) DeleteMany(ctx context.Context, prefix string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int64
	err := s.handle.Update(func(tx *bolt.Tx) error {
		b, err := s.bucketOf(tx)
		if err != nil {
			return err
		}

		if prefix == "" {
			n = int64(b.Stats().KeyN)
			if err := tx.DeleteBucket(s.bucket); err != nil {
				return fmt.Errorf("delete bucket %s: %w", s.bucket, err)
			}
			if _, err := tx.CreateBucket(s.bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", s.bucket, err)
			}
			return nil
		}

		// Collect first: deleting while the cursor walks skips keys.
		p := []byte(prefix)
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = int64(len(keys))
		return nil
	})
	return n, err
}

// Close closes the bbolt file.
func (s *BoltStore) Close(context.Context) error {
	return s.handle.Close()
}
