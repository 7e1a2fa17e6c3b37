package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/heysubinoy/quickmdb/pkg/kv"
)

// MemStore is an in-memory implementation of the kv.Collection interface.
// It uses a map protected by a RWMutex for thread-safe operations.
type MemStore struct {
	mu   sync.RWMutex
	data map[string]kv.Document
}

// Compile-time check to ensure MemStore implements kv.Collection.
var _ kv.Collection = (*MemStore)(nil)

// NewMemStore creates and returns a new MemStore instance.
func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string]kv.Document),
	}
}

// FindOne retrieves a document by key.
// Returns kv.ErrNoDocument if the key is not present.
func (s *MemStore) FindOne(_ context.Context, key string) (kv.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data[key]
	if !ok {
		return kv.Document{}, kv.ErrNoDocument
	}
	return doc, nil
}

// Find returns the documents whose key starts with prefix, ordered by key.
func (s *MemStore) Find(_ context.Context, prefix string) ([]kv.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]kv.Document, 0, len(s.data))
	for key, doc := range s.data {
		if strings.HasPrefix(key, prefix) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

// Upsert stores value under key and bumps its revision.
func (s *MemStore) Upsert(_ context.Context, key string, value kv.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.data[key]
	s.data[key] = kv.Document{Key: key, Value: value, Rev: doc.Rev + 1}
	return nil
}

// CompareAndSwap stores value if the document still has revision doc.Rev.
func (s *MemStore) CompareAndSwap(_ context.Context, doc kv.Document, value kv.Value) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data[doc.Key]
	if !ok || cur.Rev != doc.Rev {
		return false, nil
	}
	s.data[doc.Key] = kv.Document{Key: doc.Key, Value: value, Rev: cur.Rev + 1}
	return true, nil
}

// DeleteOne removes a key from the store.
// Always returns nil, even if the key doesn't exist.
func (s *MemStore) DeleteOne(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// DeleteMany removes every key starting with prefix.
func (s *MemStore) DeleteMany(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			delete(s.data, key)
			n++
		}
	}
	return n, nil
}

// Close is a no-op for in-memory stores.
func (s *MemStore) Close(context.Context) error {
	return nil
}
