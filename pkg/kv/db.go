package kv

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds how often a read-modify-write operation retries
// after losing a compare-and-swap.
const DefaultMaxAttempts = 10

// DB implements Store on top of a Collection.
//
// Push, Add, Delete and DeleteKey read the current document, compute the new
// value with a pure transform and write it back with CompareAndSwap. A write
// that races another writer is retried from the read.
type DB struct {
	coll        Collection
	logger      *zap.Logger
	maxAttempts int
}

// Compile-time check to ensure DB implements Store.
var _ Store = (*DB)(nil)

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used by the DB.
func WithLogger(logger *zap.Logger) Option {
	return func(db *DB) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// WithMaxAttempts sets how many compare-and-swap attempts a
// read-modify-write operation makes before failing with ErrConflict.
func WithMaxAttempts(n int) Option {
	return func(db *DB) {
		if n > 0 {
			db.maxAttempts = n
		}
	}
}

// NewDB returns a DB backed by coll.
func NewDB(coll Collection, opts ...Option) *DB {
	db := &DB{
		coll:        coll,
		logger:      zap.NewNop(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Collection returns the backing collection.
func (db *DB) Collection() Collection {
	return db.coll
}

// Set stores value under key.
func (db *DB) Set(ctx context.Context, key string, value Value) error {
	if err := db.coll.Upsert(ctx, key, value); err != nil {
		return err
	}
	db.logger.Debug("set", zap.String("key", key))
	return nil
}

// Push appends value to the sequence stored under key.
func (db *DB) Push(ctx context.Context, key string, value Value) error {
	return db.update(ctx, "push", key, func(doc Document, found bool) (Value, bool, error) {
		if !found {
			return Value{}, false, &ShapeError{Key: key, Want: ErrNotArray}
		}
		next, ok := AppendValue(doc.Value, value)
		if !ok {
			return Value{}, false, &ShapeError{Key: key, Want: ErrNotArray}
		}
		return next, true, nil
	})
}

// Fetch returns the value stored under key, or Null.
func (db *DB) Fetch(ctx context.Context, key string) (Value, error) {
	doc, err := db.coll.FindOne(ctx, key)
	if errors.Is(err, ErrNoDocument) {
		return Null(), nil
	}
	if err != nil {
		return Value{}, err
	}
	return doc.Value, nil
}

// Get is an alias of Fetch.
func (db *DB) Get(ctx context.Context, key string) (Value, error) {
	return db.Fetch(ctx, key)
}

// FetchAll returns every record.
func (db *DB) FetchAll(ctx context.Context) ([]Record, error) {
	docs, err := db.coll.Find(ctx, "")
	if err != nil {
		return nil, err
	}

	records := make([]Record, len(docs))
	for i, doc := range docs {
		records[i] = Record{Key: doc.Key, Value: doc.Value}
	}
	return records, nil
}

// All is an alias of FetchAll.
func (db *DB) All(ctx context.Context) ([]Record, error) {
	return db.FetchAll(ctx)
}

// Remove deletes the record stored under key.
func (db *DB) Remove(ctx context.Context, key string) error {
	if err := db.coll.DeleteOne(ctx, key); err != nil {
		return err
	}
	db.logger.Debug("remove", zap.String("key", key))
	return nil
}

// Delete removes every element equal to value from the sequence under key.
func (db *DB) Delete(ctx context.Context, key string, value Value) error {
	return db.update(ctx, "delete", key, func(doc Document, found bool) (Value, bool, error) {
		if !found {
			return Value{}, false, nil
		}
		next, changed, ok := RemoveEqual(doc.Value, value)
		if !ok || !changed {
			return Value{}, false, nil
		}
		return next, true, nil
	})
}

// DeleteKey removes subKey from the mapping under key.
func (db *DB) DeleteKey(ctx context.Context, key, subKey string) error {
	return db.update(ctx, "delete_key", key, func(doc Document, found bool) (Value, bool, error) {
		if !found {
			return Value{}, false, nil
		}
		next, changed, ok := RemoveField(doc.Value, subKey)
		if !ok || !changed {
			return Value{}, false, nil
		}
		return next, true, nil
	})
}

// DeleteEach removes every record whose key starts with prefix.
func (db *DB) DeleteEach(ctx context.Context, prefix string) error {
	n, err := db.coll.DeleteMany(ctx, prefix)
	if err != nil {
		return err
	}
	db.logger.Debug("delete each", zap.String("prefix", prefix), zap.Int64("deleted", n))
	return nil
}

// Clear removes every record.
func (db *DB) Clear(ctx context.Context) error {
	n, err := db.coll.DeleteMany(ctx, "")
	if err != nil {
		return err
	}
	db.logger.Debug("clear", zap.Int64("deleted", n))
	return nil
}

// Has reports whether a record is stored under key.
func (db *DB) Has(ctx context.Context, key string) (bool, error) {
	_, err := db.coll.FindOne(ctx, key)
	if errors.Is(err, ErrNoDocument) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Add adds delta to the number stored under key.
func (db *DB) Add(ctx context.Context, key string, delta float64) error {
	return db.update(ctx, "add", key, func(doc Document, found bool) (Value, bool, error) {
		if !found {
			return Value{}, false, &ShapeError{Key: key, Want: ErrNotNumber}
		}
		next, ok := AddNumber(doc.Value, delta)
		if !ok {
			return Value{}, false, &ShapeError{Key: key, Want: ErrNotNumber}
		}
		return next, true, nil
	})
}

// Subtract subtracts delta from the number stored under key.
func (db *DB) Subtract(ctx context.Context, key string, delta float64) error {
	return db.Add(ctx, key, -delta)
}

// transformFunc computes the value to write from the current document.
// found is false when no document exists. Returning write == false ends the
// operation without writing.
type transformFunc func(doc Document, found bool) (next Value, write bool, err error)

// update runs fetch, transform and compare-and-swap until the swap succeeds,
// the transform declines to write, or maxAttempts is exhausted.
func (db *DB) update(ctx context.Context, op, key string, transform transformFunc) error {
	for attempt := 1; attempt <= db.maxAttempts; attempt++ {
		doc, err := db.coll.FindOne(ctx, key)
		found := err == nil
		if err != nil && !errors.Is(err, ErrNoDocument) {
			return err
		}

		next, write, err := transform(doc, found)
		if err != nil || !write {
			return err
		}

		swapped, err := db.coll.CompareAndSwap(ctx, doc, next)
		if err != nil {
			return err
		}
		if swapped {
			db.logger.Debug(op, zap.String("key", key), zap.Int("attempt", attempt))
			return nil
		}

		db.logger.Warn("concurrent update, retrying",
			zap.String("op", op),
			zap.String("key", key),
			zap.Int("attempt", attempt),
		)
	}
	return fmt.Errorf("%s %q: %w", op, key, ErrConflict)
}
