package kv

import "context"

// Record is a key and the value stored under it.
type Record struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// Store defines the key-value operations offered on top of a document
// collection. Every operation is a separate round trip to the backend.
// Implementations can be swapped out, allowing instrumentation or other
// decorators to wrap the collection-backed DB.
type Store interface {
	// Set stores value under key, creating the record if needed.
	Set(ctx context.Context, key string, value Value) error

	// Push appends value to the sequence stored under key.
	// Returns a ShapeError matching ErrNotArray if the record is missing or
	// does not hold a sequence.
	Push(ctx context.Context, key string, value Value) error

	// Fetch returns the value stored under key, or Null if there is none.
	Fetch(ctx context.Context, key string) (Value, error)

	// Get is an alias of Fetch.
	Get(ctx context.Context, key string) (Value, error)

	// FetchAll returns every record in the order the backend yields them.
	// Callers must not rely on that order.
	FetchAll(ctx context.Context) ([]Record, error)

	// All is an alias of FetchAll.
	All(ctx context.Context) ([]Record, error)

	// Remove deletes the record stored under key.
	// It is not an error to remove a missing key.
	Remove(ctx context.Context, key string) error

	// Delete removes every element equal to value from the sequence stored
	// under key. It does nothing if the record is missing or not a sequence.
	Delete(ctx context.Context, key string, value Value) error

	// DeleteKey removes the entry subKey from the mapping stored under key.
	// It does nothing if the record is missing or not a mapping.
	DeleteKey(ctx context.Context, key, subKey string) error

	// DeleteEach removes every record whose key starts with prefix.
	DeleteEach(ctx context.Context, prefix string) error

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Has reports whether a record is stored under key.
	Has(ctx context.Context, key string) (bool, error)

	// Add adds delta to the number stored under key.
	// Returns a ShapeError matching ErrNotNumber if the record is missing or
	// does not hold a number.
	Add(ctx context.Context, key string, delta float64) error

	// Subtract is Add with the sign of delta flipped.
	Subtract(ctx context.Context, key string, delta float64) error

	// Import sets every top-level entry of the JSON object in the file at path.
	Import(ctx context.Context, path string) error

	// Export writes every record to path as one indented JSON object.
	Export(ctx context.Context, path string) error
}

// Document is a record as held by a Collection. Rev changes on every write
// and lets CompareAndSwap detect concurrent updates.
type Document struct {
	Key   string
	Value Value
	Rev   int64
}

// Collection is the backing document store. Implementations live in
// internal/store; they enforce key uniqueness and own their connection.
type Collection interface {
	// FindOne returns the document stored under key or ErrNoDocument.
	FindOne(ctx context.Context, key string) (Document, error)

	// Find returns every document whose key starts with prefix.
	// An empty prefix matches every document.
	Find(ctx context.Context, prefix string) ([]Document, error)

	// Upsert replaces the value stored under key, creating the document if
	// it does not exist, and bumps its revision.
	Upsert(ctx context.Context, key string, value Value) error

	// CompareAndSwap stores value under doc.Key only if the stored revision
	// still equals doc.Rev. It reports whether the write happened.
	CompareAndSwap(ctx context.Context, doc Document, value Value) (bool, error)

	// DeleteOne removes the document stored under key, if any.
	DeleteOne(ctx context.Context, key string) error

	// DeleteMany removes every document whose key starts with prefix and
	// returns how many were removed. An empty prefix removes everything.
	DeleteMany(ctx context.Context, prefix string) (int64, error)

	// Close releases the connection held by the collection.
	Close(ctx context.Context) error
}
