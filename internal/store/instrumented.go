package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/heysubinoy/quickmdb/pkg/kv"
)

// Metrics holds the Prometheus collectors shared by instrumented stores.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil. Collectors already registered by another store are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quickmdb",
			Name:      "operations_total",
			Help:      "Key-value operations by name and result.",
		}, []string{"op", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quickmdb",
			Name:      "operation_duration_seconds",
			Help:      "Latency of key-value operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.Operations, err = register(reg, m.Operations); err != nil {
		return nil, err
	}
	if m.Duration, err = register(reg, m.Duration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// InstrumentedStore wraps any kv.Store implementation with metrics.
// This pattern works for every backend since it sits above the collection.
type InstrumentedStore struct {
	store   kv.Store
	metrics *Metrics
}

// Compile-time check to ensure InstrumentedStore implements kv.Store.
var _ kv.Store = (*InstrumentedStore)(nil)

// NewInstrumentedStore wraps a store with instrumentation.
func NewInstrumentedStore(store kv.Store, metrics *Metrics) *InstrumentedStore {
	return &InstrumentedStore{
		store:   store,
		metrics: metrics,
	}
}

// observe records one call of op that started at start and ended with err.
func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	s.metrics.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	s.metrics.Operations.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, kv.ErrNotArray), errors.Is(err, kv.ErrNotNumber):
		return "shape_mismatch"
	case errors.Is(err, kv.ErrConflict):
		return "conflict"
	}
	return "error"
}

// Set delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Set(ctx context.Context, key string, value kv.Value) (err error) {
	defer func(start time.Time) { s.observe("set", start, err) }(time.Now())
	return s.store.Set(ctx, key, value)
}

// Push delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Push(ctx context.Context, key string, value kv.Value) (err error) {
	defer func(start time.Time) { s.observe("push", start, err) }(time.Now())
	return s.store.Push(ctx, key, value)
}

// Fetch delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Fetch(ctx context.Context, key string) (v kv.Value, err error) {
	defer func(start time.Time) { s.observe("fetch", start, err) }(time.Now())
	return s.store.Fetch(ctx, key)
}

// Get is an alias of Fetch.
func (s *InstrumentedStore) Get(ctx context.Context, key string) (kv.Value, error) {
	return s.Fetch(ctx, key)
}

// FetchAll delegates to the wrapped store and records timing.
func (s *InstrumentedStore) FetchAll(ctx context.Context) (records []kv.Record, err error) {
	defer func(start time.Time) { s.observe("fetch_all", start, err) }(time.Now())
	return s.store.FetchAll(ctx)
}

// All is an alias of FetchAll.
func (s *InstrumentedStore) All(ctx context.Context) ([]kv.Record, error) {
	return s.FetchAll(ctx)
}

// Remove delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Remove(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { s.observe("remove", start, err) }(time.Now())
	return s.store.Remove(ctx, key)
}

// Delete delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Delete(ctx context.Context, key string, value kv.Value) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())
	return s.store.Delete(ctx, key, value)
}

// DeleteKey delegates to the wrapped store and records timing.
func (s *InstrumentedStore) DeleteKey(ctx context.Context, key, subKey string) (err error) {
	defer func(start time.Time) { s.observe("delete_key", start, err) }(time.Now())
	return s.store.DeleteKey(ctx, key, subKey)
}

// DeleteEach delegates to the wrapped store and records timing.
func (s *InstrumentedStore) DeleteEach(ctx context.Context, prefix string) (err error) {
	defer func(start time.Time) { s.observe("delete_each", start, err) }(time.Now())
	return s.store.DeleteEach(ctx, prefix)
}

// Clear delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Clear(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe("clear", start, err) }(time.Now())
	return s.store.Clear(ctx)
}

// Has delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Has(ctx context.Context, key string) (found bool, err error) {
	defer func(start time.Time) { s.observe("has", start, err) }(time.Now())
	return s.store.Has(ctx, key)
}

// Add delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Add(ctx context.Context, key string, delta float64) (err error) {
	defer func(start time.Time) { s.observe("add", start, err) }(time.Now())
	return s.store.Add(ctx, key, delta)
}

// Subtract delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Subtract(ctx context.Context, key string, delta float64) (err error) {
	defer func(start time.Time) { s.observe("subtract", start, err) }(time.Now())
	return s.store.Subtract(ctx, key, delta)
}

// Import delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Import(ctx context.Context, path string) (err error) {
	defer func(start time.Time) { s.observe("import", start, err) }(time.Now())
	return s.store.Import(ctx, path)
}

// Export delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Export(ctx context.Context, path string) (err error) {
	defer func(start time.Time) { s.observe("export", start, err) }(time.Now())
	return s.store.Export(ctx, path)
}
