// Package quickmdb is a key-value store layered over a document database.
//
// A Client is opened from a connection URL; the scheme selects MongoDB,
// Redis, a bbolt file or an in-memory map as the backing collection:
//
//	c, err := quickmdb.Connect(ctx, "mongodb://localhost:27017/app")
//	if err != nil { ... }
//	defer c.Close(ctx)
//
//	_ = c.Set(ctx, "visits", kv.Number(0))
//	_ = c.Add(ctx, "visits", 1)
//
// Every operation is a round trip to the backend; nothing is cached.
package quickmdb

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/heysubinoy/quickmdb/internal/store"
	"github.com/heysubinoy/quickmdb/pkg/config"
	"github.com/heysubinoy/quickmdb/pkg/kv"
)

// Client is a kv.Store bound to one backend connection.
type Client struct {
	kv.Store

	db     *kv.DB
	coll   kv.Collection
	logger *zap.Logger
}

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
}

// Option configures Open and Connect.
type Option func(*options)

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegisterer enables metrics and registers them with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Connect opens a Client for url with default configuration.
func Connect(ctx context.Context, url string, opts ...Option) (*Client, error) {
	return Open(ctx, config.Default(url), opts...)
}

// Open connects to the backend described by cfg.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		if logger, err = NewLogger(cfg); err != nil {
			return nil, err
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	coll, err := store.Open(dialCtx, cfg.URL, store.OpenOptions{
		Database:   cfg.Database,
		Collection: cfg.Collection,
		Timeout:    cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	db := kv.NewDB(coll,
		kv.WithLogger(logger.Named("kv")),
		kv.WithMaxAttempts(cfg.ConflictRetries),
	)

	c := &Client{Store: db, db: db, coll: coll, logger: logger}

	reg := o.registerer
	if reg == nil && cfg.Metrics {
		reg = prometheus.DefaultRegisterer
	}
	if reg != nil {
		metrics, err := store.NewMetrics(reg)
		if err != nil {
			_ = coll.Close(ctx)
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		c.Store = store.NewInstrumentedStore(db, metrics)
	}

	logger.Info("store opened",
		zap.String("collection", cfg.Collection),
		zap.Bool("metrics", reg != nil),
	)
	return c, nil
}

// DB returns the uninstrumented store.
func (c *Client) DB() *kv.DB {
	return c.db
}

// Close releases the backend connection.
func (c *Client) Close(ctx context.Context) error {
	if err := c.coll.Close(ctx); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	c.logger.Info("store closed")
	return nil
}

// NewLogger builds the zap logger described by cfg.LogLevel and cfg.LogFormat.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
