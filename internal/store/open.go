package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/heysubinoy/quickmdb/pkg/kv"
)

// DefaultMongoDatabase is used when neither the options nor the connection
// string name a database.
const DefaultMongoDatabase = "test"

// OpenOptions are the backend settings that do not fit in the URL.
type OpenOptions struct {
	Database   string
	Collection string
	Timeout    time.Duration
}

// Open connects to the collection described by rawURL. The scheme picks the
// backend:
//
//	mongodb://, mongodb+srv://  MongoDB
//	redis://, rediss://         Redis
//	bolt://, file://            bbolt file at the URL path
//	memory://                   in-process map
func Open(ctx context.Context, rawURL string, opts OpenOptions) (kv.Collection, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection url: %w", err)
	}

	collection := opts.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		database := opts.Database
		if database == "" {
			database = databaseFromURL(u)
		}
		return OpenMongo(ctx, rawURL, database, collection, opts.Timeout)
	case "redis", "rediss":
		return OpenRedis(ctx, rawURL, collection)
	case "bolt", "file":
		return OpenBolt(filePath(u), collection, opts.Timeout)
	case "memory":
		return NewMemStore(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
}

// databaseFromURL returns the database named in the path of a MongoDB
// connection string.
func databaseFromURL(u *url.URL) string {
	if db := strings.Trim(u.Path, "/"); db != "" {
		return db
	}
	return DefaultMongoDatabase
}

// filePath accepts bolt:///abs/path, bolt://rel/path and bolt:rel/path.
func filePath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host + u.Path
}
