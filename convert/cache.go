package convert

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"go.etcd.io/bbolt"

	"github.com/ardnew/typtex/log"
)

// DefaultNamespace is the bucket used when no namespace is given.
const DefaultNamespace = "convert"

// CacheOption applies a configuration option to a [Cache].
type CacheOption func(*Cache)

// WithNamespace selects the bucket holding results, so that different
// converters sharing one database do not see each other's output.
func WithNamespace(ns string) CacheOption {
	return func(c *Cache) {
		if ns != "" {
			c.bucket = []byte(ns)
		}
	}
}

// WithCacheLogger sets the logger for cache events.
func WithCacheLogger(logger log.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Cache is a [Converter] that stores the results of another converter in a
// bbolt database keyed by a hash of the span and its kind. Failed
// conversions are not stored.
type Cache struct {
	db     *bbolt.DB
	next   Converter
	logger log.Logger
	bucket []byte
	hits   atomic.Int64
	misses atomic.Int64
}

// OpenCache opens (creating if needed) the database at path and returns a
// cache in front of next. The caller must Close the cache.
func OpenCache(path string, next Converter, opts ...CacheOption) (*Cache, error) {
	c := &Cache{next: next, bucket: []byte(DefaultNamespace)}

	for _, opt := range opts {
		opt(c)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, ErrCache.Wrap(err).With(slog.String("path", path))
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(c.bucket)

		return err
	})
	if err != nil {
		_ = db.Close()

		return nil, ErrCache.Wrap(err).With(slog.String("path", path))
	}

	c.db = db

	return c, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Clear removes every stored result in the cache's namespace.
func (c *Cache) Clear() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(c.bucket); err != nil &&
			err != bbolt.ErrBucketNotFound {
			return err
		}

		_, err := tx.CreateBucket(c.bucket)

		return err
	})
}

// Stats returns the number of lookups served from and missing the cache.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Convert implements [Converter].
func (c *Cache) Convert(
	ctx context.Context,
	span string,
	kind Kind,
) (string, error) {
	key := cacheKey(span, kind)

	var (
		out   string
		found bool
	)

	err := c.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(c.bucket).Get(key); v != nil {
			out, found = string(v), true
		}

		return nil
	})
	if err != nil {
		return "", ErrCache.Wrap(err)
	}

	if found {
		c.hits.Add(1)
		c.logger.TraceContext(ctx, "cache hit", slog.String("kind", kind.String()))

		return out, nil
	}

	c.misses.Add(1)

	out, err = c.next.Convert(ctx, span, kind)
	if err != nil {
		return "", err
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(c.bucket).Put(key, []byte(out))
	})
	if err != nil {
		c.logger.WarnContext(ctx, "cache store failed", slog.Any("error", err))
	}

	return out, nil
}

func cacheKey(span string, kind Kind) []byte {
	sum := xxh3.HashString128(kind.String() + "\x00" + span).Bytes()

	return sum[:]
}
