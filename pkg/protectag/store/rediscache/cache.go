// Package rediscache wraps a store.Store with a Redis read-through cache of
// the active category snapshot.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cognicore/protectag/pkg/protectag/category"
	"github.com/cognicore/protectag/pkg/protectag/store"
)

// CategoriesKey holds the JSON snapshot of active categories.
const CategoriesKey = "protectag:categories:v1"

// DefaultTTL bounds how stale a cached snapshot can be.
const DefaultTTL = 5 * time.Minute

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Options configures the cache.
type Options struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
	Logger   *zap.SugaredLogger
}

// Store caches ActiveCategories; every other call goes to the wrapped store.
// Redis failures are logged and fall through to the wrapped store.
type Store struct {
	store.Store
	client Client
	ttl    time.Duration
	logger *zap.SugaredLogger
	closer func() error
}

// Open connects to Redis and wraps inner.
func Open(inner store.Store, opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	s := Wrap(inner, client, opts.TTL, opts.Logger)
	s.closer = client.Close
	return s
}

// Wrap builds a cache over an existing client.
func Wrap(inner store.Store, client Client, ttl time.Duration, logger *zap.SugaredLogger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{Store: inner, client: client, ttl: ttl, logger: logger}
}

// Close closes the Redis client and the wrapped store.
func (s *Store) Close() error {
	var err error
	if s.closer != nil {
		err = s.closer()
	}
	return errors.CombineErrors(err, s.Store.Close())
}

// ActiveCategories serves the cached snapshot when present.
func (s *Store) ActiveCategories(ctx context.Context) ([]category.Category, error) {
	raw, err := s.client.Get(ctx, CategoriesKey).Bytes()
	switch {
	case err == nil:
		var cats []category.Category
		if jerr := json.Unmarshal(raw, &cats); jerr == nil {
			return cats, nil
		}
		s.logger.Warnw("discarding corrupt category cache entry", "key", CategoriesKey)
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warnw("category cache read failed", "error", err)
	}

	cats, err := s.Store.ActiveCategories(ctx)
	if err != nil {
		return nil, err
	}
	if data, jerr := json.Marshal(cats); jerr == nil {
		if serr := s.client.Set(ctx, CategoriesKey, data, s.ttl).Err(); serr != nil {
			s.logger.Warnw("category cache write failed", "error", serr)
		}
	}
	return cats, nil
}

// UpsertCategory writes through and invalidates the snapshot.
func (s *Store) UpsertCategory(ctx context.Context, c store.CategoryRecord) error {
	if err := s.Store.UpsertCategory(ctx, c); err != nil {
		return err
	}
	s.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached snapshot.
func (s *Store) Invalidate(ctx context.Context) {
	if err := s.client.Del(ctx, CategoriesKey).Err(); err != nil {
		s.logger.Warnw("category cache invalidation failed", "error", err)
	}
}
