// ABOUTME: Store decorator that memoizes Lookup results in a cache.Cache
// ABOUTME: Cache failures degrade to database reads; misses are never cached

package store

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/uavcrew/compliance-gateway/internal/cache"
)

// CachedStore wraps a Store and caches record lookups.
type CachedStore struct {
	inner  Store
	cache  cache.Cache
	logger *slog.Logger
}

// NewCached returns a Store whose sessions consult c before the inner store.
func NewCached(inner Store, c cache.Cache, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{
		inner:  inner,
		cache:  c,
		logger: logger.With("component", "store-cache"),
	}
}

// Acquire acquires an inner session and wraps it.
func (s *CachedStore) Acquire(ctx context.Context) (Session, error) {
	sess, err := s.inner.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &cachedSession{Session: sess, parent: s}, nil
}

// Catalog returns the inner store's catalog.
func (s *CachedStore) Catalog() Catalog { return s.inner.Catalog() }

// Close closes the cache and the inner store.
func (s *CachedStore) Close() error {
	cacheErr := s.cache.Close()
	if err := s.inner.Close(); err != nil {
		return err
	}
	return cacheErr
}

type cachedSession struct {
	Session
	parent *CachedStore
}

func lookupKey(entity, id string) string {
	return "lookup:" + entity + ":" + id
}

func (cs *cachedSession) Lookup(ctx context.Context, entity, id string) (Record, error) {
	key := lookupKey(entity, id)
	logger := cs.parent.logger

	data, ok, err := cs.parent.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache get failed", "key", key, "error", err)
	}
	if ok {
		var rec Record
		if err := json.Unmarshal(data, &rec); err == nil {
			logger.Debug("cache hit", "key", key)
			return rec, nil
		}
		logger.Warn("discarding undecodable cache entry", "key", key)
	}

	rec, err := cs.Session.Lookup(ctx, entity, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rec); err == nil {
		if err := cs.parent.cache.Set(ctx, key, data); err != nil {
			logger.Warn("cache set failed", "key", key, "error", err)
		}
	}
	return rec, nil
}
