// Package cache provides TTL-bounded byte caches used to memoize read-only
// lookups. Two backends implement Cache:
//
//   - Memory: in-process, size-limited, LRU eviction with a background sweep
//     of expired entries.
//   - Redis: shared across processes, per-key TTL handled by the server.
//
// Callers treat cache errors as misses; the cache never becomes a source of
// truth.
package cache
