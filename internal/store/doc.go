// Package store is the data-access collaborator behind the compliance tools.
//
// # Architecture
//
// Tool handlers never see a database handle directly. They receive a
// Session, acquired per invocation from a Store and released when the
// invocation ends:
//
//   - Store: Acquire, Catalog, Close
//   - Session: Lookup (one record by id), Query (filtered reads), Release
//
// Three implementations exist:
//
//   - SQLStore: database/sql over modernc.org/sqlite or lib/pq. Each Session
//     pins one *sql.Conn from the pool and returns it on Release.
//   - MemoryStore: fixture-backed, used by tests and the memory driver.
//   - CachedStore: decorates another Store, memoizing Lookup in a cache.Cache.
//
// # Catalog
//
// The Catalog lists the exposed entities (pilots, aircraft, flights,
// missions, maintenance_records) with typed columns and lookup keys. Every
// column name that reaches SQL text is checked against the catalog; values
// are always bound as parameters.
//
// # Records
//
// Records are maps keyed by column name. Integers are int64, reals are
// float64, booleans are bool, dates and timestamps are ISO-8601 strings and
// JSON columns are decoded into []any / map[string]any.
package store
