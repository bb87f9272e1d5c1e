// ABOUTME: Store interface and record types for compliance data access
// ABOUTME: Defines Store, Session, Record, Query and the sentinel lookup errors

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// ErrUnknownEntity is returned when an entity name is not in the catalog
var ErrUnknownEntity = errors.New("unknown entity")

// ErrUnknownField is returned when a filter, field or ordering names a column
// the entity does not have
var ErrUnknownField = errors.New("unknown field")

// DefaultQueryLimit caps Query results when no limit is given
const DefaultQueryLimit = 100

// Record is a single entity row keyed by column name. JSON columns hold
// decoded values, date and timestamp columns hold ISO-8601 strings.
type Record map[string]any

// String returns the named column as a string, or "" when absent or not text.
func (r Record) String(name string) string {
	s, _ := r[name].(string)
	return s
}

// Float returns the named column as a float64, or 0 when absent.
func (r Record) Float(name string) float64 {
	switch v := r[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Query describes a multi-record read against one entity.
type Query struct {
	Entity     string
	Filters    map[string]any // column -> value, combined with AND
	Fields     []string       // columns to return, all when empty
	OrderBy    string
	Descending bool
	Limit      int // DefaultQueryLimit when <= 0
}

// Store is the data-access collaborator consumed by tool handlers.
// Sessions are acquired per invocation and must be released.
type Store interface {
	// Acquire reserves a data-access session. The caller must call Release.
	Acquire(ctx context.Context) (Session, error)

	// Catalog describes the entities this store serves.
	Catalog() Catalog

	Close() error
}

// Session is a scoped data-access handle.
type Session interface {
	// Lookup fetches one record by id, trying each of the entity's lookup
	// keys in order. Returns ErrNotFound when nothing matches.
	Lookup(ctx context.Context, entity, id string) (Record, error)

	// Query fetches records matching q.
	Query(ctx context.Context, q Query) ([]Record, error)

	// Release returns the session's resources. Safe to call more than once.
	Release()
}
