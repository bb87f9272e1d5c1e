// ABOUTME: In-memory implementation of Store for tests and demo mode
// ABOUTME: Serves fixture records with the same value shapes as the SQL store

package store

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// MemoryStore is an in-memory Store. Records are normalized through the
// same encode/decode path as the SQL store so handlers see identical shapes.
type MemoryStore struct {
	mu      sync.RWMutex
	catalog Catalog
	rows    map[string][]Record

	acquired atomic.Int64
	released atomic.Int64
	failWith error
}

// NewMemoryStore creates an empty in-memory store over the default catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		catalog: DefaultCatalog(),
		rows:    make(map[string][]Record),
	}
}

// NewMemoryStoreWithFixtures creates an in-memory store holding the demo data.
func NewMemoryStoreWithFixtures() (*MemoryStore, error) {
	m := NewMemoryStore()
	for entity, recs := range Fixtures() {
		for _, rec := range recs {
			if err := m.Put(entity, rec); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Put adds a record to an entity.
func (m *MemoryStore) Put(entity string, rec Record) error {
	e, ok := m.catalog.Entity(entity)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	row := make(Record, len(e.Columns))
	for _, c := range e.Columns {
		encoded, err := encode(c, rec[c.Name])
		if err != nil {
			return err
		}
		v, err := normalize(c, encoded)
		if err != nil {
			return err
		}
		row[c.Name] = v
	}

	m.mu.Lock()
	m.rows[entity] = append(m.rows[entity], row)
	m.mu.Unlock()
	return nil
}

// FailAcquire makes subsequent Acquire calls return err. Pass nil to reset.
func (m *MemoryStore) FailAcquire(err error) {
	m.mu.Lock()
	m.failWith = err
	m.mu.Unlock()
}

// Acquired returns how many sessions have been handed out.
func (m *MemoryStore) Acquired() int64 { return m.acquired.Load() }

// Released returns how many sessions have been released.
func (m *MemoryStore) Released() int64 { return m.released.Load() }

// Catalog returns the entities served by this store.
func (m *MemoryStore) Catalog() Catalog { return m.catalog }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Acquire returns a session reading from the in-memory rows.
func (m *MemoryStore) Acquire(_ context.Context) (Session, error) {
	m.mu.RLock()
	err := m.failWith
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	m.acquired.Add(1)
	return &memorySession{store: m}, nil
}

type memorySession struct {
	store    *MemoryStore
	released atomic.Bool
}

func (s *memorySession) Lookup(_ context.Context, entity, id string) (Record, error) {
	e, ok := s.store.catalog.Entity(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	for _, key := range e.LookupKeys {
		for _, row := range s.store.rows[entity] {
			if fmt.Sprint(row[key]) == id && row[key] != nil {
				return row.Clone(), nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *memorySession) Query(_ context.Context, q Query) ([]Record, error) {
	e, err := s.store.catalog.resolve(q)
	if err != nil {
		return nil, err
	}

	s.store.mu.RLock()
	var matched []Record
	for _, row := range s.store.rows[e.Name] {
		if matches(row, q.Filters) {
			matched = append(matched, row)
		}
	}
	s.store.mu.RUnlock()

	if q.OrderBy != "" {
		slices.SortStableFunc(matched, func(a, b Record) int {
			c := compareValues(a[q.OrderBy], b[q.OrderBy])
			if q.Descending {
				return -c
			}
			return c
		})
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	cols := e.selectedColumns(q.Fields)
	out := make([]Record, len(matched))
	for i, row := range matched {
		rec := make(Record, len(cols))
		for _, c := range cols {
			rec[c.Name] = row[c.Name]
		}
		out[i] = rec
	}
	return out, nil
}

func (s *memorySession) Release() {
	if s.released.CompareAndSwap(false, true) {
		s.store.released.Add(1)
	}
}

func matches(row Record, filters map[string]any) bool {
	for name, want := range filters {
		if !valuesEqual(row[name], want) {
			return false
		}
	}
	return true
}

// valuesEqual compares numbers by value regardless of their Go type.
func valuesEqual(a, b any) bool {
	fa, aNum := asFloat(a)
	fb, bNum := asFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func compareValues(a, b any) int {
	fa, aNum := asFloat(a)
	fb, bNum := asFloat(b)
	if aNum && bNum {
		return cmp.Compare(fa, fb)
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
