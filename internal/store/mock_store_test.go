// ABOUTME: Tests for the in-memory store used by tests and demo mode
// ABOUTME: Verifies it mirrors SQL store shapes and tracks session accounting

package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_LookupMatchesSQLShapes(t *testing.T) {
	m, err := NewMemoryStoreWithFixtures()
	if err != nil {
		t.Fatalf("NewMemoryStoreWithFixtures failed: %v", err)
	}
	sess := acquire(t, m)

	rec, err := sess.Lookup(context.Background(), "aircraft", "N12345")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if rec["id"] != "AC-001" {
		t.Errorf("expected AC-001, got %v", rec["id"])
	}
	if rec["battery_cycles"] != int64(156) {
		t.Errorf("expected int64 battery cycles, got %#v", rec["battery_cycles"])
	}

	flight, err := sess.Lookup(context.Background(), "flights", "FLT-TC02")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	events := flight["events"].([]any)
	first := events[1].(map[string]any)
	details := first["details"].(map[string]any)
	if details["altitude_ft"] != float64(485) {
		t.Errorf("json columns should decode numbers as float64, got %#v", details["altitude_ft"])
	}
}

func TestMemoryStore_LookupReturnsCopies(t *testing.T) {
	m, _ := NewMemoryStoreWithFixtures()
	sess := acquire(t, m)
	ctx := context.Background()

	rec, _ := sess.Lookup(ctx, "pilots", "PLT-001")
	rec["name"] = "Mutated"

	again, _ := sess.Lookup(ctx, "pilots", "PLT-001")
	if again["name"] != "John Smith" {
		t.Errorf("store should not be affected by caller mutation, got %v", again["name"])
	}
}

func TestMemoryStore_Query(t *testing.T) {
	m, _ := NewMemoryStoreWithFixtures()
	sess := acquire(t, m)

	recs, err := sess.Query(context.Background(), Query{
		Entity:     "flights",
		Filters:    map[string]any{"aircraft_id": "AC-001"},
		Fields:     []string{"id", "duration_seconds"},
		OrderBy:    "duration_seconds",
		Descending: true,
		Limit:      2,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 flights, got %d", len(recs))
	}
	if recs[0]["id"] != "FLT-TC04" || recs[1]["id"] != "FLT-TC08" {
		t.Errorf("unexpected order: %v, %v", recs[0]["id"], recs[1]["id"])
	}
	if _, ok := recs[0]["pilot_id"]; ok {
		t.Error("unselected fields should be dropped")
	}

	// Numeric filters compare by value across int64/float64
	recs, _ = sess.Query(context.Background(), Query{
		Entity:  "flights",
		Filters: map[string]any{"duration_seconds": float64(1500)},
	})
	if len(recs) != 2 {
		t.Errorf("expected 2 flights of 1500s, got %d", len(recs))
	}
}

func TestMemoryStore_SessionAccounting(t *testing.T) {
	m := NewMemoryStore()

	sess, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	sess.Release()
	sess.Release()

	if m.Acquired() != 1 || m.Released() != 1 {
		t.Errorf("expected 1/1 acquired/released, got %d/%d", m.Acquired(), m.Released())
	}

	boom := errors.New("pool exhausted")
	m.FailAcquire(boom)
	if _, err := m.Acquire(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
}

func TestMemoryStore_PutUnknownEntity(t *testing.T) {
	m := NewMemoryStore()
	if err := m.Put("drones", Record{"id": "D1"}); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
}
