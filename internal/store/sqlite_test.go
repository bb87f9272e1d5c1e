// ABOUTME: Tests for the SQL store implementation on SQLite
// ABOUTME: Covers schema creation, seeding, lookups by alternate keys, queries and sessions

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// newSeededStore creates a SQLite store in a temp dir and seeds the fixtures.
func newSeededStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "compliance.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if _, err := s.Seed(context.Background()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	return s
}

// acquire opens a session and releases it at test end.
func acquire(t *testing.T, s Store) Session {
	t.Helper()
	sess, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	t.Cleanup(sess.Release)
	return sess
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Dialect() != DialectSQLite {
		t.Errorf("expected sqlite dialect, got %s", s.Dialect())
	}
}

func TestSeed_Idempotent(t *testing.T) {
	s := newSeededStore(t)

	n, err := s.Seed(context.Background())
	if err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected second seed to insert nothing, inserted %d", n)
	}
}

func TestLookup_CleanFlight(t *testing.T) {
	s := newSeededStore(t)
	sess := acquire(t, s)

	rec, err := sess.Lookup(context.Background(), "flights", "FLT-TC01")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	if rec["pilot_id"] != "PLT-001" || rec["aircraft_id"] != "AC-001" {
		t.Errorf("unexpected crew: %v / %v", rec["pilot_id"], rec["aircraft_id"])
	}
	if rec["duration_seconds"] != int64(1500) {
		t.Errorf("expected duration 1500, got %#v", rec["duration_seconds"])
	}
	if rec["flight_datetime"] != "2025-01-07T14:30:00" {
		t.Errorf("unexpected flight_datetime %v", rec["flight_datetime"])
	}

	summary, ok := rec["summary"].(map[string]any)
	if !ok {
		t.Fatalf("summary should decode to an object, got %T", rec["summary"])
	}
	if summary["distance_km"] != 2.1 {
		t.Errorf("expected distance_km 2.1, got %v", summary["distance_km"])
	}

	telemetry, ok := rec["telemetry"].([]any)
	if !ok || len(telemetry) != 50 {
		t.Errorf("expected 50 telemetry samples, got %T len %d", rec["telemetry"], len(telemetry))
	}
}

func TestLookup_AlternateKeys(t *testing.T) {
	s := newSeededStore(t)
	sess := acquire(t, s)
	ctx := context.Background()

	tests := []struct {
		entity string
		key    string
		wantID string
	}{
		{"pilots", "PLT-002", "PLT-002"},
		{"pilots", "4555666", "PLT-003"},
		{"aircraft", "N67890", "AC-002"},
		{"missions", "FLT-TC01", "MSN-TC01"},
		{"missions", "MSN-TC12", "MSN-TC12"},
		{"maintenance_records", "2", ""},
	}

	for _, tt := range tests {
		t.Run(tt.entity+"/"+tt.key, func(t *testing.T) {
			rec, err := sess.Lookup(ctx, tt.entity, tt.key)
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if tt.wantID != "" && rec["id"] != tt.wantID {
				t.Errorf("expected id %s, got %v", tt.wantID, rec["id"])
			}
		})
	}
}

func TestLookup_TypedValues(t *testing.T) {
	s := newSeededStore(t)
	sess := acquire(t, s)

	rec, err := sess.Lookup(context.Background(), "pilots", "PLT-002")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if rec["certificate_valid"] != false {
		t.Errorf("expected certificate_valid false, got %#v", rec["certificate_valid"])
	}
	if rec["certificate_expiry"] != "2024-12-15" {
		t.Errorf("unexpected expiry %v", rec["certificate_expiry"])
	}
	waivers, ok := rec["waivers"].([]any)
	if !ok || len(waivers) != 0 {
		t.Errorf("expected empty waivers list, got %#v", rec["waivers"])
	}

	mission, err := sess.Lookup(context.Background(), "missions", "FLT-TC12")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if mission["laanc_required"] != true {
		t.Errorf("expected laanc_required true, got %#v", mission["laanc_required"])
	}
	if mission["laanc_authorization_id"] != nil {
		t.Errorf("expected nil authorization id, got %#v", mission["laanc_authorization_id"])
	}
}

func TestLookup_NotFound(t *testing.T) {
	s := newSeededStore(t)
	sess := acquire(t, s)

	_, err := sess.Lookup(context.Background(), "pilots", "PLT-UNKNOWN")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err = sess.Lookup(context.Background(), "drones", "X")
	if !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestQuery_FiltersOrderAndLimit(t *testing.T) {
	s := newSeededStore(t)
	sess := acquire(t, s)
	ctx := context.Background()

	recs, err := sess.Query(ctx, Query{
		Entity:     "maintenance_records",
		Filters:    map[string]any{"aircraft_id": "AC-001"},
		OrderBy:    "date",
		Descending: true,
		Limit:      10,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0]["date"] != "2024-12-15" || recs[1]["date"] != "2024-11-20" {
		t.Errorf("expected newest first, got %v then %v", recs[0]["date"], recs[1]["date"])
	}

	limited, err := sess.Query(ctx, Query{Entity: "flights", Limit: 3})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(limited) != 3 {
		t.Errorf("expected 3 flights, got %d", len(limited))
	}
}

func TestQuery_Fields(t *testing.T) {
	s := newSeededStore(t)
	sess := acquire(t, s)

	recs, err := sess.Query(context.Background(), Query{
		Entity:  "aircraft",
		Filters: map[string]any{"registration_valid": false},
		Fields:  []string{"id", "registration"},
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 expired registration, got %d", len(recs))
	}
	if len(recs[0]) != 2 || recs[0]["registration"] != "N67890" {
		t.Errorf("unexpected projection: %v", recs[0])
	}
}

func TestQuery_RejectsUnknownColumns(t *testing.T) {
	s := newSeededStore(t)
	sess := acquire(t, s)
	ctx := context.Background()

	queries := []Query{
		{Entity: "pilots", Filters: map[string]any{"1=1; DROP TABLE pilots; --": "x"}},
		{Entity: "pilots", Fields: []string{"password"}},
		{Entity: "pilots", OrderBy: "name; DELETE FROM pilots"},
	}
	for _, q := range queries {
		if _, err := sess.Query(ctx, q); !errors.Is(err, ErrUnknownField) {
			t.Errorf("expected ErrUnknownField for %+v, got %v", q, err)
		}
	}

	if _, err := sess.Query(ctx, Query{Entity: "nope"}); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestSession_ReleaseTwice(t *testing.T) {
	s := newSeededStore(t)

	sess, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	sess.Release()
	sess.Release()
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: DialectPostgres}
	got := pg.rebind("SELECT a FROM t WHERE b = ? AND c = ? LIMIT ?")
	want := "SELECT a FROM t WHERE b = $1 AND c = $2 LIMIT $3"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	lite := &SQLStore{dialect: DialectSQLite}
	if q := lite.rebind("x = ?"); q != "x = ?" {
		t.Errorf("sqlite rebind should be identity, got %q", q)
	}
}

func TestCreateTableSQL_Postgres(t *testing.T) {
	pg := &SQLStore{dialect: DialectPostgres}
	e, _ := DefaultCatalog().Entity("maintenance_records")

	got := pg.createTableSQL(e)
	want := "CREATE TABLE IF NOT EXISTS maintenance_records (id SERIAL PRIMARY KEY, aircraft_id TEXT, date TEXT, type TEXT, description TEXT, components_serviced TEXT, components_replaced TEXT, technician TEXT, hours_at_service DOUBLE PRECISION, reason TEXT, created_at TEXT)"
	if got != want {
		t.Errorf("createTableSQL =\n%s\nwant\n%s", got, want)
	}
}
