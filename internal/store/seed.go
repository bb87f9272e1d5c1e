// ABOUTME: Demo-data seeding for SQL stores
// ABOUTME: Inserts the compliance fixtures once, when the pilots table is empty

package store

import (
	"context"
	"fmt"
)

// Seed inserts the demo fixtures if the store holds no pilots yet.
// It returns the number of records inserted.
func (s *SQLStore) Seed(ctx context.Context) (int, error) {
	pilots, _ := s.catalog.Entity("pilots")
	n, err := s.count(ctx, pilots)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug("seed skipped, data already present", "pilots", n)
		return 0, nil
	}

	fixtures := Fixtures()
	inserted := 0
	for _, e := range s.catalog {
		for _, rec := range fixtures[e.Name] {
			if e.Name == "maintenance_records" {
				// Let the database assign serial ids
				rec = rec.Clone()
				delete(rec, "id")
			}
			if err := s.insert(ctx, e, rec); err != nil {
				return inserted, fmt.Errorf("seeding %s: %w", e.Name, err)
			}
			inserted++
		}
	}

	s.logger.Info("seeded demo data", "records", inserted)
	return inserted, nil
}
