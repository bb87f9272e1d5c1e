// ABOUTME: Entity pack: generic discovery and read-only querying of catalog entities.
// ABOUTME: Lets a model list entities, inspect their fields and fetch records.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/uavcrew/compliance-gateway/internal/packs"
	"github.com/uavcrew/compliance-gateway/internal/store"
)

// EntitiesPackID is the pack ID of the entity tools.
const EntitiesPackID = "builtin:entities"

// MaxQueryLimit caps query_entity's limit parameter.
const MaxQueryLimit = 1000

// EntitiesPack creates the entity discovery pack over catalog.
func EntitiesPack(catalog store.Catalog) *packs.BuiltinPack {
	h := &entityHandlers{catalog: catalog}
	return &packs.BuiltinPack{
		ID: EntitiesPackID,
		Tools: []*packs.Tool{
			{
				Name:        "list_entities",
				Description: "List all available data entities and what they contain",
				Handler:     h.ListEntities,
			},
			{
				Name:        "describe_entity",
				Description: "Describe the fields available for an entity",
				Params: []packs.Param{
					{Name: "entity", Type: packs.TypeString, Required: true, Description: "Entity name (pilots, aircraft, flights, missions, maintenance_records)"},
				},
				Handler: h.DescribeEntity,
			},
			{
				Name:        "query_entity",
				Description: "Query records of an entity by ID or by field filters (read-only)",
				Params: []packs.Param{
					{Name: "entity", Type: packs.TypeString, Required: true, Description: "Entity name"},
					{Name: "id", Type: packs.TypeString, Description: "Fetch a single record by ID"},
					{Name: "filters", Type: packs.TypeObject, Description: "Equality filters as {field: value}"},
					{Name: "fields", Type: packs.TypeArray, Items: packs.TypeString, Description: "Fields to return (default: all)"},
					{Name: "limit", Type: packs.TypeInteger, Default: store.DefaultQueryLimit, Description: "Maximum records to return"},
				},
				Handler: h.QueryEntity,
			},
		},
	}
}

type entityHandlers struct {
	catalog store.Catalog
}

func (h *entityHandlers) entity(name string) (store.Entity, error) {
	e, ok := h.catalog.Entity(name)
	if !ok {
		return store.Entity{}, &packs.NotFoundError{
			Message: fmt.Sprintf("Entity '%s' not configured", name),
			Extra:   map[string]any{"available_entities": h.catalog.Names()},
		}
	}
	return e, nil
}

// ListEntities returns entity names mapped to their descriptions.
func (h *entityHandlers) ListEntities(_ context.Context, _ store.Session, _ packs.Args) (any, error) {
	entities := make(map[string]any, len(h.catalog))
	for _, e := range h.catalog {
		desc := e.Description
		if desc == "" {
			desc = e.Name + " data"
		}
		entities[e.Name] = desc
	}
	return map[string]any{"entities": entities}, nil
}

// DescribeEntity returns the entity's fields and backing table.
func (h *entityHandlers) DescribeEntity(_ context.Context, _ store.Session, args packs.Args) (any, error) {
	e, err := h.entity(args.String("entity", ""))
	if err != nil {
		return nil, err
	}

	fields := make(map[string]any, len(e.Columns))
	for _, c := range e.Columns {
		desc := c.Description
		if desc == "" {
			desc = c.Name
		}
		fields[c.Name] = desc
	}
	return map[string]any{
		"entity":       e.Name,
		"fields":       fields,
		"source_table": e.Table,
	}, nil
}

// QueryEntity fetches one record by ID, or a filtered list.
func (h *entityHandlers) QueryEntity(ctx context.Context, sess store.Session, args packs.Args) (any, error) {
	e, err := h.entity(args.String("entity", ""))
	if err != nil {
		return nil, err
	}

	fields := args.Strings("fields")
	for _, name := range fields {
		if _, ok := e.Column(name); !ok {
			return nil, unknownField(e, name)
		}
	}

	if args.Has("id") {
		id := args.String("id", "")
		rec, err := sess.Lookup(ctx, e.Name, id)
		if errors.Is(err, store.ErrNotFound) {
			return map[string]any{
				"data":    nil,
				"message": fmt.Sprintf("No %s found with id '%s'", e.Name, id),
			}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("looking up %s %q: %w", e.Name, id, err)
		}
		return map[string]any{"data": project(rec, fields)}, nil
	}

	filters := args.Object("filters")
	for _, name := range slices.Sorted(maps.Keys(filters)) {
		if _, ok := e.Column(name); !ok {
			return nil, unknownField(e, name)
		}
		if !isScalar(filters[name]) {
			return nil, &packs.ValidationError{
				Parameter: "filters." + name,
				Reason:    "expected string, number, boolean or null",
			}
		}
	}

	limit := args.Int("limit", store.DefaultQueryLimit)
	if limit <= 0 {
		limit = store.DefaultQueryLimit
	}
	limit = min(limit, MaxQueryLimit)

	rows, err := sess.Query(ctx, store.Query{
		Entity:  e.Name,
		Filters: filters,
		Fields:  fields,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", e.Name, err)
	}

	data := make([]any, len(rows))
	for i, r := range rows {
		data[i] = map[string]any(r)
	}
	return map[string]any{
		"data":  data,
		"count": len(rows),
		"limit": limit,
	}, nil
}

func unknownField(e store.Entity, name string) error {
	return &packs.NotFoundError{
		Message: fmt.Sprintf("Field '%s' not found on entity '%s'", name, e.Name),
		Extra:   map[string]any{"available_fields": e.ColumnNames()},
	}
}

// isScalar reports whether v can be compared against a column value.
func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, float64, json.Number, int, int64:
		return true
	}
	return false
}

// project keeps only the named fields; an empty list keeps everything.
func project(rec store.Record, fields []string) map[string]any {
	if len(fields) == 0 {
		return rec
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := rec[f]; ok {
			out[f] = v
		}
	}
	return out
}
