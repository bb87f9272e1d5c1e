// ABOUTME: Compliance pack: read-only lookups of flights, pilots, aircraft and missions.
// ABOUTME: Shapes store records into the payloads compliance reviewers consume.

package builtins

import (
	"context"
	"errors"
	"fmt"

	"github.com/uavcrew/compliance-gateway/internal/packs"
	"github.com/uavcrew/compliance-gateway/internal/store"
)

// CompliancePackID is the pack ID of the compliance tools.
const CompliancePackID = "builtin:compliance"

// CompliancePack creates the pack with flight, pilot, aircraft, mission and
// maintenance lookups.
func CompliancePack() *packs.BuiltinPack {
	return &packs.BuiltinPack{
		ID: CompliancePackID,
		Tools: []*packs.Tool{
			{
				Name:        "get_flight_log",
				Description: "Retrieve parsed flight log data including telemetry, events, and summary",
				Params: []packs.Param{
					{Name: "flight_id", Type: packs.TypeString, Required: true, Description: "Unique flight identifier"},
				},
				Handler: getFlightLog,
			},
			{
				Name:        "get_pilot",
				Description: "Retrieve pilot certification and credentials by pilot ID or certificate number",
				Params: []packs.Param{
					{Name: "pilot_id", Type: packs.TypeString, Required: true, Description: "Pilot identifier or certificate number"},
				},
				Handler: getPilot,
			},
			{
				Name:        "get_aircraft",
				Description: "Retrieve aircraft registration and status by aircraft ID or FAA registration",
				Params: []packs.Param{
					{Name: "aircraft_id", Type: packs.TypeString, Required: true, Description: "Aircraft ID or FAA registration (N-number)"},
				},
				Handler: getAircraft,
			},
			{
				Name:        "get_mission",
				Description: "Retrieve mission planning data including location, airspace, and LAANC status",
				Params: []packs.Param{
					{Name: "flight_id", Type: packs.TypeString, Required: true, Description: "Flight identifier"},
				},
				Handler: getMission,
			},
			{
				Name:        "get_maintenance_history",
				Description: "Retrieve maintenance records and component status for an aircraft",
				Params: []packs.Param{
					{Name: "aircraft_id", Type: packs.TypeString, Required: true, Description: "Aircraft ID or FAA registration"},
					{Name: "limit", Type: packs.TypeInteger, Default: 10, Description: "Maximum number of records to return"},
				},
				Handler: getMaintenanceHistory,
			},
		},
	}
}

// lookup wraps Session.Lookup, turning ErrNotFound into a not-found outcome
// with the given message.
func lookup(ctx context.Context, sess store.Session, entity, id, notFound string) (store.Record, error) {
	rec, err := sess.Lookup(ctx, entity, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, packs.NotFound("%s", notFound)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s %q: %w", entity, id, err)
	}
	return rec, nil
}

// orEmpty substitutes a non-nil empty value for missing JSON columns.
func orEmpty(v any, empty any) any {
	if v == nil {
		return empty
	}
	return v
}

func getFlightLog(ctx context.Context, sess store.Session, args packs.Args) (any, error) {
	id := args.String("flight_id", "")
	f, err := lookup(ctx, sess, "flights", id, "Flight not found: "+id)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"flight_id":        f["id"],
		"pilot_id":         f["pilot_id"],
		"aircraft_id":      f["aircraft_id"],
		"log_format":       f["log_format"],
		"flight_datetime":  f["flight_datetime"],
		"duration_seconds": f["duration_seconds"],
		"telemetry":        orEmpty(f["telemetry"], []any{}),
		"events":           orEmpty(f["events"], []any{}),
		"summary":          orEmpty(f["summary"], map[string]any{}),
	}, nil
}

func getPilot(ctx context.Context, sess store.Session, args packs.Args) (any, error) {
	id := args.String("pilot_id", "")
	p, err := lookup(ctx, sess, "pilots", id, "Pilot not found: "+id)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"pilot_id":             p["id"],
		"name":                 p["name"],
		"certificate_type":     p["certificate_type"],
		"certificate_number":   p["certificate_number"],
		"certificate_expiry":   p["certificate_expiry"],
		"certificate_valid":    p["certificate_valid"],
		"waivers":              orEmpty(p["waivers"], []any{}),
		"flight_hours_90_days": p["flight_hours_90_days"],
		"total_flight_hours":   p["total_flight_hours"],
	}, nil
}

func getAircraft(ctx context.Context, sess store.Session, args packs.Args) (any, error) {
	id := args.String("aircraft_id", "")
	a, err := lookup(ctx, sess, "aircraft", id, "Aircraft not found: "+id)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"aircraft_id":                a["id"],
		"registration":               a["registration"],
		"make_model":                 a["make_model"],
		"serial_number":              a["serial_number"],
		"registration_expiry":        a["registration_expiry"],
		"registration_valid":         a["registration_valid"],
		"total_flight_hours":         a["total_flight_hours"],
		"last_maintenance_date":      a["last_maintenance_date"],
		"hours_since_maintenance":    a["hours_since_maintenance"],
		"maintenance_interval_hours": a["maintenance_interval_hours"],
		"battery_cycles":             a["battery_cycles"],
		"firmware_version":           a["firmware_version"],
	}, nil
}

func getMission(ctx context.Context, sess store.Session, args packs.Args) (any, error) {
	flightID := args.String("flight_id", "")

	// Missions are keyed by flight first, so a flight ID resolves directly
	m, err := lookup(ctx, sess, "missions", flightID, "Mission not found for flight: "+flightID)
	if err != nil {
		return nil, err
	}
	if m.String("flight_id") != flightID {
		return nil, packs.NotFound("Mission not found for flight: %s", flightID)
	}

	return map[string]any{
		"mission_id":             m["id"],
		"flight_id":              m["flight_id"],
		"purpose":                m["purpose"],
		"client_name":            m["client_name"],
		"location_name":          m["location_name"],
		"location_coords":        []any{m["location_lat"], m["location_lon"]},
		"airspace_class":         m["airspace_class"],
		"laanc_required":         m["laanc_required"],
		"laanc_authorization_id": m["laanc_authorization_id"],
		"planned_altitude_ft":    m["planned_altitude_ft"],
		"planned_duration_min":   m["planned_duration_min"],
		"planned_route":          orEmpty(m["planned_route"], []any{}),
		"geofence":               orEmpty(m["geofence"], []any{}),
	}, nil
}

func getMaintenanceHistory(ctx context.Context, sess store.Session, args packs.Args) (any, error) {
	id := args.String("aircraft_id", "")
	limit := args.Int("limit", 10)

	a, err := lookup(ctx, sess, "aircraft", id, "Aircraft not found: "+id)
	if err != nil {
		return nil, err
	}

	records := []any{}
	if limit > 0 {
		rows, err := sess.Query(ctx, store.Query{
			Entity:     "maintenance_records",
			Filters:    map[string]any{"aircraft_id": a["id"]},
			OrderBy:    "date",
			Descending: true,
			Limit:      limit,
		})
		if err != nil {
			return nil, fmt.Errorf("querying maintenance records: %w", err)
		}
		for _, r := range rows {
			records = append(records, map[string]any{
				"date":                r["date"],
				"type":                r["type"],
				"description":         r["description"],
				"components_serviced": orEmpty(r["components_serviced"], []any{}),
				"components_replaced": orEmpty(r["components_replaced"], []any{}),
				"technician":          r["technician"],
				"hours_at_service":    r["hours_at_service"],
				"reason":              r["reason"],
			})
		}
	}

	total := a.Float("total_flight_hours")
	sinceService := a.Float("hours_since_maintenance")
	interval := a.Float("maintenance_interval_hours")

	return map[string]any{
		"aircraft_id":                a["id"],
		"total_flight_hours":         total,
		"hours_since_maintenance":    sinceService,
		"maintenance_interval_hours": interval,
		"maintenance_due_in_hours":   interval - sinceService,
		"maintenance_records":        records,
		"known_issues":               []any{},
		"component_hours": map[string]any{
			"airframe": total,
			"battery":  a["battery_cycles"], // cycles, not hours
			"motors":   sinceService,        // motors are replaced at service
		},
	}, nil
}
