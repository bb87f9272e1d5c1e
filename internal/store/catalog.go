// ABOUTME: Entity catalog describing tables, columns and lookup keys
// ABOUTME: Also normalizes raw driver values into JSON-friendly record values

package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"
)

// ColumnType is the logical type of a column, independent of SQL dialect.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeReal
	TypeBool
	TypeDate      // YYYY-MM-DD
	TypeTimestamp // YYYY-MM-DDTHH:MM:SS
	TypeJSON      // stored as text, decoded on read
)

// Column describes one field of an entity.
type Column struct {
	Name        string
	Type        ColumnType
	Description string
}

// Entity describes one table exposed through the store.
type Entity struct {
	Name        string
	Table       string
	Description string
	Columns     []Column
	// LookupKeys are the columns Lookup tries, in order.
	LookupKeys []string
}

// Column returns the named column.
func (e Entity) Column(name string) (Column, bool) {
	for _, c := range e.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the entity's column names in declaration order.
func (e Entity) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
	}
	return names
}

// Catalog is the ordered set of entities a store serves.
type Catalog []Entity

// Entity returns the entity with the given name.
func (c Catalog) Entity(name string) (Entity, bool) {
	for _, e := range c {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}

// Names returns entity names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, e := range c {
		names[i] = e.Name
	}
	return names
}

// resolve finds the entity and checks every referenced column exists.
func (c Catalog) resolve(q Query) (Entity, error) {
	e, ok := c.Entity(q.Entity)
	if !ok {
		return Entity{}, fmt.Errorf("%w: %s", ErrUnknownEntity, q.Entity)
	}
	for name := range q.Filters {
		if _, ok := e.Column(name); !ok {
			return Entity{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, e.Name, name)
		}
	}
	for _, name := range q.Fields {
		if _, ok := e.Column(name); !ok {
			return Entity{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, e.Name, name)
		}
	}
	if q.OrderBy != "" {
		if _, ok := e.Column(q.OrderBy); !ok {
			return Entity{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, e.Name, q.OrderBy)
		}
	}
	return e, nil
}

// selectedColumns returns the columns a query projects, in declaration order.
func (e Entity) selectedColumns(fields []string) []Column {
	if len(fields) == 0 {
		return e.Columns
	}
	cols := make([]Column, 0, len(fields))
	for _, c := range e.Columns {
		if slices.Contains(fields, c.Name) {
			cols = append(cols, c)
		}
	}
	return cols
}

// DefaultCatalog returns the compliance entities: pilots, aircraft, flights,
// missions and maintenance records.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			Name:        "pilots",
			Table:       "pilots",
			Description: "Pilot certifications and credentials",
			LookupKeys:  []string{"id", "certificate_number"},
			Columns: []Column{
				{"id", TypeText, "Unique identifier"},
				{"name", TypeText, "Full name"},
				{"certificate_type", TypeText, "Certificate type (Part 107, Part 61, etc.)"},
				{"certificate_number", TypeText, "FAA certificate number"},
				{"certificate_expiry", TypeDate, "Certificate expiration date"},
				{"certificate_valid", TypeBool, "Whether certificate is currently valid"},
				{"waivers", TypeJSON, "List of waivers held"},
				{"flight_hours_90_days", TypeReal, "Flight hours in last 90 days"},
				{"total_flight_hours", TypeReal, "Total career flight hours"},
			},
		},
		{
			Name:        "aircraft",
			Table:       "aircraft",
			Description: "Aircraft registration and status",
			LookupKeys:  []string{"id", "registration"},
			Columns: []Column{
				{"id", TypeText, "Unique identifier"},
				{"registration", TypeText, "FAA registration number (N-number)"},
				{"make_model", TypeText, "Aircraft make and model"},
				{"serial_number", TypeText, "Manufacturer serial number"},
				{"registration_expiry", TypeDate, "Registration expiration date"},
				{"registration_valid", TypeBool, "Whether registration is currently valid"},
				{"total_flight_hours", TypeReal, "Total airframe flight hours"},
				{"last_maintenance_date", TypeDate, "Date of last maintenance"},
				{"hours_since_maintenance", TypeReal, "Flight hours since last maintenance"},
				{"maintenance_interval_hours", TypeReal, "Required maintenance interval"},
				{"battery_cycles", TypeInteger, "Battery charge cycles"},
				{"firmware_version", TypeText, "Current firmware version"},
			},
		},
		{
			Name:        "flights",
			Table:       "flights",
			Description: "Flight logs and telemetry",
			LookupKeys:  []string{"id"},
			Columns: []Column{
				{"id", TypeText, "Unique identifier"},
				{"pilot_id", TypeText, "Pilot identifier"},
				{"aircraft_id", TypeText, "Aircraft identifier"},
				{"flight_datetime", TypeTimestamp, "Flight date and time"},
				{"duration_seconds", TypeInteger, "Flight duration in seconds"},
				{"log_format", TypeText, "Source log format"},
				{"telemetry", TypeJSON, "Telemetry samples"},
				{"events", TypeJSON, "Flight events (arm, takeoff, failsafes)"},
				{"summary", TypeJSON, "Flight summary statistics"},
			},
		},
		{
			Name:        "missions",
			Table:       "missions",
			Description: "Mission planning data",
			LookupKeys:  []string{"flight_id", "id"},
			Columns: []Column{
				{"id", TypeText, "Unique identifier"},
				{"flight_id", TypeText, "Associated flight identifier"},
				{"purpose", TypeText, "Mission purpose"},
				{"client_name", TypeText, "Client name"},
				{"location_name", TypeText, "Location name"},
				{"location_lat", TypeReal, "Location latitude"},
				{"location_lon", TypeReal, "Location longitude"},
				{"airspace_class", TypeText, "Airspace classification"},
				{"laanc_required", TypeBool, "Whether LAANC authorization required"},
				{"laanc_authorization_id", TypeText, "LAANC authorization ID"},
				{"planned_altitude_ft", TypeReal, "Planned altitude (feet)"},
				{"planned_duration_min", TypeReal, "Planned duration (minutes)"},
				{"planned_route", TypeJSON, "Planned route waypoints"},
				{"geofence", TypeJSON, "Geofence polygon"},
			},
		},
		{
			Name:        "maintenance_records",
			Table:       "maintenance_records",
			Description: "Aircraft maintenance history",
			LookupKeys:  []string{"id"},
			Columns: []Column{
				{"id", TypeInteger, "Unique identifier"},
				{"aircraft_id", TypeText, "Aircraft identifier"},
				{"date", TypeDate, "Maintenance date"},
				{"type", TypeText, "Maintenance type"},
				{"description", TypeText, "Maintenance description"},
				{"components_serviced", TypeJSON, "Components serviced"},
				{"components_replaced", TypeJSON, "Components replaced"},
				{"technician", TypeText, "Technician name"},
				{"hours_at_service", TypeReal, "Aircraft hours at time of service"},
				{"reason", TypeText, "Reason for maintenance"},
			},
		},
	}
}

// normalize converts a raw driver value into the record representation for
// the column type. Drivers differ: SQLite hands back int64 for booleans,
// lib/pq hands back time.Time for date columns and []byte for numerics.
func normalize(col Column, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch col.Type {
	case TypeText:
		switch v := raw.(type) {
		case string:
			return v, nil
		case time.Time:
			return v.Format(time.RFC3339), nil
		default:
			return fmt.Sprint(v), nil
		}

	case TypeInteger:
		switch v := raw.(type) {
		case int64:
			return v, nil
		case int:
			return int64(v), nil
		case float64:
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
			return n, nil
		}

	case TypeReal:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case int:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
			return f, nil
		}

	case TypeBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
			return b, nil
		}

	case TypeDate:
		switch v := raw.(type) {
		case string:
			return v, nil
		case time.Time:
			return v.Format(time.DateOnly), nil
		}

	case TypeTimestamp:
		switch v := raw.(type) {
		case string:
			return v, nil
		case time.Time:
			return v.Format("2006-01-02T15:04:05"), nil
		}

	case TypeJSON:
		s, ok := raw.(string)
		if !ok {
			return raw, nil
		}
		if s == "" {
			return nil, nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, fmt.Errorf("column %s: decoding json: %w", col.Name, err)
		}
		return decoded, nil
	}

	return nil, fmt.Errorf("column %s: unexpected value type %T", col.Name, raw)
}

// encode converts a record value into a driver argument for the column type.
func encode(col Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if col.Type == TypeJSON {
		if s, ok := v.(string); ok {
			return s, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: encoding json: %w", col.Name, err)
		}
		return string(data), nil
	}
	return v, nil
}
