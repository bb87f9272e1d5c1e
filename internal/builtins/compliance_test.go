// ABOUTME: Tests for compliance pack tool handlers.
// ABOUTME: Uses real SQLite and in-memory stores seeded with the demo fixtures.

package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompliancePack_Registration(t *testing.T) {
	pack := CompliancePack()
	assert.Equal(t, CompliancePackID, pack.ID)

	var names []string
	for _, tool := range pack.Tools {
		names = append(names, tool.Name)
		assert.NotNil(t, tool.Handler)
	}
	assert.Equal(t, []string{"get_flight_log", "get_pilot", "get_aircraft", "get_mission", "get_maintenance_history"}, names)
}

func TestGetFlightLog(t *testing.T) {
	pack := CompliancePack()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := call(t, st, pack, "get_flight_log", map[string]any{"flight_id": "FLT-TC01"})
			require.NoError(t, err)

			assert.Equal(t, "FLT-TC01", got["flight_id"])
			assert.Equal(t, "PLT-001", got["pilot_id"])
			assert.Equal(t, "AC-001", got["aircraft_id"])
			assert.Equal(t, "ardupilot_bin", got["log_format"])
			assert.Equal(t, "2025-01-07T14:30:00", got["flight_datetime"])
			assert.EqualValues(t, 1500, got["duration_seconds"])
			assert.Len(t, got["telemetry"], 50)
			assert.Len(t, got["events"], 4)

			summary := got["summary"].(map[string]any)
			assert.Equal(t, 350.0, summary["max_altitude_ft"])
			assert.Equal(t, 2.1, summary["distance_km"])
		})
	}
}

func TestGetFlightLog_EmptyTelemetry(t *testing.T) {
	pack := CompliancePack()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := call(t, st, pack, "get_flight_log", map[string]any{"flight_id": "FLT-TC04"})
			require.NoError(t, err)
			assert.Equal(t, []any{}, got["telemetry"])
			assert.Equal(t, []any{}, got["events"])
		})
	}
}

func TestGetFlightLog_NotFound(t *testing.T) {
	pack := CompliancePack()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := call(t, st, pack, "get_flight_log", map[string]any{"flight_id": "FLT-NOPE"})
			requireNotFound(t, err, "Flight not found: FLT-NOPE")
		})
	}
}

func TestGetPilot(t *testing.T) {
	pack := CompliancePack()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			byID, err := call(t, st, pack, "get_pilot", map[string]any{"pilot_id": "PLT-001"})
			require.NoError(t, err)
			assert.Equal(t, "John Smith", byID["name"])
			assert.Equal(t, "4123456", byID["certificate_number"])
			assert.Equal(t, "2026-05-15", byID["certificate_expiry"])
			assert.Equal(t, true, byID["certificate_valid"])
			assert.Equal(t, []any{"Night Operations"}, byID["waivers"])
			assert.Equal(t, 45.5, byID["flight_hours_90_days"])

			byCert, err := call(t, st, pack, "get_pilot", map[string]any{"pilot_id": "4789012"})
			require.NoError(t, err)
			assert.Equal(t, "PLT-002", byCert["pilot_id"])
			assert.Equal(t, false, byCert["certificate_valid"])

			_, err = call(t, st, pack, "get_pilot", map[string]any{"pilot_id": "PLT-999"})
			requireNotFound(t, err, "Pilot not found: PLT-999")
		})
	}
}

func TestGetAircraft(t *testing.T) {
	pack := CompliancePack()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			byReg, err := call(t, st, pack, "get_aircraft", map[string]any{"aircraft_id": "N67890"})
			require.NoError(t, err)
			assert.Equal(t, "AC-002", byReg["aircraft_id"])
			assert.Equal(t, "DJI Matrice 300", byReg["make_model"])
			assert.Equal(t, false, byReg["registration_valid"])
			assert.EqualValues(t, 300, byReg["battery_cycles"])

			_, err = call(t, st, pack, "get_aircraft", map[string]any{"aircraft_id": "N00000"})
			requireNotFound(t, err, "Aircraft not found: N00000")
		})
	}
}

func TestGetMission(t *testing.T) {
	pack := CompliancePack()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := call(t, st, pack, "get_mission", map[string]any{"flight_id": "FLT-TC01"})
			require.NoError(t, err)
			assert.Equal(t, "MSN-TC01", got["mission_id"])
			assert.Equal(t, []any{37.7749, -122.4194}, got["location_coords"])
			assert.Equal(t, "G", got["airspace_class"])
			assert.Nil(t, got["laanc_authorization_id"])
			assert.Len(t, got["geofence"], 4)
			assert.Equal(t, []any{}, got["planned_route"])

			_, err = call(t, st, pack, "get_mission", map[string]any{"flight_id": "FLT-TC05"})
			requireNotFound(t, err, "Mission not found for flight: FLT-TC05")

			// A mission ID is not a flight ID
			_, err = call(t, st, pack, "get_mission", map[string]any{"flight_id": "MSN-TC01"})
			requireNotFound(t, err, "Mission not found for flight: MSN-TC01")
		})
	}
}

func TestGetMaintenanceHistory(t *testing.T) {
	pack := CompliancePack()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := call(t, st, pack, "get_maintenance_history", map[string]any{"aircraft_id": "AC-001"})
			require.NoError(t, err)

			assert.Equal(t, "AC-001", got["aircraft_id"])
			assert.Equal(t, 234.5, got["total_flight_hours"])
			assert.Equal(t, 18.5, got["hours_since_maintenance"])
			assert.Equal(t, 81.5, got["maintenance_due_in_hours"])
			assert.Equal(t, []any{}, got["known_issues"])

			records := got["maintenance_records"].([]any)
			require.Len(t, records, 2)
			newest := records[0].(map[string]any)
			assert.Equal(t, "2024-12-15", newest["date"])
			assert.Equal(t, []any{"motors", "props", "battery"}, newest["components_serviced"])
			assert.Equal(t, "2024-11-20", records[1].(map[string]any)["date"])
			assert.Equal(t, "Overheating detected during flight", records[1].(map[string]any)["reason"])

			hours := got["component_hours"].(map[string]any)
			assert.Equal(t, 234.5, hours["airframe"])
			assert.EqualValues(t, 156, hours["battery"])
			assert.Equal(t, 18.5, hours["motors"])
		})
	}
}

func TestGetMaintenanceHistory_LimitAndRegistration(t *testing.T) {
	pack := CompliancePack()
	for name, st := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := call(t, st, pack, "get_maintenance_history", map[string]any{"aircraft_id": "AC-001", "limit": float64(1)})
			require.NoError(t, err)
			assert.Len(t, got["maintenance_records"], 1)

			got, err = call(t, st, pack, "get_maintenance_history", map[string]any{"aircraft_id": "AC-001", "limit": float64(0)})
			require.NoError(t, err)
			assert.Equal(t, []any{}, got["maintenance_records"])

			got, err = call(t, st, pack, "get_maintenance_history", map[string]any{"aircraft_id": "N11223"})
			require.NoError(t, err)
			assert.Equal(t, "AC-003", got["aircraft_id"])
			assert.Equal(t, 5.0, got["maintenance_due_in_hours"])
			assert.Len(t, got["maintenance_records"], 1)

			got, err = call(t, st, pack, "get_maintenance_history", map[string]any{"aircraft_id": "AC-002"})
			require.NoError(t, err)
			assert.Equal(t, []any{}, got["maintenance_records"])

			_, err = call(t, st, pack, "get_maintenance_history", map[string]any{"aircraft_id": "AC-404"})
			requireNotFound(t, err, "Aircraft not found: AC-404")
		})
	}
}
