// ABOUTME: Demo compliance fixtures covering the audit test cases
// ABOUTME: Shared by SQL seeding and the in-memory store

package store

import (
	"time"
)

// Fixtures returns the demo records keyed by entity name. Each call builds
// fresh values so callers may mutate the result.
//
// The flights cover the compliance scenarios: TC01 clean, TC02 altitude
// violation, TC03 geofence breach, TC04 expired pilot certificate, TC05
// expired aircraft registration, TC06 maintenance nearly due, TC08 battery
// failsafe.
func Fixtures() map[string][]Record {
	base := time.Date(2025, 1, 7, 14, 30, 0, 0, time.UTC)

	return map[string][]Record{
		"pilots": {
			{
				"id":                   "PLT-001",
				"name":                 "John Smith",
				"certificate_type":     "Part 107",
				"certificate_number":   "4123456",
				"certificate_expiry":   "2026-05-15",
				"certificate_valid":    true,
				"waivers":              []any{"Night Operations"},
				"flight_hours_90_days": 45.5,
				"total_flight_hours":   234.0,
			},
			{
				"id":                   "PLT-002",
				"name":                 "Jane Doe",
				"certificate_type":     "Part 107",
				"certificate_number":   "4789012",
				"certificate_expiry":   "2024-12-15",
				"certificate_valid":    false,
				"waivers":              []any{},
				"flight_hours_90_days": 30.0,
				"total_flight_hours":   150.0,
			},
			{
				"id":                   "PLT-003",
				"name":                 "Bob Wilson",
				"certificate_type":     "Part 107",
				"certificate_number":   "4555666",
				"certificate_expiry":   "2027-03-01",
				"certificate_valid":    true,
				"waivers":              []any{"Night Operations", "BVLOS"},
				"flight_hours_90_days": 85.0,
				"total_flight_hours":   500.0,
			},
		},

		"aircraft": {
			{
				"id":                         "AC-001",
				"registration":               "N12345",
				"make_model":                 "Holybro X500 V2",
				"serial_number":              "HB-X500-12345",
				"registration_expiry":        "2027-03-15",
				"registration_valid":         true,
				"total_flight_hours":         234.5,
				"last_maintenance_date":      "2024-12-15",
				"hours_since_maintenance":    18.5,
				"maintenance_interval_hours": 100.0,
				"battery_cycles":             int64(156),
				"firmware_version":           "ArduCopter 4.5.1",
			},
			{
				"id":                         "AC-002",
				"registration":               "N67890",
				"make_model":                 "DJI Matrice 300",
				"serial_number":              "DJ-M300-67890",
				"registration_expiry":        "2024-06-01",
				"registration_valid":         false,
				"total_flight_hours":         500.0,
				"last_maintenance_date":      "2024-10-01",
				"hours_since_maintenance":    50.0,
				"maintenance_interval_hours": 100.0,
				"battery_cycles":             int64(300),
				"firmware_version":           "DJI v02.00.0000",
			},
			{
				"id":                         "AC-003",
				"registration":               "N11223",
				"make_model":                 "Holybro X500 V2",
				"serial_number":              "HB-X500-11223",
				"registration_expiry":        "2026-12-31",
				"registration_valid":         true,
				"total_flight_hours":         95.0,
				"last_maintenance_date":      "2024-06-15",
				"hours_since_maintenance":    95.0,
				"maintenance_interval_hours": 100.0,
				"battery_cycles":             int64(290),
				"firmware_version":           "ArduCopter 4.4.0",
			},
		},

		"flights": {
			flight("FLT-TC01", "PLT-001", "AC-001", base, 1500, "ardupilot_bin",
				cleanTelemetry(base), cleanEvents(base),
				summary(1500, 2.1, 350, 280, 35, 35)),
			flight("FLT-TC02", "PLT-001", "AC-001", base.AddDate(0, 0, -1), 1200, "ardupilot_bin",
				altitudeViolationTelemetry(base.AddDate(0, 0, -1)),
				[]any{
					event(base, "ARM", map[string]any{}),
					event(base.Add(10*time.Minute), "ALTITUDE_WARNING", map[string]any{"altitude_ft": 485}),
				},
				summary(1200, 1.8, 485, 380, 30, 42)),
			flight("FLT-TC03", "PLT-001", "AC-001", base.AddDate(0, 0, -2), 900, "ardupilot_bin",
				[]any{},
				[]any{
					event(base, "ARM", map[string]any{}),
					event(base.Add(5*time.Minute), "FENCE_BREACH", map[string]any{"distance_m": 150}),
					event(base.Add(6*time.Minute), "RTL", map[string]any{"reason": "GEOFENCE"}),
				},
				summary(900, 1.5, 320, 250, 40, 55)),
			flight("FLT-TC04", "PLT-002", "AC-001", base.AddDate(0, 0, -3), 1800, "ardupilot_bin",
				[]any{}, []any{},
				summary(1800, 3.0, 380, 300, 35, 28)),
			flight("FLT-TC05", "PLT-001", "AC-002", base.AddDate(0, 0, -4), 1500, "dji",
				[]any{}, []any{},
				summary(1500, 2.5, 350, 280, 40, 32)),
			flight("FLT-TC06", "PLT-001", "AC-003", base.AddDate(0, 0, -5), 1200, "ardupilot_bin",
				[]any{}, []any{},
				summary(1200, 2.0, 300, 250, 30, 40)),
			flight("FLT-TC08", "PLT-001", "AC-001", base.AddDate(0, 0, -7), 1680, "ardupilot_bin",
				[]any{},
				[]any{
					event(base, "ARM", map[string]any{}),
					event(base.Add(25*time.Minute), "FAILSAFE_BATTERY", map[string]any{"percent": 12}),
					event(base.Add(25*time.Minute+5*time.Second), "RTL", map[string]any{"reason": "CRITICAL_BATTERY"}),
				},
				summary(1680, 2.8, 320, 280, 35, 12)),
		},

		"missions": {
			{
				"id":                     "MSN-TC01",
				"flight_id":              "FLT-TC01",
				"purpose":                "Infrastructure Inspection",
				"client_name":            "ACME Corp",
				"location_name":          "Oakland Industrial Park",
				"location_lat":           37.7749,
				"location_lon":           -122.4194,
				"airspace_class":         "G",
				"laanc_required":         false,
				"laanc_authorization_id": nil,
				"planned_altitude_ft":    350.0,
				"planned_duration_min":   30.0,
				"planned_route":          []any{},
				"geofence": []any{
					[]any{37.774, -122.420},
					[]any{37.776, -122.420},
					[]any{37.776, -122.418},
					[]any{37.774, -122.418},
				},
			},
			{
				"id":                     "MSN-TC02",
				"flight_id":              "FLT-TC02",
				"purpose":                "Cell Tower Inspection",
				"client_name":            "TeleCom Inc",
				"location_name":          "Downtown Tower Site",
				"location_lat":           37.7849,
				"location_lon":           -122.4094,
				"airspace_class":         "G",
				"laanc_required":         false,
				"laanc_authorization_id": nil,
				"planned_altitude_ft":    400.0,
				"planned_duration_min":   25.0,
				"planned_route":          []any{},
				"geofence":               []any{},
			},
			{
				"id":                     "MSN-TC12",
				"flight_id":              "FLT-TC12",
				"purpose":                "Aerial Photography",
				"client_name":            "Media Co",
				"location_name":          "SFO Adjacent Area",
				"location_lat":           37.6213,
				"location_lon":           -122.3790,
				"airspace_class":         "B",
				"laanc_required":         true,
				"laanc_authorization_id": nil,
				"planned_altitude_ft":    200.0,
				"planned_duration_min":   20.0,
				"planned_route":          []any{},
				"geofence":               []any{},
			},
		},

		"maintenance_records": {
			{
				"id":                  int64(1),
				"aircraft_id":         "AC-001",
				"date":                "2024-12-15",
				"type":                "Scheduled",
				"description":         "100-hour inspection",
				"components_serviced": []any{"motors", "props", "battery"},
				"components_replaced": []any{},
				"technician":          "Mike Johnson",
				"hours_at_service":    216.0,
				"reason":              nil,
			},
			{
				"id":                  int64(2),
				"aircraft_id":         "AC-001",
				"date":                "2024-11-20",
				"type":                "Unscheduled",
				"description":         "Motor 3 replacement",
				"components_serviced": []any{},
				"components_replaced": []any{"motor_3"},
				"technician":          "Mike Johnson",
				"hours_at_service":    200.0,
				"reason":              "Overheating detected during flight",
			},
			{
				"id":                  int64(3),
				"aircraft_id":         "AC-003",
				"date":                "2024-06-15",
				"type":                "Scheduled",
				"description":         "Initial setup and calibration",
				"components_serviced": []any{"compass", "accelerometer", "gyro"},
				"components_replaced": []any{},
				"technician":          "Factory",
				"hours_at_service":    0.0,
				"reason":              nil,
			},
		},
	}
}

func flight(id, pilotID, aircraftID string, at time.Time, duration int64, format string, telemetry, events []any, sum map[string]any) Record {
	return Record{
		"id":               id,
		"pilot_id":         pilotID,
		"aircraft_id":      aircraftID,
		"flight_datetime":  isoTime(at),
		"duration_seconds": duration,
		"log_format":       format,
		"telemetry":        telemetry,
		"events":           events,
		"summary":          sum,
	}
}

func summary(duration int64, distanceKM, maxAlt, avgAlt, maxSpeed, minBattery float64) map[string]any {
	return map[string]any{
		"duration_seconds":    duration,
		"distance_km":         distanceKM,
		"max_altitude_ft":     maxAlt,
		"avg_altitude_ft":     avgAlt,
		"max_speed_mph":       maxSpeed,
		"min_battery_percent": minBattery,
	}
}

func event(at time.Time, kind string, details map[string]any) map[string]any {
	return map[string]any{
		"timestamp": isoTime(at),
		"type":      kind,
		"details":   details,
	}
}

func isoTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}

// cleanEvents is a normal arm, takeoff, land, disarm sequence.
func cleanEvents(start time.Time) []any {
	return []any{
		event(start, "ARM", map[string]any{}),
		event(start.Add(5*time.Second), "TAKEOFF", map[string]any{}),
		event(start.Add(24*time.Minute+55*time.Second), "LAND", map[string]any{}),
		event(start.Add(25*time.Minute), "DISARM", map[string]any{}),
	}
}

// cleanTelemetry climbs to 350 ft and back over 50 samples at 30 s spacing.
func cleanTelemetry(start time.Time) []any {
	samples := make([]any, 0, 50)
	for i := range 50 {
		alt := 280 + 70*float64(i)/25
		if i >= 25 {
			alt = 350 - 70*float64(i-25)/25
		}
		samples = append(samples, telemetrySample(start, i, 37.7749, -122.4194, alt, float64(25+i%10), 14))
	}
	return samples
}

// altitudeViolationTelemetry holds 485 ft for samples 15 through 24.
func altitudeViolationTelemetry(start time.Time) []any {
	samples := make([]any, 0, 40)
	for i := range 40 {
		var alt float64
		switch {
		case i < 15:
			alt = float64(200 + 20*i)
		case i < 25:
			alt = 485
		default:
			alt = float64(485 - 20*(i-25))
		}
		samples = append(samples, telemetrySample(start, i, 37.7849, -122.4094, alt, 30, 12))
	}
	return samples
}

func telemetrySample(start time.Time, i int, lat, lon, alt, speed float64, sats int) map[string]any {
	return map[string]any{
		"timestamp":        isoTime(start.Add(time.Duration(i) * 30 * time.Second)),
		"latitude":         lat + 0.0001*float64(i),
		"longitude":        lon + 0.0001*float64(i),
		"altitude_agl_ft":  alt,
		"ground_speed_mph": speed,
		"battery_percent":  95 - i,
		"gps_satellites":   sats,
	}
}
