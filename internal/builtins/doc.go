// Package builtins provides the tool packs served by the compliance gateway.
//
// # Overview
//
// Every tool is an in-process handler that reads compliance data through a
// store.Session or reads documents from a sandboxed directory. No tool
// mutates anything.
//
// # Tool Packs
//
// Compliance Pack (builtin:compliance):
//
//   - get_flight_log: Telemetry, events and summary for a flight
//   - get_pilot: Pilot certification by pilot ID or certificate number
//   - get_aircraft: Aircraft registration by aircraft ID or N-number
//   - get_mission: Mission planning data for a flight
//   - get_maintenance_history: Maintenance records and component hours
//
// Entities Pack (builtin:entities):
//
//   - list_entities: Entity names and descriptions
//   - describe_entity: Fields of one entity
//   - query_entity: Fetch by ID or by equality filters
//
// Files Pack (builtin:files), registered only when a document root is
// configured:
//
//   - list_files: Glob a directory
//   - read_file: Read text, or base64 for binary content
//   - get_file_metadata: Size, MIME type and timestamps
//
// # Registration
//
//	builtins.RegisterAll(builder, store.Catalog(), builtins.Options{FilesRoot: "/srv/docs"})
//
// # Not Found
//
// A missing record is a domain outcome, not a failure. Handlers return
// packs.NotFoundError and the dispatcher turns it into a successful payload
// of the form {"error": "..."}.
package builtins
