// Package packs provides the tool registry and argument validation.
//
// # Overview
//
// A tool is a named, schema-described read operation exposed to the remote
// caller. Tools are grouped into packs (see internal/builtins) and
// registered once at startup:
//
//	b := packs.NewBuilder(logger)
//	b.RegisterPack(builtins.CompliancePack())
//	registry := b.Build()
//
// # Registry
//
// Build freezes the set of tools. The Registry has no mutators, so lookups
// from concurrent transports need no locking. There is no package-level
// registry; each server owns its own.
//
//   - Resolve(name) returns the tool or ErrUnknownTool
//   - List() yields tools in registration order for capability discovery
//
// Registering a name twice fails with ErrDuplicateTool.
//
// # Validation
//
// Validate checks arguments against a tool's declared parameters before the
// handler runs:
//
//  1. Required parameters must be present (JSON null counts as absent)
//  2. Present parameters must match their declared type
//  3. Undeclared parameters are ignored
//
// The first failure in declaration order is returned as a *ValidationError.
// Values are never coerced: "5" is not an integer.
//
// # Domain Outcomes
//
// Handlers report "the entity does not exist" by returning a NotFoundError.
// That is an answer, not a failure; the dispatcher turns it into a
// successful payload of the form {"error": "..."}.
package packs
