// Package gateway orchestrates the compliance-gateway server components.
//
// # Overview
//
// The gateway owns every long-lived component and wires them in order:
//
//  1. Store: sqlite, postgres or memory, optionally seeded with demo data
//  2. Lookup cache: none, in-process memory, or Redis, wrapping the store
//  3. Tool registry: the builtin packs, frozen before serving
//  4. Dispatcher: validation, session scoping, tracing and error mapping
//  5. Auth gate and MCP server: the HTTP handler and the stream transport
//
// # Transports
//
// Run listens on server.http_addr and serves the chi router from the mcp
// package until its context is canceled, then shuts down within
// server.shutdown_timeout. ServeStdio runs the stream transport on a reader
// and writer pair (normally stdin and stdout) and closes the store on EOF.
//
// # Shutdown
//
// Shutdown stops the HTTP server and closes the store. Every close error is
// collected and returned joined, so one failing component does not hide
// another.
package gateway
