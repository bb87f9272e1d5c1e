// Package mcp exposes the tool dispatcher over the Model Context Protocol.
//
// # Envelope
//
// Every message is a JSON-RPC 2.0 envelope. Decode is strict: invalid JSON,
// a non-object top level, a missing or non-string method, an id that is not
// a string, number or null, non-object params, and a jsonrpc version other
// than "2.0" are all parse errors. An absent version is accepted. A request
// without an id is a notification and receives no reply.
//
// # Methods
//
//	initialize   protocol handshake (protocol version 2025-11-25)
//	ping         liveness, returns {}
//	tools/list   capability discovery
//	tools/call   {name, arguments}, result wrapped as MCP text content
//	<tool name>  dispatched directly, payload returned as the result
//
// # Transports
//
// ServeStream reads newline-delimited or Content-Length framed messages from
// a byte stream and answers each one in order, mirroring the request's
// framing. It is trusted and unauthenticated.
//
// HTTPHandler serves:
//
//	GET  /health           no auth
//	POST /mcp              one envelope per body, 202 for notifications
//	GET  /mcp/tools        tool list as plain JSON
//	POST /mcp/tools/call   {tool, arguments} as plain JSON
//
// All /mcp routes require a credential accepted by the auth.Gate; failures
// get HTTP 401 with a JSON-RPC error envelope and a null id.
package mcp
