// Package dispatch turns a resolved method name and decoded parameters into
// a Result.
//
// For each invocation the Dispatcher resolves the tool in the registry,
// validates parameters, acquires one store session, runs the handler and
// releases the session on every path. Domain "not found" outcomes are
// successes carrying {"error": message}. A *packs.ValidationError from a
// handler is CodeInvalidParams. Other handler errors and panics become
// CodeInternalError; the cause is logged under a correlation id that is the
// only detail returned to the caller.
//
// Every invocation is recorded as a "tools.invoke" span and counted.
package dispatch
