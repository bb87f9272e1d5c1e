// ABOUTME: Invocation outcome type shared by the dispatcher and the transports
// ABOUTME: A Result is either a success payload or a Failure with a wire code

package dispatch

// Code is a JSON-RPC error code.
type Code int

// Wire error codes.
const (
	CodeParseError     Code = -32700
	CodeInvalidRequest Code = -32600
	CodeMethodNotFound Code = -32601
	CodeInvalidParams  Code = -32602
	CodeInternalError  Code = -32603
	CodeUnauthorized   Code = -32001
)

// Failure describes why an invocation produced no payload.
type Failure struct {
	Code    Code
	Message string
	// CorrelationID ties an internal failure to its server-side log entry.
	CorrelationID string
}

// Result is the outcome of one invocation: exactly one of a payload or a
// Failure. The zero value is a success with a nil payload.
type Result struct {
	payload any
	failure *Failure
}

// Success wraps a handler payload.
func Success(payload any) Result {
	return Result{payload: payload}
}

// Fail builds a failed Result.
func Fail(code Code, message string) Result {
	return Result{failure: &Failure{Code: code, Message: message}}
}

// Failed reports whether the invocation failed.
func (r Result) Failed() bool { return r.failure != nil }

// Payload returns the success payload, nil for failures.
func (r Result) Payload() any { return r.payload }

// Failure returns the failure, nil for successes.
func (r Result) Failure() *Failure { return r.failure }
