// ABOUTME: JSON-RPC 2.0 envelope codec shared by the stream and HTTP transports.
// ABOUTME: Decodes requests strictly and encodes dispatch results with the id echoed.

package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/uavcrew/compliance-gateway/internal/dispatch"
)

const jsonrpcVersion = "2.0"

// Request is a decoded JSON-RPC request.
type Request struct {
	// ID is the raw id (string, number or null). Nil when the id was absent.
	ID     json.RawMessage
	Method string
	Params map[string]any
}

// IsNotification reports whether the request carried no id.
func (r *Request) IsNotification() bool {
	return r.ID == nil
}

// ParseError describes a malformed envelope. ID is set when it could be read.
type ParseError struct {
	ID     json.RawMessage
	Reason string
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Reason
}

// Decode parses one JSON-RPC request envelope. It returns *ParseError for
// anything that is not a well-formed request object.
func Decode(data []byte) (*Request, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, &ParseError{Reason: "invalid JSON"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, &ParseError{Reason: "request must be a JSON object"}
	}

	req := &Request{}
	if raw, ok := fields["id"]; ok {
		if !validID(raw) {
			return nil, &ParseError{Reason: "id must be a string, number or null"}
		}
		req.ID = raw
	}

	if raw, ok := fields["jsonrpc"]; ok {
		var version string
		if err := json.Unmarshal(raw, &version); err != nil || version != jsonrpcVersion {
			return nil, &ParseError{ID: req.ID, Reason: `jsonrpc must be "2.0"`}
		}
	}

	raw, ok := fields["method"]
	if !ok {
		return nil, &ParseError{ID: req.ID, Reason: "method is required"}
	}
	if err := json.Unmarshal(raw, &req.Method); err != nil || isNull(raw) {
		return nil, &ParseError{ID: req.ID, Reason: "method must be a string"}
	}
	if req.Method == "" {
		return nil, &ParseError{ID: req.ID, Reason: "method must not be empty"}
	}

	if raw, ok := fields["params"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &req.Params); err != nil || req.Params == nil {
			return nil, &ParseError{ID: req.ID, Reason: "params must be an object"}
		}
	}
	return req, nil
}

func validID(raw json.RawMessage) bool {
	if isNull(raw) {
		return true
	}
	switch raw[0] {
	case '"':
		return true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return true
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// ErrorObject is the error member of a response.
type ErrorObject struct {
	Code    dispatch.Code `json:"code"`
	Message string        `json:"message"`
	Data    any           `json:"data,omitempty"`
}

type successEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

type errorEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *ErrorObject    `json:"error"`
}

// Encode renders a response for id. Exactly one of result or error is set;
// a nil id is written as null.
func Encode(id json.RawMessage, result dispatch.Result) ([]byte, error) {
	if id == nil {
		id = json.RawMessage("null")
	}
	if f := result.Failure(); f != nil {
		obj := &ErrorObject{Code: f.Code, Message: f.Message}
		if f.CorrelationID != "" {
			obj.Data = map[string]string{"correlation_id": f.CorrelationID}
		}
		return json.Marshal(errorEnvelope{JSONRPC: jsonrpcVersion, ID: id, Error: obj})
	}
	data, err := json.Marshal(successEnvelope{JSONRPC: jsonrpcVersion, ID: id, Result: result.Payload()})
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return data, nil
}

// EncodeError renders an error response without going through a Result.
func EncodeError(id json.RawMessage, code dispatch.Code, message string) []byte {
	// Marshaling a fixed struct of strings and ints cannot fail
	data, _ := Encode(id, dispatch.Fail(code, message))
	return data
}

// Response is a decoded JSON-RPC response, for clients and tests.
type Response struct {
	ID     json.RawMessage
	Result json.RawMessage
	Error  *ErrorObject
}

// ErrMalformedResponse is returned by DecodeResponse.
var ErrMalformedResponse = errors.New("malformed JSON-RPC response")

// DecodeResponse parses a response envelope and checks that it carries
// exactly one of result or error.
func DecodeResponse(data []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var version string
	if err := json.Unmarshal(fields["jsonrpc"], &version); err != nil || version != jsonrpcVersion {
		return nil, fmt.Errorf("%w: bad jsonrpc version", ErrMalformedResponse)
	}

	id, ok := fields["id"]
	if !ok {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedResponse)
	}
	resp := &Response{ID: id}

	result, hasResult := fields["result"]
	rawErr, hasError := fields["error"]
	switch {
	case hasResult == hasError:
		return nil, fmt.Errorf("%w: need exactly one of result or error", ErrMalformedResponse)
	case hasResult:
		resp.Result = result
	default:
		if err := json.Unmarshal(rawErr, &resp.Error); err != nil || resp.Error == nil {
			return nil, fmt.Errorf("%w: bad error object", ErrMalformedResponse)
		}
	}
	return resp, nil
}
