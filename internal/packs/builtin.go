// ABOUTME: Tool descriptors, parameter schemas and handler signature for in-process tools.
// ABOUTME: Tools are grouped into packs that the registry ingests at startup.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/uavcrew/compliance-gateway/internal/store"
)

// ParamType is the declared type of a tool parameter, named as in JSON Schema.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeFloat   ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Param declares one input parameter of a tool.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
	Default     any       // advertised in the schema, applied by handlers
	Items       ParamType // element type for arrays, unchecked when empty
}

// ToolHandler executes a tool. Arguments have already been validated against
// the tool's parameters. The session is scoped to this single invocation.
type ToolHandler func(ctx context.Context, sess store.Session, args Args) (any, error)

// Tool describes a registered tool. Tools are immutable once registered.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     ToolHandler
	PackID      string // set by the registry
}

// BuiltinPack is a collection of tools with a pack ID.
type BuiltinPack struct {
	ID    string
	Tools []*Tool
}

// InputSchema renders the tool's parameters as a JSON Schema object.
func (t *Tool) InputSchema() json.RawMessage {
	properties := make(map[string]any, len(t.Params))
	required := make([]string, 0, len(t.Params))

	for _, p := range t.Params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Type == TypeArray && p.Items != "" {
			prop["items"] = map[string]any{"type": string(p.Items)}
		}
		if p.Type == TypeObject {
			prop["additionalProperties"] = true
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
	data, err := json.Marshal(schema)
	if err != nil {
		// Only reachable with an unmarshalable Default
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}

// NotFoundError is a domain outcome: the tool ran and the requested entity
// does not exist. The dispatcher reports it as a successful payload.
type NotFoundError struct {
	Message string
	// Extra fields are merged into the payload next to "error".
	Extra map[string]any
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// NotFound builds a NotFoundError with a formatted message.
func NotFound(format string, args ...any) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) (*NotFoundError, bool) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf, true
	}
	return nil, false
}
