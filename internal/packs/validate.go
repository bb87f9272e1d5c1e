// ABOUTME: Argument validation against a tool's declared parameters.
// ABOUTME: Reports the first failing parameter in declaration order.

package packs

import (
	"encoding/json"
	"fmt"
	"math"
)

// ValidationError identifies the first parameter that failed validation.
type ValidationError struct {
	Parameter string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Parameter, e.Reason)
}

// Validate checks params against the tool's parameters. Required parameters
// must be present and non-null, present parameters must match their declared
// type, and undeclared parameters are ignored. Returns *ValidationError.
func Validate(tool *Tool, params map[string]any) error {
	for _, p := range tool.Params {
		v, present := params[p.Name]
		if !present || v == nil {
			if p.Required {
				return &ValidationError{Parameter: p.Name, Reason: "required parameter missing"}
			}
			continue
		}

		if !matchesType(p.Type, v) {
			return &ValidationError{
				Parameter: p.Name,
				Reason:    fmt.Sprintf("expected %s, got %s", p.Type, describeType(v)),
			}
		}

		if p.Type == TypeArray && p.Items != "" {
			for i, elem := range v.([]any) {
				if !matchesType(p.Items, elem) {
					return &ValidationError{
						Parameter: p.Name,
						Reason:    fmt.Sprintf("element %d: expected %s, got %s", i, p.Items, describeType(elem)),
					}
				}
			}
		}
	}
	return nil
}

func matchesType(t ParamType, v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeFloat:
		_, ok := toFloat(v)
		return ok
	case TypeInteger:
		f, ok := toFloat(v)
		return ok && f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) <= 1<<53
	}
	return false
}

// toFloat accepts the numeric shapes a decoded JSON document can carry.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func describeType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case float64, json.Number, int, int64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
