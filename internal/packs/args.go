// ABOUTME: Typed accessors over validated tool arguments.
// ABOUTME: Handlers use these instead of unchecked type assertions.

package packs

// Args are the validated arguments of one invocation, as decoded from JSON.
type Args map[string]any

// String returns the named argument, or def when absent.
func (a Args) String(name, def string) string {
	if s, ok := a[name].(string); ok {
		return s
	}
	return def
}

// Int returns the named argument as an int, or def when absent.
func (a Args) Int(name string, def int) int {
	if f, ok := toFloat(a[name]); ok {
		return int(f)
	}
	return def
}

// Bool returns the named argument, or def when absent.
func (a Args) Bool(name string, def bool) bool {
	if b, ok := a[name].(bool); ok {
		return b
	}
	return def
}

// Has reports whether the argument is present and non-null.
func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// Strings returns an array argument of strings. Non-string elements are skipped.
func (a Args) Strings(name string) []string {
	items, _ := a[name].([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Object returns an object argument, or nil when absent.
func (a Args) Object(name string) map[string]any {
	m, _ := a[name].(map[string]any)
	return m
}
