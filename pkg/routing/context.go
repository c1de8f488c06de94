package routing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrInvalidContext is returned when a runtime context is not a JSON object.
var ErrInvalidContext = errors.New("invalid evaluation context")

// Context is the runtime record a rule set is evaluated against. Fields are
// grouped by namespace (form, entity, initiator) and addressed by dotted
// paths; numeric segments index into lists.
type Context struct {
	raw []byte
}

// NewContext builds a context from decoded values.
func NewContext(values map[string]any) (Context, error) {
	if values == nil {
		return EmptyContext(), nil
	}

	raw, err := json.Marshal(values)
	if err != nil {
		return Context{}, fmt.Errorf("%w: %v", ErrInvalidContext, err)
	}

	return Context{raw: raw}, nil
}

// ParseContext builds a context from a JSON object.
func ParseContext(data []byte) (Context, error) {
	if !gjson.ValidBytes(data) {
		return Context{}, fmt.Errorf("%w: malformed JSON", ErrInvalidContext)
	}

	if !gjson.ParseBytes(data).IsObject() {
		return Context{}, fmt.Errorf("%w: expected a JSON object", ErrInvalidContext)
	}

	return Context{raw: append([]byte(nil), data...)}, nil
}

// EmptyContext returns a context without fields.
func EmptyContext() Context {
	return Context{raw: []byte("{}")}
}

// Lookup resolves a dotted path. Segments are plain keys, so query syntax such
// as wildcards or modifiers never matches. The second result is false when the
// path does not exist; an explicit null is found with a nil value.
func (c Context) Lookup(path string) (any, bool) {
	if path == "" || len(c.raw) == 0 {
		return nil, false
	}

	result := gjson.GetBytes(c.raw, escapePath(path))
	if !result.Exists() {
		return nil, false
	}

	return result.Value(), true
}

// With returns a copy of the context with the value at path replaced.
func (c Context) With(path string, value any) (Context, error) {
	raw := c.raw
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	updated, err := sjson.SetBytes(raw, escapePath(path), value)
	if err != nil {
		return Context{}, fmt.Errorf("%w: cannot set %s: %v", ErrInvalidContext, path, err)
	}

	return Context{raw: updated}, nil
}

// MarshalJSON returns the context document.
func (c Context) MarshalJSON() ([]byte, error) {
	if len(c.raw) == 0 {
		return []byte("{}"), nil
	}

	return c.raw, nil
}

// escapePath turns a dotted field path into a gjson path matching each
// segment literally.
func escapePath(path string) string {
	segments := strings.Split(path, ".")
	for i, segment := range segments {
		segments[i] = gjson.Escape(segment)
	}

	return strings.Join(segments, ".")
}
