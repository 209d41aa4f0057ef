// Package fieldpath addresses values inside nested JSON payloads. A path is
// an ordered list of segments; numeric segments index into arrays, everything
// else is an object key. Paths are always derived from the currently rendered
// structure, so a path that fails to resolve indicates a renderer/mutator
// mismatch and is reported as an error rather than papered over.
package fieldpath

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Path locates a value inside a nested JSON payload.
type Path []string

// ErrNotFound is returned when a path segment does not resolve.
var ErrNotFound = errors.New("path does not resolve")

// String renders the path in dotted form for error messages and logs.
func (p Path) String() string {
	var buf bytes.Buffer
	for i, seg := range p {
		if i > 0 {
			buf.WriteByte('.')
		}
		buf.WriteString(seg)
	}
	return buf.String()
}

// Get returns the value at path inside root. The returned value aliases the
// input; callers must not mutate it.
func Get(root any, path Path) (any, error) {
	cur := root
	for i, seg := range path {
		next, err := step(cur, seg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q (segment %d of %s)", ErrNotFound, seg, i, path)
		}
		cur = next
	}
	return cur, nil
}

// Set writes value at path inside root and returns the new root. The original
// root is never mutated: the payload is deep-cloned before the assignment, so
// every sibling of the addressed location is preserved byte for byte. An
// empty path replaces the root wholesale.
func Set(root any, path Path, value any) (any, error) {
	if len(path) == 0 {
		return Clone(value), nil
	}

	next := Clone(root)

	parent, err := Get(next, path[:len(path)-1])
	if err != nil {
		return nil, err
	}

	last := path[len(path)-1]
	switch p := parent.(type) {
	case map[string]any:
		// Assigning the final segment may create the key: list fields render
		// as editable (and appendable) even when the payload omits them.
		p[last] = Clone(value)
	case []any:
		idx, err := arrayIndex(last, len(p))
		if err != nil {
			return nil, fmt.Errorf("%w: %q (final segment of %s): %v", ErrNotFound, last, path, err)
		}
		p[idx] = Clone(value)
	default:
		return nil, fmt.Errorf("%w: cannot assign %q into %T (path %s)", ErrNotFound, last, parent, path)
	}

	return next, nil
}

// Clone returns a deep copy of a JSON-shaped value via a marshal round trip.
// This is the unconditionally safe strategy: the copy shares no mutable state
// with the original. Non-JSON values fall back to being returned as-is.
func Clone(v any) any {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case string, bool, float64, int, int64, json.Number:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func step(cur any, seg string) (any, error) {
	switch c := cur.(type) {
	case map[string]any:
		v, ok := c[seg]
		if !ok {
			return nil, fmt.Errorf("missing key")
		}
		return v, nil
	case []any:
		idx, err := arrayIndex(seg, len(c))
		if err != nil {
			return nil, err
		}
		return c[idx], nil
	default:
		return nil, fmt.Errorf("not a container")
	}
}

func arrayIndex(seg string, n int) (int, error) {
	idx, err := strconv.Atoi(seg)
	if err != nil {
		return 0, fmt.Errorf("non-numeric index %q", seg)
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("index %d out of range [0,%d)", idx, n)
	}
	return idx, nil
}
