package tree

import (
	"reflect"
	"sort"
)

// Get returns the value at path p inside root.
func Get(root any, p Path) (any, bool) {
	cur := root
	for _, s := range p {
		next, ok := child(cur, s)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func child(node any, s Segment) (any, bool) {
	if s.isIndex {
		list, ok := node.([]any)
		if !ok || s.index < 0 || s.index >= len(list) {
			return nil, false
		}
		return list[s.index], true
	}
	m, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[s.name]
	return v, ok
}

// Set writes value at path p. Intermediate containers must already exist; the
// final field is created when missing. It reports whether the write happened.
func Set(root any, p Path, value any) bool {
	last, ok := p.Last()
	if !ok {
		return false
	}
	parent, ok := Get(root, p.Parent())
	if !ok {
		return false
	}
	if last.isIndex {
		list, ok := parent.([]any)
		if !ok || last.index < 0 || last.index >= len(list) {
			return false
		}
		list[last.index] = value
		return true
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return false
	}
	m[last.name] = value
	return true
}

// Delete removes the field addressed by p. Index segments cannot be deleted.
func Delete(root any, p Path) bool {
	last, ok := p.Last()
	if !ok || last.isIndex {
		return false
	}
	parent, ok := Get(root, p.Parent())
	if !ok {
		return false
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return false
	}
	if _, exists := m[last.name]; !exists {
		return false
	}
	delete(m, last.name)
	return true
}

// WalkFunc is called for every node reachable from the root, including the
// root itself at the empty path.
type WalkFunc func(p Path, value any)

// Walk visits nodes depth-first. Object fields are visited in sorted key order
// so that traversal is deterministic.
func Walk(root any, fn WalkFunc) {
	walk(root, nil, fn)
}

func walk(node any, p Path, fn WalkFunc) {
	fn(p, node)
	switch v := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(v[k], p.Append(Field(k)), fn)
		}
	case []any:
		for i, item := range v {
			walk(item, p.Append(Index(i)), fn)
		}
	}
}

// Paths lists every path reachable from root in Walk order.
func Paths(root any) []Path {
	var out []Path
	Walk(root, func(p Path, _ any) { out = append(out, p) })
	return out
}

// Clone deep-copies maps and slices; other values are shared.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	default:
		return v
	}
}

// IsNull reports nil interfaces and typed nils.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map:
		return rv.IsNil()
	default:
		return false
	}
}
