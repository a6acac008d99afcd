package join

import (
	"encoding/json"
	"fmt"

	tree "github.com/hanpama/mergelink/internal/tree"
)

// ForeignKeys reads the values found along path in data. Arrays met on the way
// fan out: the rest of the path is applied to every element and the results are
// flattened. An array at the end of the path is flattened as well. Nulls and
// missing fields contribute nothing; duplicates are dropped, keeping first-seen
// order.
func ForeignKeys(data any, path tree.Path) []any {
	nodes := []any{data}
	for _, seg := range path {
		var next []any
		for _, n := range nodes {
			next = step(next, n, seg)
		}
		nodes = next
	}

	var flat []any
	for _, n := range nodes {
		if list, ok := n.([]any); ok {
			flat = append(flat, list...)
			continue
		}
		flat = append(flat, n)
	}
	return unique(flat)
}

func step(out []any, node any, seg tree.Segment) []any {
	switch v := node.(type) {
	case []any:
		if seg.IsIndex() {
			if p := seg.Pos(); p < len(v) {
				return append(out, v[p])
			}
			return out
		}
		for _, item := range v {
			out = step(out, item, seg)
		}
	case map[string]any:
		if seg.IsIndex() {
			return out
		}
		if child, ok := v[seg.Name()]; ok && !tree.IsNull(child) {
			out = append(out, child)
		}
	}
	return out
}

func unique(values []any) []any {
	seen := make(map[string]bool, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		if tree.IsNull(v) {
			continue
		}
		k := identity(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// identity keys a value by its JSON encoding, so 7 and json.Number("7")
// collapse the way they would on the wire.
func identity(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(b)
}
