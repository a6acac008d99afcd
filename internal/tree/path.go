// Package tree navigates decoded JSON response trees (map[string]any, []any and
// scalars) using typed paths whose segments are either field names or array
// indices.
package tree

import (
	"strconv"
	"strings"
)

// Segment is one step of a Path: a field name or an array index.
type Segment struct {
	name    string
	index   int
	isIndex bool
}

// Field returns a segment selecting the object field name.
func Field(name string) Segment { return Segment{name: name} }

// Index returns a segment selecting the i-th element of an array.
func Index(i int) Segment { return Segment{index: i, isIndex: true} }

func (s Segment) IsIndex() bool { return s.isIndex }

// Name returns the field name, or "" for index segments.
func (s Segment) Name() string { return s.name }

// Pos returns the array index, or -1 for field segments.
func (s Segment) Pos() int {
	if !s.isIndex {
		return -1
	}
	return s.index
}

func (s Segment) String() string {
	if s.isIndex {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return s.name
}

// MarshalJSON renders field segments as strings and indices as numbers, the
// shape GraphQL uses for error paths.
func (s Segment) MarshalJSON() ([]byte, error) {
	if s.isIndex {
		return []byte(strconv.Itoa(s.index)), nil
	}
	return []byte(strconv.Quote(s.name)), nil
}

// Path locates a node inside a tree.
type Path []Segment

// Fields builds a path made only of field segments.
func Fields(names ...string) Path {
	p := make(Path, len(names))
	for i, n := range names {
		p[i] = Field(n)
	}
	return p
}

// Append returns a copy of p extended with segs; p is never aliased.
func (p Path) Append(segs ...Segment) Path {
	out := make(Path, len(p), len(p)+len(segs))
	copy(out, p)
	return append(out, segs...)
}

// Parent returns p without its final segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1 : len(p)-1]
}

// Last returns the final segment and whether p is non-empty.
func (p Path) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

// FieldNames returns the names of the field segments, skipping indices.
func (p Path) FieldNames() []string {
	out := make([]string, 0, len(p))
	for _, s := range p {
		if !s.isIndex {
			out = append(out, s.name)
		}
	}
	return out
}

// Equal reports whether p and o have identical segments.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 && !s.isIndex {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}
