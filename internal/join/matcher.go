package join

import (
	"fmt"

	tree "github.com/hanpama/mergelink/internal/tree"
)

// PathMatcher decides whether a path found in a response tree is a join site
// for a key path. On a match it also returns the anchor: the path of the node
// that owns the matched key, which the merge treats as the entity when matching
// primary keys.
type PathMatcher interface {
	Match(candidate, key tree.Path) (anchor tree.Path, ok bool)
}

type positionalMatcher struct{}

type containmentMatcher struct{}

func (positionalMatcher) Match(candidate, key tree.Path) (tree.Path, bool) {
	return matchPositional(candidate, key)
}

func (containmentMatcher) Match(candidate, key tree.Path) (tree.Path, bool) {
	return matchContainment(candidate, key)
}

var (
	// Positional accepts a candidate whose field segments, with array indices
	// ignored, end with the key path segment for segment. The anchor is the
	// candidate cut just before the matched segments. Match alone is a suffix
	// test, so a relative key path matches at any depth; Merge additionally
	// requires a root-level anchor for rooted foreign keys and for primary
	// keys, which pins those to their own location.
	Positional PathMatcher = positionalMatcher{}

	// Containment accepts a candidate containing every segment of the key path
	// anywhere, in any order. The anchor is the candidate's parent.
	Containment PathMatcher = containmentMatcher{}
)

// MatcherByName resolves "positional" or "containment".
func MatcherByName(name string) (PathMatcher, error) {
	switch name {
	case "", "positional":
		return Positional, nil
	case "containment":
		return Containment, nil
	default:
		return nil, fmt.Errorf("unknown path matcher %q", name)
	}
}

func matchPositional(candidate, key tree.Path) (tree.Path, bool) {
	want := key.FieldNames()
	if len(want) == 0 {
		return nil, false
	}
	if last, ok := candidate.Last(); !ok || last.IsIndex() {
		return nil, false
	}
	i := len(candidate) - 1
	for j := len(want) - 1; j >= 0; j-- {
		for i >= 0 && candidate[i].IsIndex() {
			i--
		}
		if i < 0 || candidate[i].Name() != want[j] {
			return nil, false
		}
		i--
	}
	return candidate[: i+1 : i+1], true
}

func matchContainment(candidate, key tree.Path) (tree.Path, bool) {
	if len(key) == 0 {
		return nil, false
	}
	if last, ok := candidate.Last(); !ok || last.IsIndex() {
		return nil, false
	}
	have := make(map[tree.Segment]bool, len(candidate))
	for _, s := range candidate {
		have[s] = true
	}
	for _, s := range key {
		if !have[s] {
			return nil, false
		}
	}
	return candidate.Parent(), true
}

// rooted reports whether anchor addresses the data root or an element of a
// root-level list.
func rooted(anchor tree.Path) bool {
	for _, s := range anchor {
		if !s.IsIndex() {
			return false
		}
	}
	return true
}
