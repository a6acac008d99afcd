package join

import (
	"reflect"

	language "github.com/hanpama/mergelink/internal/language"
	tree "github.com/hanpama/mergelink/internal/tree"
)

// MergeResult is the primary response with every join site replaced.
type MergeResult struct {
	Data map[string]any
	// Unresolved lists the sites whose key matched no entity. They hold null.
	Unresolved []tree.Path
	// Errors are the GraphQL errors reported by secondary sources.
	Errors language.ErrorList
}

type mergeOptions struct {
	matcher PathMatcher
}

type MergeOption func(*mergeOptions)

// WithMatcher selects how key paths are matched against response paths.
// The default is Positional.
func WithMatcher(m PathMatcher) MergeOption {
	return func(o *mergeOptions) {
		if m != nil {
			o.matcher = m
		}
	}
}

// Merge splices the entities of every result into a copy of primary. primary
// is not modified.
//
// For each result, every field of primary accepted by the matcher against the
// foreign-key path is a join site; a rooted foreign key under Positional only
// matches its own location. The site's key is looked up among the
// result's entities by primary key; the key field is then removed and the
// entity written next to it under the final segment of the insertion path. A
// key without a matching entity writes null and is reported as unresolved; a
// null key writes null. List-valued keys resolve element by element.
func Merge(primary map[string]any, results []*Result, opts ...MergeOption) *MergeResult {
	o := mergeOptions{matcher: Positional}
	for _, f := range opts {
		f(&o)
	}
	out := &MergeResult{}
	if primary == nil {
		return out
	}
	out.Data = tree.Clone(primary).(map[string]any)
	paths := tree.Paths(primary)

	for _, res := range results {
		if res == nil {
			continue
		}
		out.Errors = append(out.Errors, res.Errors...)
		target, ok := res.InsertionPath.Last()
		if !ok || target.IsIndex() {
			continue
		}
		idx := indexEntities(res, o.matcher)

		for _, p := range paths {
			if !o.isSite(p, res.ForeignKey) {
				continue
			}
			key, _ := tree.Get(primary, p)
			value, resolved := idx.resolve(key)

			dest := p.Parent().Append(target)
			tree.Delete(out.Data, p)
			tree.Set(out.Data, dest, value)
			if !resolved {
				out.Unresolved = append(out.Unresolved, dest)
			}
		}
	}
	return out
}

// isSite reports whether p holds a key of fk. A rooted key path matched
// positionally must cover p entirely, so a nested field that merely shares the
// key's trailing names is left alone.
func (o mergeOptions) isSite(p tree.Path, fk ForeignKey) bool {
	anchor, ok := o.matcher.Match(p, fk.Path)
	if !ok {
		return false
	}
	if _, positional := o.matcher.(positionalMatcher); positional && fk.Rooted {
		return rooted(anchor)
	}
	return true
}

type entity struct {
	key   any
	value any
}

type entityIndex []entity

// indexEntities lists the entities of res.Data in traversal order. An entity
// is the anchor node of a primary-key field accepted by the matcher.
func indexEntities(res *Result, m PathMatcher) entityIndex {
	var idx entityIndex
	tree.Walk(res.Data, func(p tree.Path, v any) {
		last, ok := p.Last()
		if !ok || last.IsIndex() || last.Name() != res.PrimaryKey.Name {
			return
		}
		anchor, ok := m.Match(p, res.PrimaryKey.Path)
		if !ok {
			return
		}
		if _, positional := m.(positionalMatcher); positional && !rooted(anchor) {
			return
		}
		node, ok := tree.Get(res.Data, anchor)
		if !ok {
			return
		}
		idx = append(idx, entity{key: v, value: node})
	})
	return idx
}

func (idx entityIndex) resolve(key any) (any, bool) {
	if tree.IsNull(key) {
		return nil, true
	}
	if keys, ok := key.([]any); ok {
		out := make([]any, len(keys))
		all := true
		for i, k := range keys {
			v, ok := idx.resolve(k)
			out[i] = v
			all = all && ok
		}
		return out, all
	}
	for _, e := range idx {
		if reflect.DeepEqual(e.key, key) {
			return tree.Clone(e.value), true
		}
	}
	return nil, false
}
