package join

import (
	language "github.com/hanpama/mergelink/internal/language"
	tree "github.com/hanpama/mergelink/internal/tree"
)

// fieldStack is the chain of fields the walker descended through, starting at
// a root field of an operation.
type fieldStack []*language.Field

func (s fieldStack) push(f *language.Field) fieldStack {
	out := make(fieldStack, len(s), len(s)+1)
	copy(out, s)
	return append(out, f)
}

// host is the field owning a directive seen at the top of s.
func (s fieldStack) host() *language.Field {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

// path returns the absolute field path of the host: one field segment per
// field on the stack. Fragments never appear on the stack, so the result can
// be replayed against a response tree.
func (s fieldStack) path() tree.Path {
	p := make(tree.Path, len(s))
	for i, f := range s {
		p[i] = tree.Field(language.ResponseName(f))
	}
	return p
}

type visitFunc func(stack fieldStack, d *language.Directive) error

// walker visits every directive attached to a field, following inline
// fragments and fragment spreads. A spread already being expanded further up
// is skipped so cyclic fragments terminate.
type walker struct {
	doc    *language.QueryDocument
	visit  visitFunc
	active map[string]bool
}

func walkDirectives(doc *language.QueryDocument, ops language.OperationList, visit visitFunc) error {
	w := &walker{doc: doc, visit: visit, active: map[string]bool{}}
	for _, op := range ops {
		if err := w.selectionSet(op.SelectionSet, nil); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) selectionSet(set language.SelectionSet, stack fieldStack) error {
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			inner := stack.push(s)
			for _, d := range s.Directives {
				if err := w.visit(inner, d); err != nil {
					return err
				}
			}
			if err := w.selectionSet(s.SelectionSet, inner); err != nil {
				return err
			}
		case *language.InlineFragment:
			if err := w.selectionSet(s.SelectionSet, stack); err != nil {
				return err
			}
		case *language.FragmentSpread:
			def := w.doc.Fragments.ForName(s.Name)
			if def == nil || w.active[s.Name] {
				continue
			}
			w.active[s.Name] = true
			err := w.selectionSet(def.SelectionSet, stack)
			delete(w.active, s.Name)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// relativePath expresses p relative to base. When base is a prefix of p it is
// cut off; otherwise every segment of p that also occurs in base is dropped.
func relativePath(p, base tree.Path) tree.Path {
	if len(base) <= len(p) && p[:len(base)].Equal(base) {
		return p.Append()[len(base):]
	}
	seen := make(map[tree.Segment]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	var out tree.Path
	for _, s := range p {
		if !seen[s] {
			out = append(out, s)
		}
	}
	return out
}
