package language

// Rewrite describes how CopyDocument and CopySelectionSet transform selections.
// RemoveFields drops every field that carries one of the named directives,
// together with its subtree. StripDirectives removes the named directives but
// keeps the field.
type Rewrite struct {
	RemoveFields    []string
	StripDirectives []string
}

func (r Rewrite) removes(dirs DirectiveList) bool {
	for _, name := range r.RemoveFields {
		if dirs.ForName(name) != nil {
			return true
		}
	}
	return false
}

func (r Rewrite) strip(dirs DirectiveList) DirectiveList {
	if len(dirs) == 0 || len(r.StripDirectives) == 0 {
		return dirs
	}
	out := make(DirectiveList, 0, len(dirs))
	for _, d := range dirs {
		if !contains(r.StripDirectives, d.Name) {
			out = append(out, d)
		}
	}
	return out
}

// CopySelectionSet returns a copy of set with r applied. Nodes of the input are
// never modified.
func CopySelectionSet(set SelectionSet, r Rewrite) SelectionSet {
	if set == nil {
		return nil
	}
	out := make(SelectionSet, 0, len(set))
	for _, sel := range set {
		switch s := sel.(type) {
		case *Field:
			if r.removes(s.Directives) {
				continue
			}
			cp := *s
			cp.Directives = r.strip(s.Directives)
			cp.SelectionSet = CopySelectionSet(s.SelectionSet, r)
			out = append(out, &cp)
		case *InlineFragment:
			if r.removes(s.Directives) {
				continue
			}
			cp := *s
			cp.Directives = r.strip(s.Directives)
			cp.SelectionSet = CopySelectionSet(s.SelectionSet, r)
			out = append(out, &cp)
		case *FragmentSpread:
			if r.removes(s.Directives) {
				continue
			}
			cp := *s
			cp.Directives = r.strip(s.Directives)
			out = append(out, &cp)
		}
	}
	return out
}

// CopyDocument returns a copy of doc with r applied to every operation and
// fragment definition.
func CopyDocument(doc *QueryDocument, r Rewrite) *QueryDocument {
	out := &QueryDocument{Position: doc.Position}
	for _, op := range doc.Operations {
		cp := *op
		cp.Directives = r.strip(op.Directives)
		cp.SelectionSet = CopySelectionSet(op.SelectionSet, r)
		out.Operations = append(out.Operations, &cp)
	}
	for _, frag := range doc.Fragments {
		cp := *frag
		cp.Directives = r.strip(frag.Directives)
		cp.SelectionSet = CopySelectionSet(frag.SelectionSet, r)
		out.Fragments = append(out.Fragments, &cp)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
