package join

import (
	"fmt"

	language "github.com/hanpama/mergelink/internal/language"
)

// Extract returns one Request per join declared in doc, in the order their
// @external directives appear.
//
// Extraction runs in two passes. The first collects every join directive
// occurrence; the second groups them by join name and validates that each
// join is complete. The position of @fk and @pk relative to @external in the
// document does not matter.
func Extract(doc *language.QueryDocument) ([]*Request, error) {
	occs, err := Collect(doc)
	if err != nil {
		return nil, err
	}
	return group(occs)
}

// Collect walks every operation of doc and returns its join directive
// occurrences in document order. Other directives are ignored.
func Collect(doc *language.QueryDocument) ([]Occurrence, error) {
	var out []Occurrence
	err := walkDirectives(doc, doc.Operations, func(stack fieldStack, d *language.Directive) error {
		occ, ok, err := newOccurrence(stack, d)
		if err != nil || !ok {
			return err
		}
		out = append(out, occ)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func newOccurrence(stack fieldStack, d *language.Directive) (Occurrence, bool, error) {
	var kind Kind
	switch d.Name {
	case DirectiveExternal:
		kind = KindExternal
	case DirectiveFK:
		kind = KindFK
	case DirectivePK:
		kind = KindPK
	default:
		return Occurrence{}, false, nil
	}

	hostField := stack.host()
	occ := Occurrence{
		Kind:         kind,
		HostField:    language.ResponseName(hostField),
		HostPath:     stack.path(),
		Args:         stringArgs(d),
		SelectionSet: hostField.SelectionSet,
		Position:     d.Position,
	}

	switch kind {
	case KindExternal:
		occ.Join = occ.HostField
		if occ.Args["source"] == "" {
			occ.Args["source"] = occ.Args["api"]
		}
		if occ.Args["source"] == "" || occ.Args["table"] == "" {
			return Occurrence{}, false, directiveError(occ, `requires string arguments "api" and "table"`)
		}
		if len(occ.SelectionSet) == 0 {
			return Occurrence{}, false, directiveError(occ, "requires a selection set")
		}
	default:
		occ.Join = occ.Args["field"]
		if occ.Join == "" {
			return Occurrence{}, false, directiveError(occ, `requires string argument "field"`)
		}
	}
	return occ, true, nil
}

func stringArgs(d *language.Directive) map[string]string {
	out := make(map[string]string, len(d.Arguments))
	for _, arg := range d.Arguments {
		if v, ok := language.ArgumentString(d, arg.Name); ok {
			out[arg.Name] = v
		}
	}
	return out
}

func directiveError(occ Occurrence, msg string) error {
	return fmt.Errorf("%w: @%s on %s %s", ErrInvalidDirective, occ.Kind, occ.HostPath, msg)
}

func group(occs []Occurrence) ([]*Request, error) {
	byName := map[string]*Request{}
	var order []*Request

	for _, occ := range occs {
		if occ.Kind != KindExternal {
			continue
		}
		r := byName[occ.Join]
		if r == nil {
			r = &Request{Name: occ.Join}
			byName[occ.Join] = r
			order = append(order, r)
		}
		r.Source = occ.Args["source"]
		r.Table = occ.Args["table"]
		r.SelectionSet = occ.SelectionSet
		r.InsertionPath = occ.HostPath
		r.FilterArgs = occ.Args["args"]
	}

	for _, occ := range occs {
		if occ.Kind == KindExternal {
			continue
		}
		r := byName[occ.Join]
		if r == nil {
			return nil, fmt.Errorf("%w: @%s on %s references %q", ErrUnknownJoin, occ.Kind, occ.HostPath, occ.Join)
		}
		switch occ.Kind {
		case KindFK:
			r.ForeignKey = ForeignKey{Path: occ.HostPath, Rooted: true}
		case KindPK:
			r.PrimaryKey = PrimaryKey{Name: occ.HostField, Path: relativePath(occ.HostPath, r.InsertionPath)}
		}
	}

	for _, r := range order {
		if !r.complete() {
			missing := "@fk"
			if len(r.ForeignKey.Path) > 0 {
				missing = "@pk"
			}
			return nil, fmt.Errorf("%w: %q has no %s", ErrIncompleteJoin, r.Name, missing)
		}
	}
	return order, nil
}
