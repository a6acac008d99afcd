package join

import (
	language "github.com/hanpama/mergelink/internal/language"
	tree "github.com/hanpama/mergelink/internal/tree"
)

// Directive names understood by the extractor.
const (
	DirectiveExternal = "external"
	DirectiveFK       = "fk"
	DirectivePK       = "pk"
)

// Kind classifies a join directive occurrence.
type Kind string

const (
	KindExternal Kind = DirectiveExternal
	KindFK       Kind = DirectiveFK
	KindPK       Kind = DirectivePK
)

// ForeignKey locates join keys in the primary response.
type ForeignKey struct {
	Path tree.Path
	// Rooted marks Path as starting at a root field of the operation, so only
	// that exact location (list indices aside) holds join keys. Paths found by
	// Extract are always rooted.
	Rooted bool
}

// PrimaryKey identifies entities in a secondary response. Path is relative to
// the external field's selection.
type PrimaryKey struct {
	Name string
	Path tree.Path
}

// Request is one external join, accumulated from every directive that shares
// its name.
type Request struct {
	Name   string
	Source string
	Table  string
	// SelectionSet is the external field's selection, reused verbatim under
	// Table in the secondary query.
	SelectionSet language.SelectionSet
	// InsertionPath is the external field's path in the primary query. Its
	// final segment names the field the joined entity is written to.
	InsertionPath tree.Path
	// FilterArgs is an optional argument template containing $fk.
	FilterArgs string
	ForeignKey ForeignKey
	PrimaryKey PrimaryKey
}

// OperationName is the name given to the secondary query of r.
func (r *Request) OperationName() string { return r.Name + "Query" }

func (r *Request) complete() bool {
	return r.Source != "" && r.Table != "" && len(r.SelectionSet) > 0 &&
		len(r.ForeignKey.Path) > 0 && r.PrimaryKey.Name != ""
}

// Occurrence is a single join directive found while walking a document.
type Occurrence struct {
	Kind Kind
	// Join is the join name: the host field for @external, the "field"
	// argument for @fk and @pk.
	Join string
	// HostField is the response name of the annotated field.
	HostField string
	// HostPath is the chain of response names from the root field down to the
	// annotated field.
	HostPath     tree.Path
	Args         map[string]string
	SelectionSet language.SelectionSet
	Position     *language.Position
}
