package language

import (
	"bytes"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Format prints doc as GraphQL source text.
func Format(doc *QueryDocument) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(doc)
	return buf.String()
}

// SelectOperation returns the operation selected by name, or the only operation when
// name is empty.
func SelectOperation(doc *QueryDocument, name string) *OperationDefinition {
	if name == "" && len(doc.Operations) == 1 {
		return doc.Operations[0]
	}
	return doc.Operations.ForName(name)
}

// ArgumentString returns the raw text of the named argument if it is a string
// (or block string) literal.
func ArgumentString(d *Directive, name string) (string, bool) {
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return "", false
	}
	if arg.Value.Kind != StringValue && arg.Value.Kind != BlockValue {
		return "", false
	}
	return arg.Value.Raw, true
}
