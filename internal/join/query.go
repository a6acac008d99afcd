package join

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	language "github.com/hanpama/mergelink/internal/language"
	source "github.com/hanpama/mergelink/internal/source"
	tree "github.com/hanpama/mergelink/internal/tree"
)

// Placeholder is replaced by the JSON-encoded foreign keys in filter arguments.
const Placeholder = "$fk"

// Result is the outcome of one secondary query.
type Result struct {
	Name          string
	InsertionPath tree.Path
	PrimaryKey    PrimaryKey
	ForeignKey    ForeignKey
	// Data is the value of the table field in the secondary response.
	Data   any
	Errors language.ErrorList
}

// RenderFilterArgs substitutes Placeholder in template with keys encoded as a
// JSON array and returns a parenthesized argument list.
//
//	RenderFilterArgs("(ids: $fk)", []any{1, 2}) == "(ids: [1,2])"
//	RenderFilterArgs("ids: $fk", []any{1, 2})   == "(ids: [1,2])"
func RenderFilterArgs(template string, keys []any) (string, error) {
	if keys == nil {
		keys = []any{}
	}
	enc, err := json.Marshal(keys)
	if err != nil {
		return "", fmt.Errorf("%w: encode keys: %v", ErrInvalidQuery, err)
	}
	s := strings.ReplaceAll(strings.TrimSpace(template), Placeholder, string(enc))
	if !strings.HasPrefix(s, "(") {
		s = "(" + s + ")"
	}
	return s, nil
}

// BuildQuery constructs the secondary query of r:
//
//	query <name>Query { <table>(<args>) { <selection> } }
//
// Filter arguments are rendered from the foreign keys found in primary. @pk
// annotations are stripped from the copied selection; r.SelectionSet itself is
// left untouched.
func BuildQuery(r *Request, primary map[string]any) (*language.QueryDocument, error) {
	args := ""
	if r.FilterArgs != "" {
		var err error
		args, err = RenderFilterArgs(r.FilterArgs, ForeignKeys(primary, r.ForeignKey.Path))
		if err != nil {
			return nil, err
		}
	}

	src := fmt.Sprintf("query %s { %s%s }", r.OperationName(), r.Table, args)
	doc, err := language.ParseQuery(src)
	if err != nil {
		return nil, fmt.Errorf("%w: join %q: %v", ErrInvalidQuery, r.Name, err)
	}
	field, ok := doc.Operations[0].SelectionSet[0].(*language.Field)
	if !ok {
		return nil, fmt.Errorf("%w: join %q: table is not a field", ErrInvalidQuery, r.Name)
	}
	field.SelectionSet = language.CopySelectionSet(r.SelectionSet, language.Rewrite{
		StripDirectives: []string{DirectivePK},
	})
	return doc, nil
}

// Fetch builds the secondary query of r and sends it to the source r names.
func Fetch(ctx context.Context, reg *source.Registry, r *Request, primary map[string]any) (*Result, error) {
	src, err := reg.Lookup(r.Source)
	if err != nil {
		return nil, fmt.Errorf("join %q: %w", r.Name, err)
	}
	doc, err := BuildQuery(r, primary)
	if err != nil {
		return nil, err
	}
	resp, err := src.Send(ctx, &source.Request{Document: doc, OperationName: r.OperationName()})
	if err != nil {
		return nil, fmt.Errorf("%w: join %q: %w", ErrSourceFailed, r.Name, err)
	}

	res := &Result{
		Name:          r.Name,
		InsertionPath: r.InsertionPath,
		PrimaryKey:    r.PrimaryKey,
		ForeignKey:    r.ForeignKey,
	}
	if resp == nil {
		return res, nil
	}
	data, ok := resp.Data[r.Table]
	if !ok && len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: join %q: %s", ErrSourceFailed, r.Name, resp.Errors.Error())
	}
	res.Data = data
	res.Errors = resp.Errors
	return res, nil
}

// FetchAll fetches every request concurrently. The first failure cancels the
// remaining requests and is returned; no partial results are produced.
func FetchAll(ctx context.Context, reg *source.Registry, reqs []*Request, primary map[string]any) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range reqs {
		i, r := i, r
		g.Go(func() error {
			res, err := Fetch(gctx, reg, r, primary)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
