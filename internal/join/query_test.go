package join

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	language "github.com/hanpama/mergelink/internal/language"
	source "github.com/hanpama/mergelink/internal/source"
	tree "github.com/hanpama/mergelink/internal/tree"
)

func TestForeignKeysFanOut(t *testing.T) {
	data := map[string]any{"orders": []any{
		map[string]any{"customerId": 1},
		map[string]any{"customerId": 2},
		map[string]any{"customerId": 1},
	}}
	got := ForeignKeys(data, tree.Fields("orders", "customerId"))
	if diff := cmp.Diff([]any{1, 2}, got); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestForeignKeysNestedAndLists(t *testing.T) {
	data := map[string]any{"teams": []any{
		map[string]any{"members": []any{
			map[string]any{"tagIds": []any{"a", "b"}},
			map[string]any{"tagIds": nil},
		}},
		map[string]any{"members": []any{map[string]any{"tagIds": []any{"b", "c"}}}},
		map[string]any{},
	}}
	got := ForeignKeys(data, tree.Fields("teams", "members", "tagIds"))
	require.Equal(t, []any{"a", "b", "c"}, got)

	require.Empty(t, ForeignKeys(data, tree.Fields("missing", "x")))
	require.Equal(t, []any{}, ForeignKeys(nil, tree.Fields("a")))
}

func TestRenderFilterArgs(t *testing.T) {
	got, err := RenderFilterArgs("(ids: $fk)", []any{1, 2})
	require.NoError(t, err)
	require.Equal(t, "(ids: [1,2])", got)

	got, err = RenderFilterArgs("ids: $fk", []any{"a"})
	require.NoError(t, err)
	require.Equal(t, `(ids: ["a"])`, got)

	got, err = RenderFilterArgs("(ids: $fk)", nil)
	require.NoError(t, err)
	require.Equal(t, "(ids: [])", got)
}

func TestBuildQueryRoundTrip(t *testing.T) {
	doc := mustParseQuery(t, usersQuery)
	reqs, err := Extract(doc)
	require.NoError(t, err)
	r := reqs[0]

	primary := map[string]any{"users": []any{
		map[string]any{"id": 1, "companyId": 7},
		map[string]any{"id": 2, "companyId": 8},
	}}
	built, err := BuildQuery(r, primary)
	require.NoError(t, err)

	// Re-parse the printed document to check what goes over the wire.
	wire := mustParseQuery(t, language.Format(built))
	op := wire.Operations[0]
	require.Equal(t, "companyQuery", op.Name)
	require.Len(t, op.SelectionSet, 1)
	table := op.SelectionSet[0].(*language.Field)
	require.Equal(t, "companies", table.Name)
	require.Equal(t, "[7,8]", table.Arguments.ForName("ids").Value.String())

	var names []string
	for _, sel := range table.SelectionSet {
		f := sel.(*language.Field)
		require.Empty(t, f.Directives)
		names = append(names, f.Name)
	}
	var want []string
	for _, sel := range r.SelectionSet {
		want = append(want, sel.(*language.Field).Name)
	}
	require.Equal(t, want, names)

	// the request's own selection keeps its @pk
	require.NotNil(t, r.SelectionSet[0].(*language.Field).Directives.ForName(DirectivePK))
}

func TestBuildQueryWithoutArgs(t *testing.T) {
	r := &Request{Name: "tags", Table: "allTags", SelectionSet: mustParseQuery(t, `{ id label }`).Operations[0].SelectionSet}
	doc, err := BuildQuery(r, nil)
	require.NoError(t, err)
	table := doc.Operations[0].SelectionSet[0].(*language.Field)
	require.Empty(t, table.Arguments)
	require.Len(t, table.SelectionSet, 2)
}

func TestBuildQueryInvalidTemplate(t *testing.T) {
	r := &Request{Name: "x", Table: "t", FilterArgs: "ids: {{ $fk", ForeignKey: ForeignKey{Path: tree.Fields("a")}}
	_, err := BuildQuery(r, map[string]any{"a": 1})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestFetch(t *testing.T) {
	reqs, err := Extract(mustParseQuery(t, usersQuery))
	require.NoError(t, err)

	companies := source.NewMockData(map[string]any{"companies": []any{map[string]any{"id": 7, "name": "Acme"}}})
	reg := source.NewRegistry(map[string]source.Source{"companies": companies})

	res, err := Fetch(context.Background(), reg, reqs[0], map[string]any{"users": map[string]any{"companyId": 7}})
	require.NoError(t, err)
	require.Equal(t, "company", res.Name)
	require.Equal(t, []any{map[string]any{"id": 7, "name": "Acme"}}, res.Data)

	calls := companies.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "companyQuery", calls[0].OperationName)
	require.Contains(t, calls[0].Query, "[7]")
}

func TestFetchFailures(t *testing.T) {
	reqs, err := Extract(mustParseQuery(t, usersQuery))
	require.NoError(t, err)
	r := reqs[0]

	t.Run("unknown source", func(t *testing.T) {
		_, err := Fetch(context.Background(), source.NewRegistry(nil), r, nil)
		require.ErrorIs(t, err, source.ErrUnknownSource)
	})

	t.Run("transport", func(t *testing.T) {
		boom := errors.New("boom")
		reg := source.NewRegistry(map[string]source.Source{"companies": source.NewMockWithErrors(nil, []error{boom})})
		_, err := Fetch(context.Background(), reg, r, nil)
		require.ErrorIs(t, err, ErrSourceFailed)
		require.ErrorIs(t, err, boom)
	})

	t.Run("errors without data", func(t *testing.T) {
		resp := &source.Response{Errors: language.ErrorList{{Message: "denied"}}}
		reg := source.NewRegistry(map[string]source.Source{"companies": source.NewMock(resp)})
		_, err := Fetch(context.Background(), reg, r, nil)
		require.ErrorIs(t, err, ErrSourceFailed)
		require.Contains(t, err.Error(), "denied")
	})
}

func TestFetchAllAbortsOnFailure(t *testing.T) {
	doc := mustParseQuery(t, `{
		posts {
			authorId @fk(field: "author")
			author @external(api: "users", table: "users") { id @pk(field: "author") }
			tagIds @fk(field: "tags")
			tags @external(api: "tags", table: "tags") { id @pk(field: "tags") }
		}
	}`)
	reqs, err := Extract(doc)
	require.NoError(t, err)

	reg := source.NewRegistry(map[string]source.Source{
		"users": source.NewMockData(map[string]any{"users": []any{}}),
		"tags":  source.NewMockWithErrors(nil, []error{errors.New("tags down")}),
	})
	results, err := FetchAll(context.Background(), reg, reqs, map[string]any{})
	require.ErrorIs(t, err, ErrSourceFailed)
	require.Nil(t, results)

	reg = source.NewRegistry(map[string]source.Source{
		"users": source.NewMockData(map[string]any{"users": []any{}}),
		"tags":  source.NewMockData(map[string]any{"tags": []any{}}),
	})
	results, err = FetchAll(context.Background(), reg, reqs, map[string]any{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "author", results[0].Name)
	require.Equal(t, "tags", results[1].Name)
}
