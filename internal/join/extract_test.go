package join

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	language "github.com/hanpama/mergelink/internal/language"
	tree "github.com/hanpama/mergelink/internal/tree"
)

func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

const usersQuery = `query Users {
	users {
		id
		companyId @fk(field: "company")
		company @external(api: "companies", table: "companies", args: "ids: $fk") {
			id @pk(field: "company")
			name
		}
	}
}`

func TestExtractTriple(t *testing.T) {
	reqs, err := Extract(mustParseQuery(t, usersQuery))
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	r := reqs[0]
	require.Equal(t, "company", r.Name)
	require.Equal(t, "companies", r.Source)
	require.Equal(t, "companies", r.Table)
	require.Equal(t, "ids: $fk", r.FilterArgs)
	require.True(t, r.InsertionPath.Equal(tree.Fields("users", "company")))
	require.True(t, r.ForeignKey.Path.Equal(tree.Fields("users", "companyId")))
	require.True(t, r.ForeignKey.Rooted)
	require.Equal(t, "id", r.PrimaryKey.Name)
	require.True(t, r.PrimaryKey.Path.Equal(tree.Fields("id")))
	require.Len(t, r.SelectionSet, 2)
	require.Equal(t, "companyQuery", r.OperationName())
}

func TestExtractOrderIndependent(t *testing.T) {
	// @fk may precede or follow @external in document order.
	doc := mustParseQuery(t, `{
		orders {
			customer @external(source: "crm", table: "customers") { id @pk(field: "customer") email }
			customerId @fk(field: "customer")
		}
	}`)
	reqs, err := Extract(doc)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Equal(t, "crm", reqs[0].Source)
	require.Equal(t, "id", reqs[0].PrimaryKey.Name)
	require.True(t, reqs[0].PrimaryKey.Path.Equal(tree.Fields("id")))
}

func TestExtractUnknownJoin(t *testing.T) {
	for name, q := range map[string]string{
		"fk": `{ users { companyId @fk(field: "company") } }`,
		"pk": `{ users { company { id @pk(field: "company") } } }`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(mustParseQuery(t, q))
			require.ErrorIs(t, err, ErrUnknownJoin)
		})
	}
}

func TestExtractIncompleteJoin(t *testing.T) {
	_, err := Extract(mustParseQuery(t, `{
		users { company @external(api: "c", table: "companies") { id @pk(field: "company") } }
	}`))
	require.ErrorIs(t, err, ErrIncompleteJoin)
	require.Contains(t, err.Error(), "@fk")

	_, err = Extract(mustParseQuery(t, `{
		users { companyId @fk(field: "company") company @external(api: "c", table: "companies") { id } }
	}`))
	require.ErrorIs(t, err, ErrIncompleteJoin)
	require.Contains(t, err.Error(), "@pk")
}

func TestExtractInvalidDirective(t *testing.T) {
	for name, q := range map[string]string{
		"external without table": `{ a @external(api: "x") { id } }`,
		"external on a leaf":     `{ aId @fk(field: "a") a @external(api: "x", table: "t") }`,
		"fk without field":       `{ a @fk }`,
		"non-string field":       `{ a @pk(field: 3) }`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(mustParseQuery(t, q))
			require.ErrorIs(t, err, ErrInvalidDirective)
		})
	}
}

func TestExtractNoDirectives(t *testing.T) {
	reqs, err := Extract(mustParseQuery(t, `{ users { id @include(if: true) name } }`))
	require.NoError(t, err)
	require.Empty(t, reqs)
}

func TestExtractMultipleJoinsKeepOrder(t *testing.T) {
	doc := mustParseQuery(t, `{
		posts {
			authorId @fk(field: "author")
			author @external(api: "users", table: "users") { id @pk(field: "author") }
			tagIds @fk(field: "tags")
			tags @external(api: "tags", table: "tags") { id @pk(field: "tags") label }
		}
	}`)
	reqs, err := Extract(doc)
	require.NoError(t, err)
	var names []string
	for _, r := range reqs {
		names = append(names, r.Name)
	}
	if diff := cmp.Diff([]string{"author", "tags"}, names); diff != "" {
		t.Fatalf("join order mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectFollowsFragmentsAndAliases(t *testing.T) {
	doc := mustParseQuery(t, `
		query { staff: users { ...U ... on User { boss @external(api: "u", table: "users") { id @pk(field: "boss") } } } }
		fragment U on User { bossId @fk(field: "boss") ...Loop }
		fragment Loop on User { ...U }
	`)
	occs, err := Collect(doc)
	require.NoError(t, err)

	var got []string
	for _, o := range occs {
		got = append(got, string(o.Kind)+":"+o.HostPath.String())
	}
	want := []string{"fk:staff.bossId", "external:staff.boss", "pk:staff.boss.id"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("occurrences mismatch (-want +got):\n%s", diff)
	}
}

func TestRelativePath(t *testing.T) {
	require.True(t, relativePath(tree.Fields("a", "b", "c"), tree.Fields("a", "b")).Equal(tree.Fields("c")))
	// Not nested under the base: drop shared segments.
	require.True(t, relativePath(tree.Fields("x", "b", "c"), tree.Fields("a", "b")).Equal(tree.Fields("x", "c")))
}
