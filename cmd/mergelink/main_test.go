package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHelp(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"help"}, &out, &out))
	require.Contains(t, out.String(), "COMMANDS:")

	out.Reset()
	require.NoError(t, run([]string{"help", "serve"}, &out, &out))
	require.Contains(t, out.String(), "-source <name=url>")

	out.Reset()
	require.NoError(t, run([]string{"help", "plan"}, &out, &out))
	require.Contains(t, out.String(), "-query <file>")

	require.Error(t, run([]string{"help", "nope"}, &out, &out))
}

func TestUnknownAndMissingCommand(t *testing.T) {
	var stderr bytes.Buffer
	require.Error(t, run(nil, &bytes.Buffer{}, &stderr))
	require.Contains(t, stderr.String(), "USAGE:")

	require.ErrorContains(t, run([]string{"frobnicate"}, &bytes.Buffer{}, &bytes.Buffer{}), "unknown command")
}

const federated = `query Users {
	users {
		id
		companyId @fk(field: "company")
		company @external(api: "companies", table: "companies", args: "ids: $fk") {
			id @pk(field: "company")
			name
		}
	}
}`

func TestPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "q.graphql")
	require.NoError(t, os.WriteFile(path, []byte(federated), 0o600))

	var stdout bytes.Buffer
	require.NoError(t, run([]string{"plan", "-query", path}, &stdout, &bytes.Buffer{}))

	var got struct {
		Primary string `json:"primary"`
		Joins   []struct {
			Name          string `json:"name"`
			Source        string `json:"source"`
			Table         string `json:"table"`
			InsertionPath []any  `json:"insertionPath"`
			ForeignKey    []any  `json:"foreignKey"`
			PrimaryKey    string `json:"primaryKey"`
			Query         string `json:"query"`
		} `json:"joins"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))

	require.Contains(t, got.Primary, "companyId")
	require.NotContains(t, got.Primary, "@fk")
	require.NotContains(t, got.Primary, "company {")
	require.Len(t, got.Joins, 1)
	j := got.Joins[0]
	require.Equal(t, "company", j.Name)
	require.Equal(t, "companies", j.Source)
	require.Equal(t, []any{"users", "company"}, j.InsertionPath)
	require.Equal(t, []any{"users", "companyId"}, j.ForeignKey)
	require.Equal(t, "id", j.PrimaryKey)
	require.True(t, strings.Contains(j.Query, "companyQuery"), j.Query)
	require.NotContains(t, j.Query, "@pk")
}

func TestPlanErrors(t *testing.T) {
	require.ErrorContains(t, run([]string{"plan"}, &bytes.Buffer{}, &bytes.Buffer{}), "-query is required")

	path := filepath.Join(t.TempDir(), "bad.graphql")
	require.NoError(t, os.WriteFile(path, []byte(`{ a @fk(field: "x") }`), 0o600))
	require.ErrorContains(t, run([]string{"plan", "-query", path}, &bytes.Buffer{}, &bytes.Buffer{}), "unknown join")
}

func TestServeConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergelink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7000"
sources:
  default:
    url: http://primary/graphql
`), 0o600))

	cfg, err := serveConfig([]string{
		"-config", path,
		"-server.timeout", "2s",
		"-source", "companies=http://companies/graphql",
		"-join.matcher", "containment",
	})
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.Server.Addr)
	require.Equal(t, 2*time.Second, cfg.Server.Timeout)
	require.Equal(t, "http://companies/graphql", cfg.Sources["companies"].URL)
	require.Equal(t, "containment", cfg.Join.Matcher)

	_, err = serveConfig([]string{"-source", "companies=http://companies/graphql"})
	require.ErrorContains(t, err, "sources.default")

	_, err = serveConfig([]string{"-source", "broken"})
	require.Error(t, err)
}
