package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	join "github.com/hanpama/mergelink/internal/join"
	source "github.com/hanpama/mergelink/internal/source"
)

const sample = `
server:
  addr: ":9000"
  pretty: true
  timeout: 3s
  forward_headers: [Authorization]
  cors_origins: ["*"]
sources:
  default:
    url: http://localhost:4001/graphql
  companies:
    url: https://companies.internal/graphql
    timeout: 500ms
    headers:
      X-Api-Key: secret
join:
  matcher: containment
log:
  level: debug
  format: json
`

func TestParseOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, ":9000", cfg.Server.Addr)
	require.Equal(t, "/graphql", cfg.Server.Path)
	require.Equal(t, "/metrics", cfg.Server.MetricsPath)
	require.Equal(t, 3*time.Second, cfg.Server.Timeout)
	require.Equal(t, []string{"Authorization"}, cfg.Server.ForwardHeaders)
	require.Equal(t, 500*time.Millisecond, cfg.Sources["companies"].Timeout)
	require.Equal(t, "secret", cfg.Sources["companies"].Headers["X-Api-Key"])
	require.Equal(t, "mergelink", cfg.Otel.Service)

	m, err := cfg.Matcher()
	require.NoError(t, err)
	require.Equal(t, join.Containment, m)

	require.Equal(t, []string{"companies", source.DefaultName}, cfg.Registry().Names())
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("server:\n  adr: \":1\"\n"))
	require.Error(t, err)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		require.NoError(t, cfg.SetSource("default=http://localhost:4001/graphql"))
		return cfg
	}
	require.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(*Config){
		"no default source": func(c *Config) { delete(c.Sources, source.DefaultName) },
		"relative url":      func(c *Config) { c.Sources["x"] = SourceConfig{URL: "/graphql"} },
		"bad scheme":        func(c *Config) { c.Sources["x"] = SourceConfig{URL: "ftp://host/"} },
		"negative timeout": func(c *Config) {
			c.Sources["x"] = SourceConfig{URL: "http://host/", Timeout: -time.Second}
		},
		"unknown matcher": func(c *Config) { c.Join.Matcher = "fuzzy" },
		"bad level":       func(c *Config) { c.Log.Level = "loud" },
		"bad format":      func(c *Config) { c.Log.Format = "xml" },
		"path":            func(c *Config) { c.Server.Path = "graphql" },
		"same paths":      func(c *Config) { c.Server.MetricsPath = c.Server.Path },
		"no addr":         func(c *Config) { c.Server.Addr = "" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestSetSource(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.NoError(t, cfg.SetSource("companies=http://other/graphql"))
	require.Equal(t, "http://other/graphql", cfg.Sources["companies"].URL)
	// existing settings survive an URL override
	require.Equal(t, 500*time.Millisecond, cfg.Sources["companies"].Timeout)

	require.Error(t, cfg.SetSource("companies"))
	require.Error(t, cfg.SetSource("=http://x"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergelink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Server.Pretty)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLogger(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	logger, err := cfg.Logger(&buf)
	require.NoError(t, err)
	logger.Debug("hello", "k", 1)
	require.Contains(t, buf.String(), `"msg":"hello"`)
}
