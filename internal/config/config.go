// Package config loads the gateway configuration from YAML and turns it into
// the runtime pieces the server needs.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	join "github.com/hanpama/mergelink/internal/join"
	source "github.com/hanpama/mergelink/internal/source"
)

// Config is the root of the YAML document.
type Config struct {
	Server  ServerConfig            `yaml:"server"`
	Sources map[string]SourceConfig `yaml:"sources"`
	Join    JoinConfig              `yaml:"join"`
	Log     LogConfig               `yaml:"log"`
	Otel    OtelConfig              `yaml:"otel"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	Path           string        `yaml:"path"`
	MetricsPath    string        `yaml:"metrics_path"`
	Pretty         bool          `yaml:"pretty"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	ForwardHeaders []string      `yaml:"forward_headers"`
	CORSOrigins    []string      `yaml:"cors_origins"`
}

// SourceConfig describes one GraphQL backend. The source named "default"
// receives the primary query.
type SourceConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

type JoinConfig struct {
	// Matcher is "positional" (default) or "containment".
	Matcher string `yaml:"matcher"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type OtelConfig struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

// Default returns a configuration with every optional field filled in.
// It has no sources, so it does not validate on its own.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			Path:        "/graphql",
			MetricsPath: "/metrics",
			Timeout:     10 * time.Second,
		},
		Sources: map[string]SourceConfig{},
		Join:    JoinConfig{Matcher: "positional"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Otel:    OtelConfig{Service: "mergelink"},
	}
}

// Load reads path and decodes it over Default. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over Default without validating it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Sources == nil {
		cfg.Sources = map[string]SourceConfig{}
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path %q must start with /", c.Server.Path)
	}
	if c.Server.MetricsPath != "" && !strings.HasPrefix(c.Server.MetricsPath, "/") {
		return fmt.Errorf("server.metrics_path %q must start with /", c.Server.MetricsPath)
	}
	if c.Server.MetricsPath == c.Server.Path {
		return errors.New("server.metrics_path must differ from server.path")
	}
	if _, ok := c.Sources[source.DefaultName]; !ok {
		return fmt.Errorf("sources.%s is required", source.DefaultName)
	}
	for name, s := range c.Sources {
		if name == "" {
			return errors.New("source name cannot be empty")
		}
		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("sources.%s.url %q must be an absolute http(s) URL", name, s.URL)
		}
		if s.Timeout < 0 {
			return fmt.Errorf("sources.%s.timeout must not be negative", name)
		}
	}
	if _, err := join.MatcherByName(c.Join.Matcher); err != nil {
		return fmt.Errorf("join.matcher: %w", err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// SetSource adds or replaces a source given as name=url, the form used on the
// command line.
func (c *Config) SetSource(v string) error {
	name, u, ok := strings.Cut(v, "=")
	if !ok || name == "" || u == "" {
		return fmt.Errorf("source %q: want name=url", v)
	}
	s := c.Sources[name]
	s.URL = u
	c.Sources[name] = s
	return nil
}

// Registry builds an HTTP source for every configured backend.
func (c *Config) Registry() *source.Registry {
	m := make(map[string]source.Source, len(c.Sources))
	for name, s := range c.Sources {
		var opts []source.Option
		if s.Timeout > 0 {
			opts = append(opts, source.WithTimeout(s.Timeout))
		}
		for k, v := range s.Headers {
			opts = append(opts, source.WithHeader(k, v))
		}
		m[name] = source.NewHTTP(name, s.URL, opts...)
	}
	return source.NewRegistry(m)
}

// Matcher returns the configured join path matcher.
func (c *Config) Matcher() (join.PathMatcher, error) {
	return join.MatcherByName(c.Join.Matcher)
}

// Logger builds the slog logger described by the log section.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}
