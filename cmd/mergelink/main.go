package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanpama/mergelink/internal/config"
	"github.com/hanpama/mergelink/internal/eventbus"
	"github.com/hanpama/mergelink/internal/join"
	"github.com/hanpama/mergelink/internal/language"
	"github.com/hanpama/mergelink/internal/metrics"
	"github.com/hanpama/mergelink/internal/otel"
	"github.com/hanpama/mergelink/internal/server"
	"github.com/hanpama/mergelink/internal/tree"
)

const rootUsage = `mergelink - GraphQL gateway joining results across sources

USAGE:
  mergelink <command> [flags]

COMMANDS:
  serve            Run the HTTP GraphQL gateway
  plan             Print the primary query and joins of a federated query
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -config <file>                 YAML configuration file
  -server.addr <addr>            HTTP listen address (default: :8080)
  -server.pretty                 Pretty-print JSON responses
  -server.timeout <duration>     Per-request timeout, e.g. 10s (default: 10s)
  -server.forward-header <name>  Forward HTTP header to every source. Repeatable
  -source <name=url>             Map a source name to a GraphQL endpoint. Repeatable;
                                 a "default" source is required:
                                   -source default=http://localhost:4001/graphql
  -join.matcher <name>           Key path matching: positional or containment
                                 (default: positional)
  -log.level <level>             debug, info, warn or error (default: info)
  -log.format <format>           text or json (default: text)
  -otel.endpoint <addr>          OTLP collector endpoint
  -otel.service <name>           OpenTelemetry service name (default: mergelink)
Flags override values read from -config.
`

const planUsage = `plan FLAGS:
  -query <file>        Federated query document, - for stdin (required)
  -operation <name>    Operation to plan when the document has several
`

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("mergelink", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs, stderr)
	case "plan":
		return cmdPlan(cmdArgs, stdout, stderr)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "plan":
		fmt.Fprint(stdout, planUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// serveConfig parses serve flags and layers them over the config file.
func serveConfig(args []string) (*config.Config, error) {
	var (
		configPath     string
		addr           string
		pretty         bool
		timeout        time.Duration
		forwardHeaders stringListFlag
		sources        stringListFlag
		matcher        string
		logLevel       string
		logFormat      string
		otelEndpoint   string
		otelService    string
	)
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.StringVar(&addr, "server.addr", "", "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", false, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", 0, "Per-request timeout")
	fs.Var(&forwardHeaders, "server.forward-header", "Forward HTTP header to sources")
	fs.Var(&sources, "source", "Map source name to endpoint")
	fs.StringVar(&matcher, "join.matcher", "", "Key path matcher")
	fs.StringVar(&logLevel, "log.level", "", "Log level")
	fs.StringVar(&logFormat, "log.format", "", "Log format")
	fs.StringVar(&otelEndpoint, "otel.endpoint", "", "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", "", "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server.addr":
			cfg.Server.Addr = addr
		case "server.pretty":
			cfg.Server.Pretty = pretty
		case "server.timeout":
			cfg.Server.Timeout = timeout
		case "server.forward-header":
			cfg.Server.ForwardHeaders = append(cfg.Server.ForwardHeaders, forwardHeaders...)
		case "source":
			for _, s := range sources {
				if serr := cfg.SetSource(s); serr != nil && err == nil {
					err = serr
				}
			}
		case "join.matcher":
			cfg.Join.Matcher = matcher
		case "log.level":
			cfg.Log.Level = logLevel
		case "log.format":
			cfg.Log.Format = logFormat
		case "otel.endpoint":
			cfg.Otel.Endpoint = otelEndpoint
		case "otel.service":
			cfg.Otel.Service = otelService
		}
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func cmdServe(args []string, stderr io.Writer) error {
	cfg, err := serveConfig(args)
	if err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}

	logger, err := cfg.Logger(stderr)
	if err != nil {
		return err
	}
	matcher, err := cfg.Matcher()
	if err != nil {
		return err
	}

	bus := eventbus.New()
	eventbus.Use(bus)
	shutdown, err := otel.Setup(cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()
	m := metrics.New()
	defer m.Register(bus)()

	registry := cfg.Registry()
	engine := join.NewEngine(registry, join.WithPathMatcher(matcher), join.WithLogger(logger))

	sopts := []server.Option{server.WithLogger(logger)}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if cfg.Server.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.Server.Timeout))
	}
	if cfg.Server.MaxBodyBytes > 0 {
		sopts = append(sopts, server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))
	}
	if len(cfg.Server.ForwardHeaders) > 0 {
		sopts = append(sopts, server.WithForwardHeaders(cfg.Server.ForwardHeaders...))
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	h, err := server.New(engine, sopts...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, h)
	if cfg.Server.MetricsPath != "" {
		mux.Handle(cfg.Server.MetricsPath, m.Handler())
	}
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	logger.Info("GraphQL gateway listening", "addr", cfg.Server.Addr, "path", cfg.Server.Path, "sources", registry.Names())
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type planJoin struct {
	Name          string    `json:"name"`
	Source        string    `json:"source"`
	Table         string    `json:"table"`
	Args          string    `json:"args,omitempty"`
	InsertionPath tree.Path `json:"insertionPath"`
	ForeignKey    tree.Path `json:"foreignKey"`
	PrimaryKey    string    `json:"primaryKey"`
	PrimaryKeyAt  tree.Path `json:"primaryKeyPath"`
	Query         string    `json:"query"`
}

type planOutput struct {
	Primary string     `json:"primary"`
	Joins   []planJoin `json:"joins"`
}

func cmdPlan(args []string, stdout, stderr io.Writer) error {
	queryFile := ""
	operation := ""
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&queryFile, "query", queryFile, "Federated query document")
	fs.StringVar(&operation, "operation", operation, "Operation name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, planUsage)
		return err
	}
	if queryFile == "" {
		fmt.Fprint(stderr, planUsage)
		return fmt.Errorf("-query is required")
	}

	var src []byte
	var err error
	if queryFile == "-" {
		src, err = io.ReadAll(os.Stdin)
	} else {
		src, err = os.ReadFile(queryFile)
	}
	if err != nil {
		return err
	}
	doc, err := language.ParseQuery(string(src))
	if err != nil {
		return fmt.Errorf("parse %s: %w", queryFile, err)
	}
	plan, err := join.Prepare(doc, operation)
	if err != nil {
		return err
	}

	out := planOutput{Primary: language.Format(plan.Primary), Joins: []planJoin{}}
	for _, r := range plan.Requests {
		// no primary data yet, so $fk renders as an empty list
		q, err := join.BuildQuery(r, nil)
		if err != nil {
			return err
		}
		out.Joins = append(out.Joins, planJoin{
			Name:          r.Name,
			Source:        r.Source,
			Table:         r.Table,
			Args:          r.FilterArgs,
			InsertionPath: r.InsertionPath,
			ForeignKey:    r.ForeignKey.Path,
			PrimaryKey:    r.PrimaryKey.Name,
			PrimaryKeyAt:  r.PrimaryKey.Path,
			Query:         language.Format(q),
		})
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
