package join

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	eventbus "github.com/hanpama/mergelink/internal/eventbus"
	events "github.com/hanpama/mergelink/internal/events"
	language "github.com/hanpama/mergelink/internal/language"
	source "github.com/hanpama/mergelink/internal/source"
	tree "github.com/hanpama/mergelink/internal/tree"
)

// Operation is one GraphQL request entering the engine.
type Operation struct {
	Document      *language.QueryDocument
	OperationName string
	Variables     map[string]any
}

// Response is the merged GraphQL response.
type Response struct {
	Data       map[string]any     `json:"data"`
	Errors     language.ErrorList `json:"errors,omitempty"`
	Unresolved []tree.Path        `json:"-"`
}

// Engine splits an annotated query into a primary query for the default
// source plus one secondary query per join, and merges the results.
type Engine struct {
	registry *source.Registry
	matcher  PathMatcher
	logger   *slog.Logger
}

type EngineOption func(*Engine)

func WithPathMatcher(m PathMatcher) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.matcher = m
		}
	}
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(registry *source.Registry, opts ...EngineOption) *Engine {
	e := &Engine{registry: registry, matcher: Positional, logger: slog.Default()}
	for _, f := range opts {
		f(e)
	}
	return e
}

// primaryRewrite removes the external fields (and anything marked @pk) from the
// primary query and strips @fk, whose fields must still be fetched.
var primaryRewrite = language.Rewrite{
	RemoveFields:    []string{DirectiveExternal, DirectivePK},
	StripDirectives: []string{DirectiveFK},
}

// PrimaryDocument returns the copy of doc sent to the default source.
func PrimaryDocument(doc *language.QueryDocument) *language.QueryDocument {
	return language.CopyDocument(doc, primaryRewrite)
}

// Plan is the static part of an execution: the primary query and the joins.
type Plan struct {
	Primary  *language.QueryDocument
	Requests []*Request
}

// Prepare narrows doc to the selected operation and extracts its joins.
func Prepare(doc *language.QueryDocument, operationName string) (*Plan, error) {
	op := language.SelectOperation(doc, operationName)
	if op == nil {
		return nil, fmt.Errorf("%w: %q", ErrOperationNotFound, operationName)
	}
	single := &language.QueryDocument{
		Operations: language.OperationList{op},
		Fragments:  doc.Fragments,
		Position:   doc.Position,
	}
	reqs, err := Extract(single)
	if err != nil {
		return nil, err
	}
	return &Plan{Primary: PrimaryDocument(single), Requests: reqs}, nil
}

// Execute runs op: the primary query first, then every secondary query
// concurrently, then the merge. Any request failure abandons the merge.
func (e *Engine) Execute(ctx context.Context, op Operation) (resp *Response, err error) {
	plan, err := Prepare(op.Document, op.OperationName)
	if err != nil {
		return nil, err
	}

	joins := make([]string, len(plan.Requests))
	for i, r := range plan.Requests {
		joins[i] = r.Name
	}
	start := time.Now()
	eventbus.Publish(ctx, events.MergeStart{OperationName: op.OperationName, Joins: joins})
	defer func() {
		unresolved := 0
		if resp != nil {
			unresolved = len(resp.Unresolved)
		}
		eventbus.Publish(ctx, events.MergeFinish{
			OperationName: op.OperationName,
			Joins:         joins,
			Unresolved:    unresolved,
			Err:           err,
			Duration:      time.Since(start),
		})
	}()

	def, err := e.registry.Lookup(source.DefaultName)
	if err != nil {
		return nil, err
	}
	primary, err := def.Send(ctx, &source.Request{
		Document:      plan.Primary,
		OperationName: op.OperationName,
		Variables:     op.Variables,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: primary: %w", ErrSourceFailed, err)
	}
	if primary == nil {
		primary = &source.Response{}
	}
	if len(plan.Requests) == 0 || primary.Data == nil {
		return &Response{Data: primary.Data, Errors: primary.Errors}, nil
	}

	results, err := FetchAll(ctx, e.registry, plan.Requests, primary.Data)
	if err != nil {
		e.logger.WarnContext(ctx, "secondary request failed", "operation", op.OperationName, "error", err)
		return nil, err
	}
	merged := Merge(primary.Data, results, WithMatcher(e.matcher))
	for _, p := range merged.Unresolved {
		e.logger.DebugContext(ctx, "unresolved join", "operation", op.OperationName, "path", p.String())
	}

	errs := append(language.ErrorList{}, primary.Errors...)
	errs = append(errs, merged.Errors...)
	if len(errs) == 0 {
		errs = nil
	}
	return &Response{Data: merged.Data, Errors: errs, Unresolved: merged.Unresolved}, nil
}

// IsRequestError reports whether err stems from the query document itself
// rather than from a source.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrUnknownJoin) ||
		errors.Is(err, ErrIncompleteJoin) ||
		errors.Is(err, ErrInvalidDirective) ||
		errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrOperationNotFound)
}
