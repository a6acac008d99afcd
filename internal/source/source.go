package source

import (
	"context"
	"fmt"
	"sort"

	language "github.com/hanpama/mergelink/internal/language"
)

// DefaultName is the source that receives the primary query.
const DefaultName = "default"

// Source sends one GraphQL document to a named backend and waits for its
// response. Implementations MUST be safe for concurrent use: the join engine
// calls Send from several goroutines when fetching secondary queries.
//
// Provided implementations:
// - HTTP: GraphQL over HTTP POST
// - Mock: seeded responses with recorded calls, for tests
// - Func: a plain function
type Source interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts an ordinary function to the Source interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

func (f Func) Send(ctx context.Context, req *Request) (*Response, error) { return f(ctx, req) }

// Request is a single GraphQL operation bound for a source.
type Request struct {
	Document      *language.QueryDocument
	OperationName string
	Variables     map[string]any
}

// Query renders the request document as GraphQL text.
func (r *Request) Query() string {
	if r.Document == nil {
		return ""
	}
	return language.Format(r.Document)
}

// Response is a completed GraphQL response.
type Response struct {
	Data   map[string]any     `json:"data"`
	Errors language.ErrorList `json:"errors,omitempty"`
}

// Registry maps source names to sources. It is read-only after construction.
type Registry struct {
	sources map[string]Source
}

func NewRegistry(m map[string]Source) *Registry {
	cp := make(map[string]Source, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return &Registry{sources: cp}
}

// Lookup returns the source registered under name.
func (r *Registry) Lookup(name string) (Source, error) {
	if r != nil {
		if s, ok := r.sources[name]; ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
}

// Names lists the registered source names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.sources))
	for k := range r.sources {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
