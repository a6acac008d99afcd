package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc/metadata"

	eventbus "github.com/hanpama/mergelink/internal/eventbus"
	events "github.com/hanpama/mergelink/internal/events"
	join "github.com/hanpama/mergelink/internal/join"
	language "github.com/hanpama/mergelink/internal/language"
	reqid "github.com/hanpama/mergelink/internal/reqid"
	source "github.com/hanpama/mergelink/internal/source"
)

// Handler is an http.Handler that serves a federated GraphQL endpoint.
// It parses requests, runs the join engine, and writes GraphQL responses.
type Handler struct {
	engine *join.Engine
	opt    Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// ForwardHeaders lists HTTP headers passed on to every source request.
	// Header names are case-insensitive. Default is none.
	ForwardHeaders []string

	Logger *slog.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithForwardHeaders(headers ...string) Option {
	return func(o *Options) { o.ForwardHeaders = headers }
}
func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a new GraphQL HTTP handler backed by engine.
func New(engine *join.Engine, opts ...Option) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("server: engine is required")
	}
	op := Options{Timeout: 10 * time.Second, Logger: slog.Default()}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{engine: engine, opt: op}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	var rid string
	if hdr := r.Header.Get(source.RequestIDHeader); hdr != "" {
		rid = hdr
		ctx = reqid.WithID(ctx, rid)
	} else {
		ctx, rid = reqid.NewContext(ctx)
	}
	w.Header().Set(source.RequestIDHeader, rid)

	status := http.StatusOK
	operations := 0
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r, RequestID: rid})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{
			Request:    r,
			RequestID:  rid,
			Status:     status,
			Operations: operations,
			Duration:   time.Since(start),
		})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse(&language.Error{Message: "method not allowed"}), h.opt.Pretty)
		return
	}

	ctx = h.forwardHeaders(ctx, r)

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status = http.StatusBadRequest
		if berr.Message == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(berr), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if batch != nil {
		out := make([]any, len(batch))
		for i := range batch {
			out[i] = h.executeOne(ctx, batch[i])
		}
		operations = len(batch)
		writeJSON(w, status, out, h.opt.Pretty)
		return
	}

	operations = 1
	writeJSON(w, status, h.executeOne(ctx, req), h.opt.Pretty)
}

// forwardHeaders maps configured request headers into outgoing metadata, which
// HTTP sources copy onto their own requests.
func (h *Handler) forwardHeaders(ctx context.Context, r *http.Request) context.Context {
	if len(h.opt.ForwardHeaders) == 0 {
		return ctx
	}
	md := metadata.MD{}
	for _, hdr := range h.opt.ForwardHeaders {
		if vs := r.Header.Values(hdr); len(vs) > 0 {
			md[strings.ToLower(hdr)] = vs
		}
	}
	if len(md) == 0 {
		return ctx
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (h *Handler) executeOne(ctx context.Context, req GraphQLRequest) any {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		var ge *language.Error
		if errors.As(err, &ge) {
			return errorResponse(ge)
		}
		return errorResponse(&language.Error{Message: err.Error()})
	}

	resp, err := h.engine.Execute(ctx, join.Operation{
		Document:      doc,
		OperationName: req.OperationName,
		Variables:     req.Variables,
	})
	if err != nil {
		code := "SOURCE_FAILED"
		if join.IsRequestError(err) {
			code = "INVALID_JOIN"
		} else {
			h.opt.Logger.ErrorContext(ctx, "federated query failed", "operation", req.OperationName, "error", err)
		}
		return errorResponse(&language.Error{
			Message:    err.Error(),
			Extensions: map[string]any{"code": code},
		})
	}
	return resp
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, *language.Error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, &language.Error{Message: "missing 'query'"}
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, &language.Error{Message: "invalid 'variables' JSON"}
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return GraphQLRequest{}, nil, &language.Error{Message: "unsupported Content-Type"}
	}

	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, &language.Error{Message: "failed to read body"}
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, &language.Error{Message: errBodyTooLargeMessage}
	}

	if len(body) > 0 && body[0] == '[' {
		var arr []GraphQLRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return GraphQLRequest{}, nil, &language.Error{Message: "invalid JSON"}
		}
		if len(arr) == 0 {
			return GraphQLRequest{}, nil, &language.Error{Message: "empty batch"}
		}
		return GraphQLRequest{}, arr, nil
	}

	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GraphQLRequest{}, nil, &language.Error{Message: "invalid JSON"}
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, &language.Error{Message: "missing 'query'"}
	}
	return req, nil, nil
}

// ------------------ Response formatting ------------------

type errorResult struct {
	Data   any                `json:"data"`
	Errors language.ErrorList `json:"errors"`
}

func errorResponse(err *language.Error) errorResult {
	return errorResult{Errors: language.ErrorList{err}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

const errBodyTooLargeMessage = "body too large"

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
