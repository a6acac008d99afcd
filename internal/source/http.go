package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/grpc/metadata"

	eventbus "github.com/hanpama/mergelink/internal/eventbus"
	events "github.com/hanpama/mergelink/internal/events"
	reqid "github.com/hanpama/mergelink/internal/reqid"
)

// RequestIDHeader carries the gateway request ID to backends.
const RequestIDHeader = "X-Request-Id"

// HTTP is a GraphQL-over-HTTP source. It POSTs
// {"query","operationName","variables"} and decodes {"data","errors"}.
type HTTP struct {
	name     string
	endpoint string
	opts     *Options
}

var _ Source = (*HTTP)(nil)

// NewHTTP creates a source called name that posts to endpoint.
func NewHTTP(name, endpoint string, opts ...Option) *HTTP {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	return &HTTP{name: name, endpoint: endpoint, opts: o}
}

func (h *HTTP) Name() string     { return h.name }
func (h *HTTP) Endpoint() string { return h.endpoint }

type wireRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

func (h *HTTP) Send(ctx context.Context, req *Request) (resp *Response, err error) {
	if _, ok := ctx.Deadline(); !ok && h.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(wireRequest{
		Query:         req.Query(),
		OperationName: req.OperationName,
		Variables:     req.Variables,
	})
	if err != nil {
		return nil, fmt.Errorf("source %s: encode request: %w", h.name, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", h.name, err)
	}
	h.setHeaders(ctx, httpReq)

	status := 0
	start := time.Now()
	eventbus.Publish(ctx, events.SourceRequestStart{Source: h.name, OperationName: req.OperationName, Target: h.endpoint})
	defer func() {
		eventbus.Publish(ctx, events.SourceRequestFinish{
			Source:        h.name,
			OperationName: req.OperationName,
			Target:        h.endpoint,
			Status:        status,
			Err:           err,
			Duration:      time.Since(start),
		})
	}()

	httpResp, err := h.opts.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", h.name, err)
	}
	defer httpResp.Body.Close()
	status = httpResp.StatusCode

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("source %s: read response: %w", h.name, err)
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("source %s: %w %d: %s", h.name, ErrBadStatus, status, truncate(raw, 256))
	}

	resp = &Response{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err = dec.Decode(resp); err != nil {
		return nil, fmt.Errorf("source %s: decode response: %w", h.name, err)
	}
	return resp, nil
}

func (h *HTTP) setHeaders(ctx context.Context, r *http.Request) {
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	for k, vs := range h.opts.Header {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	if md, ok := metadata.FromOutgoingContext(ctx); ok {
		for k, vs := range md {
			for _, v := range vs {
				r.Header.Add(k, v)
			}
		}
	}
	if id, ok := reqid.FromContext(ctx); ok && r.Header.Get(RequestIDHeader) == "" {
		r.Header.Set(RequestIDHeader, id)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
