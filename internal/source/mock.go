package source

import (
	"context"
	"fmt"
	"sync"

	language "github.com/hanpama/mergelink/internal/language"
)

// CallRecord captures a single Send invocation for assertions.
type CallRecord struct {
	// Query is the formatted document that was sent.
	Query         string
	OperationName string
	Variables     map[string]any
	Document      *language.QueryDocument
}

// Mock implements Source and returns pre-seeded responses in order, while
// recording Send invocations for inspection.
type Mock struct {
	mu        sync.Mutex
	responses []*Response
	errs      []error
	idx       int
	calls     []CallRecord
}

// NewMock creates a Mock that returns the provided responses in order for
// successive Send calls.
func NewMock(responses ...*Response) *Mock {
	cp := make([]*Response, len(responses))
	copy(cp, responses)
	return &Mock{responses: cp}
}

// NewMockWithErrors seeds per-call errors alongside responses. For call i, if
// errs[i] is non-nil, Send returns that error and ignores responses[i].
func NewMockWithErrors(responses []*Response, errs []error) *Mock {
	m := NewMock(responses...)
	m.errs = append([]error(nil), errs...)
	return m
}

// NewMockData is shorthand for a Mock answering once with data.
func NewMockData(data map[string]any) *Mock {
	return NewMock(&Response{Data: data})
}

func (m *Mock) Send(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, CallRecord{
		Query:         req.Query(),
		OperationName: req.OperationName,
		Variables:     req.Variables,
		Document:      req.Document,
	})

	if m.idx >= len(m.responses) && m.idx >= len(m.errs) {
		return nil, fmt.Errorf("mock source: no more responses")
	}
	if m.idx < len(m.errs) {
		if err := m.errs[m.idx]; err != nil {
			m.idx++
			return nil, err
		}
	}
	var resp *Response
	if m.idx < len(m.responses) {
		resp = m.responses[m.idx]
	}
	m.idx++
	return resp, nil
}

// Calls returns a snapshot of recorded Send invocations.
func (m *Mock) Calls() []CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallRecord, len(m.calls))
	copy(out, m.calls)
	return out
}
