package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the GraphQL endpoint receives a request.
type HTTPStart struct {
	Request   *http.Request
	RequestID string
}

// HTTPFinish is emitted after the handler wrote its response. Operations is the
// number of GraphQL operations served (more than one for batched requests).
type HTTPFinish struct {
	Request    *http.Request
	RequestID  string
	Status     int
	Operations int
	Duration   time.Duration
}
