package source

import (
	"net/http"
	"time"
)

// Options configures an HTTP source.
//
// Defaults:
// - Timeout: 10s (used only if the incoming context has no deadline)
// - Client:  a dedicated http.Client
//
// Header carries static headers added to every request. Headers present as
// outgoing gRPC metadata on the context are forwarded too.
type Options struct {
	Timeout time.Duration
	Header  http.Header
	Client  *http.Client
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Timeout: 10 * time.Second,
		Header:  http.Header{},
	}
}

func WithTimeout(d time.Duration) Option  { return func(o *Options) { o.Timeout = d } }
func WithClient(c *http.Client) Option    { return func(o *Options) { o.Client = c } }
func WithHeader(key, value string) Option { return func(o *Options) { o.Header.Add(key, value) } }
