package source

import "errors"

var (
	// ErrUnknownSource indicates no source is registered under the requested name.
	ErrUnknownSource = errors.New("source: unknown source")
	// ErrBadStatus indicates the backend answered with a non-2xx HTTP status.
	ErrBadStatus = errors.New("source: unexpected HTTP status")
)
