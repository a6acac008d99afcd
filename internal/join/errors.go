package join

import "errors"

var (
	// ErrUnknownJoin indicates an @fk or @pk directive names a join that no
	// @external directive declares.
	ErrUnknownJoin = errors.New("join: unknown join")
	// ErrIncompleteJoin indicates a declared join lacks its @fk or @pk half.
	ErrIncompleteJoin = errors.New("join: incomplete join")
	// ErrInvalidDirective indicates a join directive with missing or non-string arguments.
	ErrInvalidDirective = errors.New("join: invalid directive")
	// ErrInvalidQuery indicates a secondary query could not be built from a join.
	ErrInvalidQuery = errors.New("join: invalid secondary query")
	// ErrSourceFailed wraps transport and response failures of any request.
	ErrSourceFailed = errors.New("join: source request failed")
	// ErrOperationNotFound indicates the requested operation is not in the document.
	ErrOperationNotFound = errors.New("join: operation not found")
)
