package events

import "time"

// SourceRequestStart is emitted before a document is sent to a source.
type SourceRequestStart struct {
	Source        string
	OperationName string
	Target        string
}

// SourceRequestFinish is emitted after a source request settles.
type SourceRequestFinish struct {
	Source        string
	OperationName string
	Target        string
	Status        int
	Err           error
	Duration      time.Duration
}
