package events

import "time"

// MergeStart is emitted before a federated query is split and executed.
type MergeStart struct {
	OperationName string
	Joins         []string
}

// MergeFinish is emitted after the merged response is produced or the merge is
// abandoned.
type MergeFinish struct {
	OperationName string
	Joins         []string
	Unresolved    int
	Err           error
	Duration      time.Duration
}
