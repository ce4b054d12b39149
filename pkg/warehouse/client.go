// Package warehouse models the data-warehouse job service the job operator
// polls: submit a job, then watch its state until it is terminal.
package warehouse

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned by JobStatus for an unknown job ID.
var ErrJobNotFound = errors.New("warehouse job not found")

type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateSucceeded JobState = "succeeded"
	StateFailed    JobState = "failed"
)

// Terminal reports whether the state can no longer change.
func (s JobState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

type JobStatus struct {
	JobID   string
	State   JobState
	Message string
}

// JobClient is the opaque warehouse capability. Submitting an already-known
// job ID reattaches to it instead of starting a duplicate.
type JobClient interface {
	SubmitJob(ctx context.Context, jobID, query string) (string, error)
	JobStatus(ctx context.Context, jobID string) (JobStatus, error)
}
