// Package bulk implements the bulk allocation job workflow: submit a
// server-side job for a set of entities, poll it to a terminal state, fetch
// the per-entity results, and aggregate them by calendar month. When the bulk
// API is unavailable the workflow degrades to the batched per-entity fallback
// in pkg/fanout.
package bulk

import (
	"errors"
	"time"
)

// Common errors returned by the workflow.
var (
	// ErrSubmitFailed is returned when the bulk job could not be created.
	// The coordinator recovers from it by engaging the fallback path.
	ErrSubmitFailed = errors.New("bulk job submission failed")

	// ErrJobFailed is returned when the server reports the job as failed.
	ErrJobFailed = errors.New("bulk job failed")

	// ErrPollTimeout is returned when the job did not reach a terminal state
	// within the configured attempt budget.
	ErrPollTimeout = errors.New("bulk job poll timeout")
)

// DefaultBatchSize is the server-side chunk size requested for bulk jobs.
const DefaultBatchSize = 100

// Request describes one bulk allocation fetch.
// It is built once per triggering refresh and not mutated afterwards.
type Request struct {
	// EntityIDs are the employees whose allocations are requested.
	// Order is preserved; uniqueness is not required.
	EntityIDs []int64 `json:"entity_ids"`

	// StartPeriod and EndPeriod bound the report by period key, inclusive.
	// Empty means unbounded on that side.
	StartPeriod string `json:"start_period,omitempty"`
	EndPeriod   string `json:"end_period,omitempty"`

	// BatchSize is the server-side chunk size. Zero means DefaultBatchSize.
	BatchSize int `json:"batch_size"`
}

// JobHandle identifies a submitted bulk job. The request ID is the sole
// correlation key for polling and result retrieval.
type JobHandle struct {
	RequestID string `json:"request_id"`
}

// JobState is the server-side lifecycle state of a bulk job.
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Terminal returns true for states the job can never leave.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// JobStatus is one snapshot of a job's progress as reported by the server.
type JobStatus struct {
	State             JobState `json:"status"`
	CompletedRequests int      `json:"completed_requests"`
	TotalRequests     int      `json:"total_requests"`
}

// PollConfig holds the status polling parameters. The interval is fixed, not
// exponential: the job endpoint is cheap and progress is roughly linear.
type PollConfig struct {
	// Interval between status polls.
	Interval time.Duration

	// MaxAttempts is the number of polls before giving up.
	MaxAttempts int
}

// DefaultPollConfig returns the default polling parameters
// (about 5 minutes of patience).
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    5 * time.Second,
		MaxAttempts: 60,
	}
}
