package queue

import (
	"time"
)

// Well-known queue names. Concurrency bounds per queue live in config;
// the asymmetry reflects resource cost (video rendering is heavy, model
// metadata updates are not).
const (
	QueueMedia   = "media"
	QueueVideo   = "video"
	QueueContent = "content"
	QueueCleanup = "cleanup"
)

// JobState represents the lifecycle state of a queued job.
type JobState string

// Possible job states
const (
	JobStateWaiting   JobState = "waiting"
	JobStateDelayed   JobState = "delayed"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateDead      JobState = "dead"
)

// BackoffType selects how retry delays grow between attempts.
type BackoffType string

// Possible backoff types
const (
	BackoffFixed       BackoffType = "fixed"
	BackoffExponential BackoffType = "exponential"
)

// BackoffPolicy describes the retry delay for a failing job.
type BackoffPolicy struct {
	Type  BackoffType   `json:"type"`
	Delay time.Duration `json:"delay"`
}

// NextDelay returns the delay before the given retry attempt (1-based).
func (b BackoffPolicy) NextDelay(attempt int) time.Duration {
	if b.Delay <= 0 {
		return 0
	}
	switch b.Type {
	case BackoffExponential:
		delay := b.Delay
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
		return delay
	default:
		return b.Delay
	}
}

// Job is the unit of background work persisted in the queue backend.
// The queue exclusively owns the job lifecycle; handlers observe jobs but
// have no authority to resurrect a dead one.
type Job struct {
	ID               string         `json:"id"`
	Queue            string         `json:"queue"`
	Name             string         `json:"name"`
	Payload          map[string]any `json:"payload,omitempty"`
	Priority         int            `json:"priority"`
	Attempts         int            `json:"attempts"`
	AttemptsMade     int            `json:"attempts_made"`
	Backoff          BackoffPolicy  `json:"backoff"`
	State            JobState       `json:"state"`
	Error            string         `json:"error,omitempty"`
	RemoveOnComplete bool           `json:"remove_on_complete"`
	RemoveOnFail     bool           `json:"remove_on_fail"`
	EnqueuedAt       time.Time      `json:"enqueued_at"`
	ReadyAt          time.Time      `json:"ready_at"`
}

// JobHandle is returned to enqueuers; it identifies the created (or, for
// deduplicated enqueues, the pre-existing) job.
type JobHandle struct {
	ID string
}

// EnqueueOptions controls placement and retry behavior of a job.
// The zero value means: default priority, immediately ready, one attempt,
// no backoff, completed job retained briefly for inspection.
type EnqueueOptions struct {
	// Priority orders ready jobs within one queue; lower runs sooner.
	// Priority never preempts delay: a delayed job becomes ready only
	// once its delay elapses.
	Priority int

	// Delay postpones visibility to workers.
	Delay time.Duration

	// JobID is an optional dedupe key. If a waiting or delayed job with
	// the same ID exists, Enqueue returns its handle instead of creating
	// a duplicate.
	JobID string

	// Attempts is the total number of tries (initial + retries).
	// Values below 1 are treated as 1.
	Attempts int

	// Backoff applies between retries.
	Backoff BackoffPolicy

	// RemoveOnComplete drops the job record immediately on success.
	RemoveOnComplete bool

	// RemoveOnFail drops the job record when it goes dead instead of
	// keeping it for inspection.
	RemoveOnFail bool
}
