package core

import (
	"context"
	"time"
)

// Starter is implemented by anything with a blocking run loop, notably
// the worker pool.
type Starter interface {
	Start(ctx context.Context) error
}

// JobFilter narrows List queries.
type JobFilter struct {
	Status JobStatus
	Kind   string
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

// QueueStats aggregates queue health for the stats operation.
type QueueStats struct {
	ByStatus             map[JobStatus]int64 `json:"by_status"`
	Total                int64               `json:"total"`
	AvgQueueSeconds      float64             `json:"avg_queue_seconds"`
	AvgExecutionSeconds  float64             `json:"avg_execution_seconds"`
	QueuedByPriority     map[int]int64       `json:"queued_by_priority"`
	PastDeadline         int64               `json:"past_deadline"`
}

// Store defines the persistence layer for jobs. It is the single shared
// mutable resource: all cross-worker coordination happens through
// conditional updates against it, so multiple worker processes can share
// one database with no other coordination primitive.
type Store interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Create persists a new job.
	Create(ctx context.Context, job *Job) error

	// Get returns a job by id, or ErrJobNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// Claim selects and atomically claims the next eligible queued job
	// for workerID. Returns (nil, nil) when the queue is empty and
	// ErrClaimConflict when a concurrent claim changed the row first.
	Claim(ctx context.Context, workerID string) (*Job, error)

	// UpdateProgress writes progress onto a running job owned by workerID.
	UpdateProgress(ctx context.Context, id, workerID string, percent float64) error

	// Complete marks a job successfully finished and stores its result.
	Complete(ctx context.Context, id, workerID string, result []byte) error

	// Fail records a failure. When retryAt is non-nil the job moves to
	// retrying with not_before set; otherwise it is dead. retry_count is
	// incremented either way.
	Fail(ctx context.Context, id, workerID, errMsg string, retryAt *time.Time) error

	// Cancel transitions a non-terminal job to cancelled.
	Cancel(ctx context.Context, id string) (*Job, error)

	// Requeue resets a dead or cancelled job to queued with a fresh
	// retry budget.
	Requeue(ctx context.Context, id string) (*Job, error)

	// ReleaseDependents flips pending jobs whose dependency just
	// completed to queued, provided their not_before has elapsed.
	// Returns the ids of released jobs.
	ReleaseDependents(ctx context.Context, dependencyID string) ([]string, error)

	// PromoteDue flips pending and retrying jobs whose not_before has
	// elapsed (and whose dependency, if any, is completed) to queued.
	// Returns the ids of promoted jobs.
	PromoteDue(ctx context.Context) ([]string, error)

	// Heartbeat re-stamps heartbeat_at on every running job claimed by
	// workerID. Driven by the pool's own liveness, never the handler's.
	Heartbeat(ctx context.Context, workerID string) (int64, error)

	// ReclaimStale resets running jobs whose heartbeat is older than the
	// timeout back to queued. Returns the ids of reclaimed jobs.
	ReclaimStale(ctx context.Context, timeout time.Duration) ([]string, error)

	// DeleteOlderThan purges jobs in the given statuses whose
	// completed_at is older than age.
	DeleteOlderThan(ctx context.Context, age time.Duration, statuses []JobStatus) (int64, error)

	// List returns jobs matching the filter plus the total match count.
	List(ctx context.Context, filter JobFilter) ([]*Job, int64, error)

	// Stats aggregates queue counters.
	Stats(ctx context.Context) (*QueueStats, error)
}
