package worker

import (
	"time"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
)

// Config holds worker pool configuration.
type Config struct {
	// WorkerID identifies this pool in claimed_by stamps. Jobs claimed
	// by this pool heartbeat under this id.
	WorkerID string

	// Concurrency is the number of concurrent execution loops.
	// Default: 4
	Concurrency int

	// PollInterval is how long an idle dispatcher waits between
	// dequeue attempts. Default: 1s
	PollInterval time.Duration

	// HeartbeatInterval is how often owned running jobs are
	// re-stamped. Default: 15s
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is the staleness threshold for reclaiming jobs
	// from crashed workers. Default: 1m
	HeartbeatTimeout time.Duration

	// MaintenanceInterval drives the reclaim/promote tick.
	// Default: 5s
	MaintenanceInterval time.Duration

	// CleanupInterval drives the retention purge. Default: 1h
	CleanupInterval time.Duration

	// Retention is how long terminal jobs are kept. Default: 168h
	Retention time.Duration

	// EnableRecurring starts the loop that enqueues recurring jobs
	// registered on the scheduler.
	EnableRecurring bool

	// StorageRetry configures infrastructure retries for outcome
	// writes and heartbeats.
	StorageRetry *RetryConfig

	// DequeueRetry configures infrastructure retries for dequeue,
	// with a longer backoff to avoid hammering the store during
	// outages.
	DequeueRetry *RetryConfig
}

// Option configures a Worker.
type Option interface {
	applyWorker(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) applyWorker(c *Config) { f(c) }

// WithWorkerID sets the pool's worker id.
func WithWorkerID(id string) Option {
	return optionFunc(func(c *Config) {
		c.WorkerID = id
	})
}

// Concurrency sets the number of execution loops, clamped to the hard
// cap.
func Concurrency(n int) Option {
	return optionFunc(func(c *Config) {
		c.Concurrency = core.ClampConcurrency(n)
	})
}

// PollInterval sets the idle dequeue poll interval.
func PollInterval(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.PollInterval = d
	})
}

// HeartbeatInterval sets how often owned jobs are re-stamped.
func HeartbeatInterval(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.HeartbeatInterval = d
	})
}

// HeartbeatTimeout sets the staleness threshold for reclamation.
func HeartbeatTimeout(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.HeartbeatTimeout = d
	})
}

// MaintenanceInterval sets the reclaim/promote tick.
func MaintenanceInterval(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.MaintenanceInterval = d
	})
}

// CleanupInterval sets the retention purge tick.
func CleanupInterval(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.CleanupInterval = d
	})
}

// Retention sets how long terminal jobs are kept before the cleanup
// loop purges them.
func Retention(d time.Duration) Option {
	return optionFunc(func(c *Config) {
		c.Retention = d
	})
}

// EnableRecurring starts the recurring-job loop.
func EnableRecurring() Option {
	return optionFunc(func(c *Config) {
		c.EnableRecurring = true
	})
}

// StorageRetry overrides the retry policy for store writes.
func StorageRetry(rc RetryConfig) Option {
	return optionFunc(func(c *Config) {
		c.StorageRetry = &rc
	})
}
