package sched

import (
	"time"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
)

// Config holds the scheduler's policy values. Backoff constants and
// retry budgets are configuration, not structure.
type Config struct {
	// RetryBaseDelay is the backoff unit: retry n waits
	// min(2^n * RetryBaseDelay, RetryMaxDelay).
	// Default: 1s
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps the exponential backoff.
	// Default: 5m
	RetryMaxDelay time.Duration

	// DefaultMaxRetries applies when an enqueue names no retry budget.
	// Default: 3
	DefaultMaxRetries int
}

// DefaultConfig returns the default scheduler policy.
func DefaultConfig() Config {
	return Config{
		RetryBaseDelay:    time.Second,
		RetryMaxDelay:     5 * time.Minute,
		DefaultMaxRetries: 3,
	}
}

// Options holds per-job enqueue configuration.
type Options struct {
	Priority   int
	NotBefore  *time.Time
	Deadline   *time.Time
	DependsOn  string
	MaxRetries int
}

func newOptions(cfg Config) *Options {
	return &Options{
		Priority:   core.DefaultPriority,
		MaxRetries: cfg.DefaultMaxRetries,
	}
}

// Option modifies enqueue Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// Priority sets the job priority (1-10, higher = more urgent).
func Priority(p int) Option {
	return optionFunc(func(o *Options) {
		o.Priority = p
	})
}

// NotBefore schedules the job to run no earlier than t.
func NotBefore(t time.Time) Option {
	return optionFunc(func(o *Options) {
		o.NotBefore = &t
	})
}

// Delay schedules the job to run after a duration.
func Delay(d time.Duration) Option {
	return optionFunc(func(o *Options) {
		t := time.Now().Add(d)
		o.NotBefore = &t
	})
}

// Deadline records when the job should be done. Overdue jobs win the
// dequeue tie-break; nothing aborts them.
func Deadline(t time.Time) Option {
	return optionFunc(func(o *Options) {
		o.Deadline = &t
	})
}

// DependsOn gates the job on another job completing first.
func DependsOn(jobID string) Option {
	return optionFunc(func(o *Options) {
		o.DependsOn = jobID
	})
}

// MaxRetries sets the retry budget. Values are clamped to the hard cap.
func MaxRetries(n int) Option {
	return optionFunc(func(o *Options) {
		o.MaxRetries = core.ClampRetries(n)
	})
}
