package sched

import (
	"sync"

	"github.com/elev8tion/agm-platform-sub001/pkg/schedule"
)

// RecurringJob holds configuration for a job enqueued on a schedule,
// e.g. a nightly content refresh or a periodic report.
type RecurringJob struct {
	Name     string
	Kind     string
	Schedule schedule.Schedule
	Params   map[string]any
	Opts     []Option
}

type recurringSet struct {
	mu   sync.RWMutex
	jobs map[string]*RecurringJob
}

func newRecurringSet() *recurringSet {
	return &recurringSet{jobs: make(map[string]*RecurringJob)}
}

// RegisterRecurring registers a named recurring job. The worker pool's
// schedule loop enqueues an instance whenever the schedule fires.
// Re-registering a name replaces the previous entry.
func (s *Scheduler) RegisterRecurring(name, kind string, sc schedule.Schedule, params map[string]any, opts ...Option) {
	s.recurring.mu.Lock()
	defer s.recurring.mu.Unlock()
	s.recurring.jobs[name] = &RecurringJob{
		Name:     name,
		Kind:     kind,
		Schedule: sc,
		Params:   params,
		Opts:     opts,
	}
}

// RecurringJobs returns a snapshot of the registered recurring jobs.
func (s *Scheduler) RecurringJobs() []*RecurringJob {
	s.recurring.mu.RLock()
	defer s.recurring.mu.RUnlock()
	out := make([]*RecurringJob, 0, len(s.recurring.jobs))
	for _, rj := range s.recurring.jobs {
		out = append(out, rj)
	}
	return out
}
