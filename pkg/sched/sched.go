// Package sched implements the queue manager: enqueue validation,
// priority/deadline-aware dequeue, retry backoff, dependency release,
// and stale-job reclamation.
package sched

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
	"github.com/elev8tion/agm-platform-sub001/pkg/notify"
)

// claimAttempts bounds how many lost claim races one Dequeue call
// absorbs before reporting the queue as empty.
const claimAttempts = 5

// Scheduler selects, claims, and transitions jobs. It is the single
// writer for every lifecycle mutation, which makes per-job event order
// match transition order.
type Scheduler struct {
	store  core.Store
	hub    *notify.Hub
	cfg    Config
	logger *slog.Logger

	recurring *recurringSet
}

// New creates a Scheduler over the given store and hub.
func New(store core.Store, hub *notify.Hub, cfg Config) *Scheduler {
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultConfig().RetryBaseDelay
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = DefaultConfig().RetryMaxDelay
	}
	if cfg.DefaultMaxRetries <= 0 {
		cfg.DefaultMaxRetries = DefaultConfig().DefaultMaxRetries
	}
	return &Scheduler{
		store:     store,
		hub:       hub,
		cfg:       cfg,
		logger:    slog.Default(),
		recurring: newRecurringSet(),
	}
}

// Store returns the underlying store.
func (s *Scheduler) Store() core.Store {
	return s.store
}

// Enqueue validates and persists a new job. The job starts queued
// unless a future not_before or an unsatisfied dependency parks it in
// pending first.
func (s *Scheduler) Enqueue(ctx context.Context, kind string, params map[string]any, opts ...Option) (string, error) {
	if err := core.ValidateKindName(kind); err != nil {
		return "", err
	}

	options := newOptions(s.cfg)
	for _, opt := range opts {
		opt.Apply(options)
	}

	if err := core.ValidatePriority(options.Priority); err != nil {
		return "", err
	}

	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("sched: failed to marshal params: %w", err)
	}
	if len(paramsBytes) > core.MaxParamsSize {
		return "", core.ErrParamsTooLarge
	}

	now := time.Now()
	status := core.StatusQueued
	if options.NotBefore != nil && options.NotBefore.After(now) {
		status = core.StatusPending
	}

	var dependsOn *string
	if options.DependsOn != "" {
		dep, err := s.store.Get(ctx, options.DependsOn)
		if err != nil {
			return "", fmt.Errorf("sched: dependency %s: %w", options.DependsOn, err)
		}
		dependsOn = &dep.ID
		if dep.Status != core.StatusCompleted {
			status = core.StatusPending
		}
	}

	job := &core.Job{
		Kind:       kind,
		Params:     paramsBytes,
		Priority:   options.Priority,
		NotBefore:  options.NotBefore,
		Deadline:   options.Deadline,
		DependsOn:  dependsOn,
		Status:     status,
		MaxRetries: core.ClampRetries(options.MaxRetries),
	}

	if err := s.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("sched: failed to enqueue: %w", err)
	}

	s.logger.Info("job enqueued",
		"job_id", job.ID, "kind", kind, "priority", job.Priority, "status", job.Status)
	s.publish(job.ID, notify.Event{Status: job.Status})
	return job.ID, nil
}

// Dequeue claims the next eligible job for workerID. A nil job means
// the queue is empty; losing a claim race is absorbed by retrying the
// selection, never surfaced as an error.
func (s *Scheduler) Dequeue(ctx context.Context, workerID string) (*core.Job, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		job, err := s.store.Claim(ctx, workerID)
		if errors.Is(err, core.ErrClaimConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, nil
		}
		s.publish(job.ID, notify.Event{Status: core.StatusRunning, Message: "started"})
		return job, nil
	}
	return nil, nil
}

// Complete records a successful outcome and releases any dependents
// waiting on this job. The dependent cannot be dequeued before this
// call has released it.
func (s *Scheduler) Complete(ctx context.Context, id, workerID string, result map[string]any) error {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("sched: failed to marshal result: %w", err)
	}

	if err := s.store.Complete(ctx, id, workerID, resultBytes); err != nil {
		return err
	}

	s.logger.Info("job completed", "job_id", id)
	s.publish(id, notify.Event{
		Status:   core.StatusCompleted,
		Progress: 100,
		Result:   resultBytes,
	})

	released, err := s.store.ReleaseDependents(ctx, id)
	if err != nil {
		return fmt.Errorf("sched: release dependents of %s: %w", id, err)
	}
	for _, depID := range released {
		s.logger.Info("dependent released", "job_id", depID, "dependency", id)
		s.publish(depID, notify.Event{Status: core.StatusQueued})
	}
	return nil
}

// Fail records a failed outcome. Retryable failures with budget left
// are parked in retrying with capped exponential backoff; everything
// else goes to the dead letter state.
func (s *Scheduler) Fail(ctx context.Context, id, workerID string, jobErr error, retryable bool) error {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	errMsg := ""
	if jobErr != nil {
		errMsg = jobErr.Error()
	}
	nextCount := job.RetryCount + 1

	if retryable && nextCount < job.MaxRetries {
		delay := s.backoff(nextCount)
		retryAt := time.Now().Add(delay)
		if err := s.store.Fail(ctx, id, workerID, errMsg, &retryAt); err != nil {
			return err
		}
		s.logger.Warn("job failed, retry scheduled",
			"job_id", id, "attempt", nextCount, "max_retries", job.MaxRetries,
			"retry_in", delay, "error", errMsg)
		s.publish(id, notify.Event{
			Status:  core.StatusRetrying,
			Error:   errMsg,
			Message: fmt.Sprintf("retry %d of %d in %s", nextCount, job.MaxRetries, delay),
		})
		return nil
	}

	if err := s.store.Fail(ctx, id, workerID, errMsg, nil); err != nil {
		return err
	}
	s.logger.Error("job dead", "job_id", id, "retry_count", nextCount, "error", errMsg)
	s.publish(id, notify.Event{Status: core.StatusDead, Error: errMsg})
	return nil
}

// backoff returns min(2^attempt * base, cap).
func (s *Scheduler) backoff(attempt int) time.Duration {
	// Shift guard: beyond 62 the multiplier overflows int64.
	if attempt > 62 {
		return s.cfg.RetryMaxDelay
	}
	delay := s.cfg.RetryBaseDelay * (1 << attempt)
	if delay <= 0 || delay > s.cfg.RetryMaxDelay {
		return s.cfg.RetryMaxDelay
	}
	return delay
}

// Cancel transitions a non-terminal job to cancelled. Running jobs are
// only flagged; their handler observes cancellation cooperatively.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	job, err := s.store.Cancel(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info("job cancelled", "job_id", id)
	s.publish(id, notify.Event{Status: core.StatusCancelled, Progress: job.Progress})
	return nil
}

// Requeue puts a dead or cancelled job back in the queue with a fresh
// retry budget.
func (s *Scheduler) Requeue(ctx context.Context, id string) error {
	if _, err := s.store.Requeue(ctx, id); err != nil {
		return err
	}
	s.logger.Info("job requeued", "job_id", id)
	s.publish(id, notify.Event{Status: core.StatusQueued})
	return nil
}

// ReclaimStale resets running jobs whose heartbeat went stale. This is
// the sole mechanism for surviving a worker crash.
func (s *Scheduler) ReclaimStale(ctx context.Context, timeout time.Duration) (int, error) {
	ids, err := s.store.ReclaimStale(ctx, timeout)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.logger.Warn("stale job reclaimed", "job_id", id, "heartbeat_timeout", timeout)
		s.publish(id, notify.Event{Status: core.StatusQueued, Message: "reclaimed after stale heartbeat"})
	}
	return len(ids), nil
}

// PromoteDue wakes pending and retrying jobs whose wait is over.
func (s *Scheduler) PromoteDue(ctx context.Context) (int, error) {
	ids, err := s.store.PromoteDue(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.publish(id, notify.Event{Status: core.StatusQueued})
	}
	return len(ids), nil
}

// Get returns one job.
func (s *Scheduler) Get(ctx context.Context, id string) (*core.Job, error) {
	return s.store.Get(ctx, id)
}

// List returns jobs matching the filter.
func (s *Scheduler) List(ctx context.Context, filter core.JobFilter) ([]*core.Job, int64, error) {
	return s.store.List(ctx, filter)
}

// Stats aggregates queue counters.
func (s *Scheduler) Stats(ctx context.Context) (*core.QueueStats, error) {
	return s.store.Stats(ctx)
}

func (s *Scheduler) publish(jobID string, ev notify.Event) {
	if s.hub == nil {
		return
	}
	if ev.Progress == 0 && ev.Status == core.StatusCompleted {
		ev.Progress = 100
	}
	s.hub.Publish(jobID, ev)
}
