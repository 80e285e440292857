// Package worker provides the worker pool: concurrent execution loops
// pulling from the scheduler, plus the heartbeat, reclaim, cleanup, and
// recurring-job maintenance loops.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
	"github.com/elev8tion/agm-platform-sub001/pkg/handler"
	"github.com/elev8tion/agm-platform-sub001/pkg/notify"
	"github.com/elev8tion/agm-platform-sub001/pkg/progress"
	"github.com/elev8tion/agm-platform-sub001/pkg/sched"
)

// Worker runs a pool of execution loops against the scheduler. One
// Worker process stamps all its claims with a single worker id; the
// heartbeat loop keeps every job it owns alive, so liveness is driven
// by the pool itself, never by handler cooperation.
type Worker struct {
	sched    *sched.Scheduler
	registry *handler.Registry
	hub      *notify.Hub
	config   Config
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates a worker pool over the scheduler and handler registry.
func New(s *sched.Scheduler, registry *handler.Registry, hub *notify.Hub, opts ...Option) *Worker {
	config := Config{
		WorkerID:            uuid.New().String(),
		Concurrency:         4,
		PollInterval:        time.Second,
		HeartbeatInterval:   15 * time.Second,
		HeartbeatTimeout:    time.Minute,
		MaintenanceInterval: 5 * time.Second,
		CleanupInterval:     time.Hour,
		Retention:           7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt.applyWorker(&config)
	}

	if config.StorageRetry == nil {
		defaultCfg := DefaultRetryConfig()
		config.StorageRetry = &defaultCfg
	}
	if config.DequeueRetry == nil {
		dequeueCfg := RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
			JitterFraction:    0.2,
		}
		config.DequeueRetry = &dequeueCfg
	}

	return &Worker{
		sched:    s,
		registry: registry,
		hub:      hub,
		config:   config,
		logger:   slog.Default(),
	}
}

// ID returns the pool's worker id.
func (w *Worker) ID() string {
	return w.config.WorkerID
}

// Start begins processing jobs. It blocks until the context is
// cancelled; in-flight handlers observe the cancellation and their
// jobs are left running for the reclaim loop to recover.
func (w *Worker) Start(ctx context.Context) error {
	jobsChan := make(chan *core.Job, w.config.Concurrency)

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.processLoop(ctx, jobsChan)
	}

	go w.runHeartbeat(ctx)
	go w.runMaintenance(ctx)
	go w.runCleanup(ctx)
	if w.config.EnableRecurring {
		go w.runRecurring(ctx)
	}

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.logger.Info("worker pool started",
		"worker_id", w.config.WorkerID, "concurrency", w.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			close(jobsChan)
			w.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			w.dispatch(ctx, jobsChan)
		}
	}
}

// dispatch drains eligible jobs into the execution loops, stopping as
// soon as the queue is empty or every loop is busy.
func (w *Worker) dispatch(ctx context.Context, jobsChan chan<- *core.Job) {
	for {
		job, err := w.dequeueWithRetry(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				w.logger.Error("failed to dequeue after retries", "error", err)
			}
			return
		}
		if job == nil {
			return
		}
		select {
		case jobsChan <- job:
		case <-ctx.Done():
			return
		}
	}
}

// dequeueWithRetry attempts to dequeue with backoff on store failures.
func (w *Worker) dequeueWithRetry(ctx context.Context) (*core.Job, error) {
	var job *core.Job
	err := retryWithBackoff(ctx, *w.config.DequeueRetry, func() error {
		var dequeueErr error
		job, dequeueErr = w.sched.Dequeue(ctx, w.config.WorkerID)
		return dequeueErr
	})
	return job, err
}

func (w *Worker) processLoop(ctx context.Context, jobs <-chan *core.Job) {
	defer w.wg.Done()

	for job := range jobs {
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *core.Job) {
	h, ok := w.registry.Get(job.Kind)
	if !ok {
		w.logger.Error("no handler for job kind", "job_id", job.ID, "kind", job.Kind)
		w.failWithRetry(ctx, job.ID, fmt.Errorf("%w: %s", core.ErrKindNotRegistered, job.Kind), false)
		return
	}

	var params map[string]any
	if len(job.Params) > 0 {
		if err := json.Unmarshal(job.Params, &params); err != nil {
			w.failWithRetry(ctx, job.ID, fmt.Errorf("unmarshal params: %w", err), false)
			return
		}
	}

	tracker := progress.NewTracker(w.sched.Store(), w.hub, job.ID, w.config.WorkerID)

	start := time.Now()
	result, err := w.executeHandler(ctx, h, params, tracker)

	if err != nil {
		// A handler aborted by pool shutdown leaves the job running;
		// the reclaim loop recovers it once the heartbeat goes stale.
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			w.logger.Info("job execution aborted by shutdown", "job_id", job.ID)
			return
		}
		w.failWithRetry(ctx, job.ID, err, !core.IsNoRetry(err))
		return
	}

	completeErr := retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
		err := w.sched.Complete(ctx, job.ID, w.config.WorkerID, result)
		if errors.Is(err, core.ErrJobNotOwned) {
			// Reclaimed or cancelled mid-run; nothing left to record.
			w.logger.Warn("completion dropped, job no longer owned", "job_id", job.ID)
			return nil
		}
		return err
	})
	if completeErr != nil {
		w.logger.Error("failed to complete job after retries",
			"job_id", job.ID, "error", completeErr)
		return
	}
	w.logger.Info("job finished", "job_id", job.ID, "kind", job.Kind,
		"duration", time.Since(start))
}

// executeHandler invokes the handler with panic containment: one job's
// panic must never take down a worker loop.
func (w *Worker) executeHandler(ctx context.Context, h handler.Handler, params map[string]any, tracker *progress.Tracker) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Execute(ctx, params, tracker)
}

// failWithRetry records a failure with retry on transient store errors.
func (w *Worker) failWithRetry(ctx context.Context, jobID string, jobErr error, retryable bool) {
	err := retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
		err := w.sched.Fail(ctx, jobID, w.config.WorkerID, jobErr, retryable)
		if errors.Is(err, core.ErrJobNotOwned) {
			w.logger.Warn("failure dropped, job no longer owned", "job_id", jobID)
			return nil
		}
		return err
	})
	if err != nil {
		w.logger.Error("failed to mark job as failed after retries",
			"job_id", jobID, "error", err)
	}
}

// runHeartbeat periodically re-stamps every running job this pool
// owns. Heartbeats prove the pool is alive, not that handlers make
// progress.
func (w *Worker) runHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
				_, err := w.sched.Store().Heartbeat(ctx, w.config.WorkerID)
				return err
			})
			if err != nil && ctx.Err() == nil {
				w.logger.Warn("heartbeat failed after retries", "error", err)
			}
		}
	}
}

// runMaintenance reclaims stale jobs and promotes due pending/retrying
// jobs on a fixed tick.
func (w *Worker) runMaintenance(ctx context.Context) {
	ticker := time.NewTicker(w.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.sched.ReclaimStale(ctx, w.config.HeartbeatTimeout); err != nil {
				if ctx.Err() == nil {
					w.logger.Error("reclaim failed", "error", err)
				}
			} else if n > 0 {
				w.logger.Info("reclaimed stale jobs", "count", n)
			}

			if _, err := w.sched.PromoteDue(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("promote failed", "error", err)
			}
		}
	}
}

// runCleanup purges terminal jobs past the retention window.
func (w *Worker) runCleanup(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.sched.Store().DeleteOlderThan(ctx, w.config.Retention, core.TerminalStatuses())
			if err != nil {
				if ctx.Err() == nil {
					w.logger.Error("cleanup failed", "error", err)
				}
				continue
			}
			if n > 0 {
				w.logger.Info("purged old jobs", "count", n, "retention", w.config.Retention)
			}
		}
	}
}

// runRecurring enqueues recurring jobs registered on the scheduler
// whenever their schedule fires.
func (w *Worker) runRecurring(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastRun := make(map[string]time.Time)
	started := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			for _, rj := range w.sched.RecurringJobs() {
				last, ok := lastRun[rj.Name]
				if !ok {
					last = started
				}
				next := rj.Schedule.Next(last)
				if now.Before(next) {
					continue
				}
				if _, err := w.sched.Enqueue(ctx, rj.Kind, rj.Params, rj.Opts...); err != nil {
					w.logger.Error("failed to enqueue recurring job",
						"name", rj.Name, "error", err)
					continue
				}
				lastRun[rj.Name] = now
			}
		}
	}
}
