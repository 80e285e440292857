// Package progress provides the per-job progress tracker handed to
// handlers at invocation time.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
	"github.com/elev8tion/agm-platform-sub001/pkg/notify"
)

// Tracker maps incremental work progress onto the job record and the
// notification stream. It is bound to one job and the worker that
// claimed it.
type Tracker struct {
	store    core.Store
	hub      *notify.Hub
	jobID    string
	workerID string
	logger   *slog.Logger

	mu      sync.Mutex
	current float64
}

// NewTracker creates a tracker bound to one job.
func NewTracker(store core.Store, hub *notify.Hub, jobID, workerID string) *Tracker {
	return &Tracker{
		store:    store,
		hub:      hub,
		jobID:    jobID,
		workerID: workerID,
		logger:   slog.Default(),
	}
}

// JobID returns the bound job id.
func (t *Tracker) JobID() string {
	return t.jobID
}

// Current returns the last accepted progress value.
func (t *Tracker) Current() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Set writes progress onto the job record and publishes a progress
// event. Values outside [0,100] are logged and ignored rather than
// failing an otherwise healthy job.
func (t *Tracker) Set(ctx context.Context, percent float64, message string) {
	if percent < 0 || percent > 100 {
		t.logger.Warn("invalid progress value ignored",
			"job_id", t.jobID, "progress", percent)
		return
	}

	t.mu.Lock()
	t.current = percent
	t.mu.Unlock()

	if err := t.store.UpdateProgress(ctx, t.jobID, t.workerID, percent); err != nil {
		// Losing ownership mid-run means the job was reclaimed or
		// cancelled; progress writes stop mattering.
		t.logger.Warn("progress update not persisted",
			"job_id", t.jobID, "progress", percent, "error", err)
		return
	}

	if message != "" {
		t.logger.Info("job progress",
			"job_id", t.jobID, "progress", percent, "message", message)
	}

	if t.hub != nil {
		t.hub.Publish(t.jobID, notify.Event{
			Status:   core.StatusRunning,
			Progress: percent,
			Message:  message,
		})
	}
}

// Increment raises progress by amount, capped at 100.
func (t *Tracker) Increment(ctx context.Context, amount float64, message string) {
	t.mu.Lock()
	next := t.current + amount
	t.mu.Unlock()

	if next > 100 {
		next = 100
	}
	t.Set(ctx, next, message)
}

// Stage labels a phase of a multi-step handler, e.g. "Researching",
// "Drafting", "Polishing".
func (t *Tracker) Stage(ctx context.Context, name string, percent float64) {
	t.Set(ctx, percent, fmt.Sprintf("Stage: %s", name))
}
