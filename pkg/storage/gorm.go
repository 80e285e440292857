// Package storage provides the GORM-backed job store.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
)

// GormStore implements core.Store using GORM. It works against SQLite
// and PostgreSQL; every write that races with another worker is a
// conditional update checked via RowsAffected.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the jobs table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.Job{})
}

// Create persists a new job.
func (s *GormStore) Create(ctx context.Context, job *core.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = core.StatusPending
	}
	if job.Priority == 0 {
		job.Priority = core.DefaultPriority
	}
	return s.db.WithContext(ctx).Create(job).Error
}

// Get returns a job by id.
func (s *GormStore) Get(ctx context.Context, id string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// dependencySatisfied guards eligibility: either no dependency, or the
// dependency has completed.
func (s *GormStore) dependencySatisfied(tx *gorm.DB) *gorm.DB {
	completed := tx.Session(&gorm.Session{NewDB: true}).
		Model(&core.Job{}).
		Select("id").
		Where("status = ?", core.StatusCompleted)
	return tx.Where("depends_on IS NULL OR depends_on IN (?)", completed)
}

// nextEligible selects the next claimable row: jobs whose deadline has
// already passed win first (most overdue first), then priority
// descending, then FIFO within a priority tier.
func (s *GormStore) nextEligible(tx *gorm.DB, now time.Time) (*core.Job, error) {
	base := func() *gorm.DB {
		q := tx.Session(&gorm.Session{NewDB: true}).
			Model(&core.Job{}).
			Where("status = ?", core.StatusQueued).
			Where("(not_before IS NULL OR not_before <= ?)", now)
		return s.dependencySatisfied(q)
	}

	var job core.Job
	err := base().
		Where("deadline IS NOT NULL AND deadline <= ?", now).
		Order("deadline ASC, priority DESC, created_at ASC").
		First(&job).Error
	if err == nil {
		return &job, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = base().
		Order("priority DESC, created_at ASC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Claim selects and atomically claims the next eligible job. The
// transition to running only succeeds if the row is still queued, so
// two workers can never hold the same job.
func (s *GormStore) Claim(ctx context.Context, workerID string) (*core.Job, error) {
	now := time.Now()
	var claimed *core.Job

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate, err := s.nextEligible(tx, now)
		if err != nil {
			return err
		}
		if candidate == nil {
			return nil
		}

		queueSeconds := now.Sub(candidate.CreatedAt).Seconds()
		result := tx.Model(&core.Job{}).
			Where("id = ? AND status = ?", candidate.ID, core.StatusQueued).
			Updates(map[string]any{
				"status":        core.StatusRunning,
				"claimed_by":    workerID,
				"started_at":    now,
				"heartbeat_at":  now,
				"progress":      0,
				"queue_seconds": queueSeconds,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return core.ErrClaimConflict
		}

		candidate.Status = core.StatusRunning
		candidate.ClaimedBy = workerID
		candidate.StartedAt = &now
		candidate.HeartbeatAt = &now
		candidate.Progress = 0
		candidate.QueueSeconds = queueSeconds
		claimed = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// UpdateProgress writes progress onto a running job owned by workerID.
func (s *GormStore) UpdateProgress(ctx context.Context, id, workerID string, percent float64) error {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND claimed_by = ? AND status = ?", id, workerID, core.StatusRunning).
		Update("progress", percent)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotOwned
	}
	return nil
}

// Complete marks a job as successfully finished. The ownership check
// makes a late Complete from a reclaimed worker a no-op error instead
// of a double write.
func (s *GormStore) Complete(ctx context.Context, id, workerID string, resultData []byte) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	executionSeconds := 0.0
	if job.StartedAt != nil {
		executionSeconds = now.Sub(*job.StartedAt).Seconds()
	}

	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND claimed_by = ? AND status = ?", id, workerID, core.StatusRunning).
		Updates(map[string]any{
			"status":            core.StatusCompleted,
			"completed_at":      now,
			"progress":          100,
			"result":            resultData,
			"claimed_by":        "",
			"heartbeat_at":      nil,
			"execution_seconds": executionSeconds,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotOwned
	}
	return nil
}

// Fail records a failure and increments retry_count. A non-nil retryAt
// parks the job in retrying until the backoff window elapses; nil sends
// it to the dead letter state.
func (s *GormStore) Fail(ctx context.Context, id, workerID, errMsg string, retryAt *time.Time) error {
	updates := map[string]any{
		"retry_count":  gorm.Expr("retry_count + 1"),
		"last_error":   core.SanitizeErrorMessage(errMsg),
		"claimed_by":   "",
		"heartbeat_at": nil,
	}

	if retryAt != nil {
		updates["status"] = core.StatusRetrying
		updates["not_before"] = *retryAt
	} else {
		updates["status"] = core.StatusDead
		updates["completed_at"] = time.Now()
	}

	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND claimed_by = ? AND status = ?", id, workerID, core.StatusRunning).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotOwned
	}
	return nil
}

// cancellableStatuses are every non-terminal state. Cancelling a
// running job only flips the record; the executing handler observes
// cancellation cooperatively.
var cancellableStatuses = []core.JobStatus{
	core.StatusPending,
	core.StatusQueued,
	core.StatusRetrying,
	core.StatusRunning,
}

// Cancel transitions a non-terminal job to cancelled.
func (s *GormStore) Cancel(ctx context.Context, id string) (*core.Job, error) {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND status IN ?", id, cancellableStatuses).
		Updates(map[string]any{
			"status":       core.StatusCancelled,
			"completed_at": now,
			"claimed_by":   "",
			"heartbeat_at": nil,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, core.ErrNotCancellable
	}
	return s.Get(ctx, id)
}

// Requeue resets a dead or cancelled job back to queued with a fresh
// retry budget.
func (s *GormStore) Requeue(ctx context.Context, id string) (*core.Job, error) {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND status IN ?", id, []core.JobStatus{core.StatusDead, core.StatusCancelled}).
		Updates(map[string]any{
			"status":            core.StatusQueued,
			"retry_count":       0,
			"last_error":        "",
			"progress":          0,
			"result":            nil,
			"claimed_by":        "",
			"heartbeat_at":      nil,
			"not_before":        nil,
			"started_at":        nil,
			"completed_at":      nil,
			"queue_seconds":     0,
			"execution_seconds": 0,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, core.ErrNotRequeueable
	}
	return s.Get(ctx, id)
}

// ReleaseDependents flips pending jobs gated on dependencyID to queued,
// provided their not_before has elapsed. Jobs still inside a not_before
// window are picked up later by PromoteDue.
func (s *GormStore) ReleaseDependents(ctx context.Context, dependencyID string) ([]string, error) {
	now := time.Now()
	var ids []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&core.Job{}).
			Where("status = ? AND depends_on = ?", core.StatusPending, dependencyID).
			Where("(not_before IS NULL OR not_before <= ?)", now).
			Pluck("id", &ids).Error
		if err != nil || len(ids) == 0 {
			return err
		}
		return tx.Model(&core.Job{}).
			Where("id IN ? AND status = ?", ids, core.StatusPending).
			Update("status", core.StatusQueued).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// PromoteDue flips pending and retrying jobs whose wait is over back to
// queued. This is the tick that ends a retry backoff window and wakes
// time-scheduled jobs.
func (s *GormStore) PromoteDue(ctx context.Context) ([]string, error) {
	now := time.Now()
	var ids []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		waiting := []core.JobStatus{core.StatusPending, core.StatusRetrying}
		q := tx.Model(&core.Job{}).
			Where("status IN ?", waiting).
			Where("(not_before IS NULL OR not_before <= ?)", now)
		err := s.dependencySatisfied(q).Pluck("id", &ids).Error
		if err != nil || len(ids) == 0 {
			return err
		}
		return tx.Model(&core.Job{}).
			Where("id IN ? AND status IN ?", ids, waiting).
			Update("status", core.StatusQueued).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Heartbeat re-stamps heartbeat_at for every running job the worker
// currently owns.
func (s *GormStore) Heartbeat(ctx context.Context, workerID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("claimed_by = ? AND status = ?", workerID, core.StatusRunning).
		Update("heartbeat_at", time.Now())
	return result.RowsAffected, result.Error
}

// ReclaimStale resets running jobs with a stale heartbeat back to
// queued. Reclamation is not a failure: retry_count is untouched.
func (s *GormStore) ReclaimStale(ctx context.Context, timeout time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-timeout)
	var ids []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&core.Job{}).
			Where("status = ? AND heartbeat_at < ?", core.StatusRunning, cutoff).
			Pluck("id", &ids).Error
		if err != nil || len(ids) == 0 {
			return err
		}
		return tx.Model(&core.Job{}).
			Where("id IN ? AND status = ? AND heartbeat_at < ?", ids, core.StatusRunning, cutoff).
			Updates(map[string]any{
				"status":       core.StatusQueued,
				"claimed_by":   "",
				"heartbeat_at": nil,
				"started_at":   nil,
				"progress":     0,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteOlderThan purges terminal jobs past the retention window.
func (s *GormStore) DeleteOlderThan(ctx context.Context, age time.Duration, statuses []core.JobStatus) (int64, error) {
	cutoff := time.Now().Add(-age)
	result := s.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?", statuses, cutoff).
		Delete(&core.Job{})
	return result.RowsAffected, result.Error
}

// List returns jobs matching the filter with pagination and total count.
func (s *GormStore) List(ctx context.Context, filter core.JobFilter) ([]*core.Job, int64, error) {
	q := s.db.WithContext(ctx).Model(&core.Job{})

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at <= ?", filter.Until)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var jobs []*core.Job
	err := q.Order("created_at DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}
