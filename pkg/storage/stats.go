package storage

import (
	"context"
	"time"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
)

// Stats aggregates queue counters: counts by status, average queue and
// execution times, a priority histogram of queued jobs, and the number
// of live jobs already past their deadline.
func (s *GormStore) Stats(ctx context.Context) (*core.QueueStats, error) {
	stats := &core.QueueStats{
		ByStatus:         make(map[core.JobStatus]int64),
		QueuedByPriority: make(map[int]int64),
	}

	type statusRow struct {
		Status string
		Count  int64
	}
	var statusRows []statusRow
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&statusRows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range statusRows {
		stats.ByStatus[core.JobStatus(r.Status)] = r.Count
		stats.Total += r.Count
	}

	type avgRow struct {
		Avg *float64
	}
	var queueAvg avgRow
	err = s.db.WithContext(ctx).
		Model(&core.Job{}).
		Select("avg(queue_seconds) as avg").
		Where("started_at IS NOT NULL").
		Find(&queueAvg).Error
	if err != nil {
		return nil, err
	}
	if queueAvg.Avg != nil {
		stats.AvgQueueSeconds = *queueAvg.Avg
	}

	var execAvg avgRow
	err = s.db.WithContext(ctx).
		Model(&core.Job{}).
		Select("avg(execution_seconds) as avg").
		Where("status = ?", core.StatusCompleted).
		Find(&execAvg).Error
	if err != nil {
		return nil, err
	}
	if execAvg.Avg != nil {
		stats.AvgExecutionSeconds = *execAvg.Avg
	}

	type priorityRow struct {
		Priority int
		Count    int64
	}
	var priorityRows []priorityRow
	err = s.db.WithContext(ctx).
		Model(&core.Job{}).
		Select("priority, count(*) as count").
		Where("status = ?", core.StatusQueued).
		Group("priority").
		Find(&priorityRows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range priorityRows {
		stats.QueuedByPriority[r.Priority] = r.Count
	}

	err = s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("deadline IS NOT NULL AND deadline < ?", time.Now()).
		Where("status NOT IN ?", core.TerminalStatuses()).
		Count(&stats.PastDeadline).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}
