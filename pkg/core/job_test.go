package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusDead.Terminal())
	assert.True(t, StatusCancelled.Terminal())

	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.False(t, StatusRetrying.Terminal())
}

func TestJob_Timings(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	started := created.Add(30 * time.Second)
	completed := started.Add(2 * time.Minute)

	job := &Job{CreatedAt: created}
	assert.Zero(t, job.QueueTime())
	assert.Zero(t, job.ExecutionTime())

	job.StartedAt = &started
	assert.Equal(t, 30*time.Second, job.QueueTime())
	assert.Zero(t, job.ExecutionTime())

	job.CompletedAt = &completed
	assert.Equal(t, 2*time.Minute, job.ExecutionTime())
}

func TestJob_Overdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&Job{}).Overdue(now))
	assert.False(t, (&Job{Deadline: &future}).Overdue(now))
	assert.True(t, (&Job{Deadline: &past}).Overdue(now))
}
