// Package core provides the domain models and interfaces for the scheduler.
package core

import (
	"time"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"   // Waiting on not_before or a dependency
	StatusQueued    JobStatus = "queued"    // Eligible for dequeue
	StatusRunning   JobStatus = "running"   // Claimed by a worker
	StatusRetrying  JobStatus = "retrying"  // Failed, waiting out the backoff window
	StatusCompleted JobStatus = "completed" // Terminal success
	StatusDead      JobStatus = "dead"      // Terminal failure, retries exhausted
	StatusCancelled JobStatus = "cancelled" // Terminated before completion
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusDead, StatusCancelled:
		return true
	}
	return false
}

// TerminalStatuses lists every final state.
func TerminalStatuses() []JobStatus {
	return []JobStatus{StatusCompleted, StatusDead, StatusCancelled}
}

// Priority bounds. Higher is more urgent.
const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

// Job represents one persisted unit of schedulable work.
type Job struct {
	ID     string `gorm:"primaryKey;size:36"`
	Kind   string `gorm:"index;size:255;not null"`
	Params []byte `gorm:"type:bytes"`

	Priority  int        `gorm:"index;default:5"` // 1-10, higher = more urgent
	NotBefore *time.Time `gorm:"index"`
	Deadline  *time.Time `gorm:"index"` // Dequeue tie-break only, never enforced
	DependsOn *string    `gorm:"index;size:36"`

	Status     JobStatus `gorm:"index;size:20;default:'pending'"`
	Progress   float64   `gorm:"default:0"` // 0-100
	RetryCount int       `gorm:"default:0"`
	MaxRetries int       `gorm:"default:3"`
	LastError  string    `gorm:"type:text"`

	ClaimedBy   string     `gorm:"index;size:255"`
	HeartbeatAt *time.Time `gorm:"index"`

	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Stamped at claim and completion so stats queries never recompute
	// from timestamps.
	QueueSeconds     float64 `gorm:"default:0"`
	ExecutionSeconds float64 `gorm:"default:0"`

	Result []byte `gorm:"type:bytes"`
}

// QueueTime returns how long the job waited before being claimed.
func (j *Job) QueueTime() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	return j.StartedAt.Sub(j.CreatedAt)
}

// ExecutionTime returns how long the job ran, or 0 while still running.
func (j *Job) ExecutionTime() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// Overdue reports whether the job's deadline has passed.
func (j *Job) Overdue(now time.Time) bool {
	return j.Deadline != nil && j.Deadline.Before(now)
}
