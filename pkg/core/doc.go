// Package core provides the fundamental types and interfaces for the
// background-job scheduler.
//
// This package contains:
//   - The Job data model with its status state machine
//   - The Store interface defining the persistence contract
//   - Error types shared across the scheduler, worker pool, and API
//   - Validation limits applied at enqueue and registration time
//
// The concrete pieces live in pkg/storage (GORM store), pkg/sched
// (queue manager), pkg/worker (pool), and pkg/notify (event fan-out).
package core
