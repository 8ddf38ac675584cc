// Package queue persists conversion jobs in SQLite.
//
// One job exists per capture hour. Jobs survive restarts, so an hour whose
// conversion was interrupted is picked up again the next time the daemon
// starts.
package queue

import "time"

// Status describes the lifecycle state of a conversion job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Known reports whether the status is one the store manages.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// Job is one hour of capture awaiting, undergoing, or finished with
// conversion. HourKey is unique per job.
type Job struct {
	ID           int64
	HourKey      string
	Status       Status
	ErrorMessage string
	Attempts     int
	SourceCount  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// HealthSummary aggregates job counts for diagnostic output.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Succeeded int
	Failed    int
}
