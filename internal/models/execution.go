package models

import "time"

type ExecStatus string

const (
	ExecStatusPending ExecStatus = "pending"
	ExecStatusRunning ExecStatus = "running"
	ExecStatusSuccess ExecStatus = "success"
	ExecStatusFailed  ExecStatus = "failed"
	ExecStatusTimeout ExecStatus = "timeout"
)

// Failure reports whether the status is a failed outcome. Timeouts are
// a distinct terminal state but count as failures for mining and stats.
func (s ExecStatus) Failure() bool {
	return s == ExecStatusFailed || s == ExecStatusTimeout
}

// ExecutionResult is the immutable record of one run attempt. It is
// created once per attempt and persisted append-only; it is never
// updated or deleted.
type ExecutionResult struct {
	ID           int64
	ExecutionID  string
	WorkflowName string
	Status       ExecStatus
	StartedAt    time.Time
	FinishedAt   *time.Time
	Duration     float64 // seconds
	ExitCode     *int
	Stdout       string
	Stderr       string
	ErrorMessage string
}
