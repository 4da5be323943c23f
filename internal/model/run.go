package model

import "time"

// RunStatus tracks a batch run's lifecycle in the run-history store.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded batch augmentation run.
type Run struct {
	ID         string         `json:"id"`
	Status     RunStatus      `json:"status"`
	DryRun     bool           `json:"dry_run"`
	Mode       string         `json:"mode"`
	Stats      *RunStatistics `json:"stats,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}
