// Package store persists batch run history. The pipeline treats the store
// as best-effort: recording failures are logged, never surfaced as pipeline
// errors.
package store

import (
	"context"

	"github.com/trailcraft-group/augment-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) error
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStatistics, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Per-document results
	RecordDocument(ctx context.Context, runID string, result model.DocumentResult) error
	ListRunDocuments(ctx context.Context, runID string) ([]model.DocumentResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
