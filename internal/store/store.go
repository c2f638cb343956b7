package store

import (
	"context"
	"time"
)

// Store defines the run log contract.
// All implementations must be safe for concurrent use.
type Store interface {
	AppendRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	// PruneRuns deletes runs created before the cutoff and returns how many were removed.
	PruneRuns(ctx context.Context, before time.Time) (int64, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
