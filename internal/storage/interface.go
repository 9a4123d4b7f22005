package storage

import (
	"context"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
)

// Storage is the abstract interface for the run archive. Only finished runs
// are stored; nothing here is used to resume an interrupted run.
type Storage interface {
	// SaveRun stores a run with its report jobs and merged findings atomically
	SaveRun(ctx context.Context, run *domain.Run, jobs []*domain.StoredJob, findings []domain.Record) error

	// Run retrieval
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.Run, error)

	// Report jobs of a run, in interval order
	GetJobs(ctx context.Context, runID string) ([]*domain.StoredJob, error)

	// Findings of a run, in fetch order
	GetFindings(ctx context.Context, runID string) ([]domain.Record, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
