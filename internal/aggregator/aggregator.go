package aggregator

import (
	"context"
	"fmt"
	"sort"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
	apperrors "github.com/kurihiro0119/findings-exporter/internal/errors"
	"github.com/kurihiro0119/findings-exporter/internal/export"
	"github.com/kurihiro0119/findings-exporter/internal/storage"
)

// MissingValue is the group label for findings that lack the grouped field
const MissingValue = "(none)"

// Aggregator defines the read side over archived runs
type Aggregator interface {
	// ListRuns returns the most recent runs first
	ListRuns(ctx context.Context, limit int) ([]*domain.Run, error)

	// GetRun returns a run and its report jobs
	GetRun(ctx context.Context, runID string) (*domain.Run, []*domain.StoredJob, error)

	// GetFindings returns the findings of a run matching filter
	GetFindings(ctx context.Context, runID string, filter export.Filter) ([]domain.Record, error)

	// SummarizeRun counts the findings of a run grouped by field
	SummarizeRun(ctx context.Context, runID, field string) (*domain.RunSummary, error)
}

// aggregator implements the Aggregator interface
type aggregator struct {
	storage storage.Storage
}

// NewAggregator creates a new aggregator
func NewAggregator(storage storage.Storage) Aggregator {
	return &aggregator{
		storage: storage,
	}
}

// ListRuns returns the most recent runs first
func (a *aggregator) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	runs, err := a.storage.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a run and its report jobs
func (a *aggregator) GetRun(ctx context.Context, runID string) (*domain.Run, []*domain.StoredJob, error) {
	run, err := a.storage.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	jobs, err := a.storage.GetJobs(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get report jobs: %w", err)
	}
	return run, jobs, nil
}

// GetFindings returns the findings of a run matching filter
func (a *aggregator) GetFindings(ctx context.Context, runID string, filter export.Filter) ([]domain.Record, error) {
	findings, err := a.storage.GetFindings(ctx, runID)
	if err != nil {
		return nil, err
	}
	return filter.Apply(findings), nil
}

// SummarizeRun counts the findings of a run grouped by field
func (a *aggregator) SummarizeRun(ctx context.Context, runID, field string) (*domain.RunSummary, error) {
	if field == "" {
		return nil, apperrors.NewBadRequestError("group_by field is required")
	}

	findings, err := a.storage.GetFindings(ctx, runID)
	if err != nil {
		return nil, err
	}

	return &domain.RunSummary{
		RunID:  runID,
		Field:  field,
		Total:  int64(len(findings)),
		Groups: GroupBy(findings, field),
	}, nil
}

// GroupBy counts records by the value of field, largest group first.
// Ties are ordered by value.
func GroupBy(records []domain.Record, field string) []domain.FieldCount {
	counts := make(map[string]int64)
	for _, r := range records {
		counts[groupKey(r, field)]++
	}

	groups := make([]domain.FieldCount, 0, len(counts))
	for value, count := range counts {
		groups = append(groups, domain.FieldCount{Value: value, Count: count})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Value < groups[j].Value
	})

	return groups
}

func groupKey(r domain.Record, field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return MissingValue
	}
	return export.CellString(v)
}
