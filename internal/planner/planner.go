package planner

import (
	"fmt"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
)

// Plan splits tr into contiguous, non-overlapping intervals of at most span.
// The first interval starts at tr.Start, the last one ends at tr.End and only
// the last one may be shorter than span. An empty range yields no intervals.
func Plan(tr domain.TimeRange, span Span) ([]domain.Interval, error) {
	if err := span.Validate(); err != nil {
		return nil, err
	}
	if tr.End.Before(tr.Start) {
		return nil, fmt.Errorf("invalid time range %s", tr)
	}

	var intervals []domain.Interval
	cursor := tr.Start
	for cursor.Before(tr.End) {
		next := span.AddTo(cursor)
		if next.After(tr.End) {
			next = tr.End
		}
		intervals = append(intervals, domain.Interval{
			Index:     len(intervals),
			TimeRange: domain.TimeRange{Start: cursor, End: next},
		})
		cursor = next
	}

	return intervals, nil
}
