package domain

import (
	"fmt"
	"time"
)

// ReportTimeLayout is the timestamp layout the report service accepts
const ReportTimeLayout = "2006-01-02 15:04:05"

// TimeRange represents a half-open [Start, End) range of last-updated timestamps
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange creates a time range, rejecting an end before the start.
// An empty range (start == end) is valid and yields no report work.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if end.Before(start) {
		return TimeRange{}, fmt.Errorf("invalid time range: end %s is before start %s",
			end.Format(ReportTimeLayout), start.Format(ReportTimeLayout))
	}
	return TimeRange{Start: start, End: end}, nil
}

// IsEmpty reports whether the range covers no time at all
func (r TimeRange) IsEmpty() bool {
	return r.Start.Equal(r.End)
}

// Duration returns the wall-clock length of the range
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r TimeRange) String() string {
	return r.Start.Format(ReportTimeLayout) + " -> " + r.End.Format(ReportTimeLayout)
}

// Interval is one window of a partitioned time range.
// Index is zero-based and follows submission order.
type Interval struct {
	Index int
	TimeRange
}
