package domain

import "time"

// RunStatus represents the outcome of a fetch run
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusEmpty     RunStatus = "empty"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one finished fetch over a global time range
type Run struct {
	ID            string
	Start         time.Time
	End           time.Time
	Status        RunStatus
	IntervalCount int
	FindingCount  int
	Error         string
	CreatedAt     time.Time
	CompletedAt   time.Time
}

// StoredJob is the archived form of a report job belonging to a run
type StoredJob struct {
	RunID         string
	IntervalIndex int
	Start         time.Time
	End           time.Time
	ReportID      string
	Status        string
	Polls         int
	FindingCount  int
}

// StoredJobsFromSummaries converts job summaries for archiving under runID
func StoredJobsFromSummaries(runID string, jobs []JobSummary) []*StoredJob {
	stored := make([]*StoredJob, 0, len(jobs))
	for _, j := range jobs {
		stored = append(stored, &StoredJob{
			RunID:         runID,
			IntervalIndex: j.Interval.Index,
			Start:         j.Interval.Start,
			End:           j.Interval.End,
			ReportID:      j.ReportID,
			Status:        string(j.Status),
			Polls:         j.Polls,
			FindingCount:  j.RecordCount,
		})
	}
	return stored
}
