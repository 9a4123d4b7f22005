package api

import (
	"time"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
)

// RunResponse is the JSON form of an archived run
type RunResponse struct {
	ID            string        `json:"id"`
	Start         string        `json:"start"`
	End           string        `json:"end"`
	Status        string        `json:"status"`
	IntervalCount int           `json:"interval_count"`
	FindingCount  int           `json:"finding_count"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     string        `json:"created_at"`
	CompletedAt   string        `json:"completed_at"`
	Jobs          []JobResponse `json:"jobs,omitempty"`
}

// JobResponse is the JSON form of one report job of a run. Interval is 1-based.
type JobResponse struct {
	Interval     int    `json:"interval"`
	Start        string `json:"start"`
	End          string `json:"end"`
	ReportID     string `json:"report_id"`
	Status       string `json:"status"`
	Polls        int    `json:"polls"`
	FindingCount int    `json:"finding_count"`
}

func newRunResponse(r *domain.Run) RunResponse {
	return RunResponse{
		ID:            r.ID,
		Start:         r.Start.Format(domain.ReportTimeLayout),
		End:           r.End.Format(domain.ReportTimeLayout),
		Status:        string(r.Status),
		IntervalCount: r.IntervalCount,
		FindingCount:  r.FindingCount,
		Error:         r.Error,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		CompletedAt:   r.CompletedAt.Format(time.RFC3339),
	}
}
