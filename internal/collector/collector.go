package collector

import (
	"context"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
)

// Collector defines the interface for collecting findings reports
type Collector interface {
	// RunReport submits a findings report for one interval, polls it until it
	// reaches a terminal state and returns the finished job with its records
	RunReport(ctx context.Context, iv domain.Interval) (*domain.ReportJob, error)
}

// PollCallback is a callback function for reporting each status check
type PollCallback func(reportID string, attempt int, status domain.JobStatus)
