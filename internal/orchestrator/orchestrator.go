package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kurihiro0119/findings-exporter/internal/collector"
	"github.com/kurihiro0119/findings-exporter/internal/domain"
	"github.com/kurihiro0119/findings-exporter/internal/planner"
)

// IntervalCallback is called before the report job of each interval starts
type IntervalCallback func(iv domain.Interval, total int)

// IntervalError reports which interval of a run failed
type IntervalError struct {
	Interval domain.Interval
	Total    int
	Err      error
}

func (e *IntervalError) Error() string {
	return fmt.Sprintf("interval %d/%d (%s): %v", e.Interval.Index+1, e.Total, e.Interval.TimeRange, e.Err)
}

func (e *IntervalError) Unwrap() error {
	return e.Err
}

// Orchestrator runs one report job per interval, strictly in order, and
// merges their findings
type Orchestrator struct {
	collector  collector.Collector
	span       planner.Span
	jobTimeout time.Duration
	logger     *slog.Logger
	onInterval IntervalCallback
}

// Option configures the orchestrator
type Option func(*Orchestrator)

// WithSpan sets the maximum length of one interval
func WithSpan(span planner.Span) Option {
	return func(o *Orchestrator) {
		o.span = span
	}
}

// WithJobTimeout bounds the time a single report job may take. Zero leaves
// jobs unbounded.
func WithJobTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.jobTimeout = d
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithIntervalCallback registers a progress callback
func WithIntervalCallback(cb IntervalCallback) Option {
	return func(o *Orchestrator) {
		o.onInterval = cb
	}
}

// New creates a new orchestrator
func New(c collector.Collector, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		collector: c,
		span:      planner.DefaultSpan,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Plan returns the intervals Execute would submit for tr
func (o *Orchestrator) Plan(tr domain.TimeRange) ([]domain.Interval, error) {
	intervals, err := planner.Plan(tr, o.span)
	if err != nil {
		return nil, fmt.Errorf("failed to plan intervals: %w", err)
	}
	return intervals, nil
}

// Execute fetches the findings of every interval of tr. The first failure
// aborts the run and no records are returned with it. An empty result is a
// valid outcome and is reported through AggregateResult.Empty.
func (o *Orchestrator) Execute(ctx context.Context, tr domain.TimeRange) (*domain.AggregateResult, error) {
	intervals, err := o.Plan(tr)
	if err != nil {
		return nil, err
	}

	result := &domain.AggregateResult{
		Range:   tr,
		Records: []domain.Record{},
		Jobs:    make([]domain.JobSummary, 0, len(intervals)),
	}

	for _, iv := range intervals {
		if o.onInterval != nil {
			o.onInterval(iv, len(intervals))
		}
		o.logger.Info("Processing interval",
			"interval", iv.Index+1,
			"total", len(intervals),
			"start", iv.Start.Format(domain.ReportTimeLayout),
			"end", iv.End.Format(domain.ReportTimeLayout),
		)

		job, err := o.runJob(ctx, iv)
		if err != nil {
			return nil, &IntervalError{Interval: iv, Total: len(intervals), Err: err}
		}

		result.Records = append(result.Records, job.Records...)
		result.Jobs = append(result.Jobs, job.Summary())
	}

	o.logger.Info("Run finished", "intervals", len(intervals), "findings", len(result.Records))
	return result, nil
}

func (o *Orchestrator) runJob(ctx context.Context, iv domain.Interval) (*domain.ReportJob, error) {
	if o.jobTimeout <= 0 {
		return o.collector.RunReport(ctx, iv)
	}

	ctx, cancel := context.WithTimeout(ctx, o.jobTimeout)
	defer cancel()
	return o.collector.RunReport(ctx, iv)
}
