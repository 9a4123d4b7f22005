package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
	apperrors "github.com/kurihiro0119/findings-exporter/internal/errors"
	"github.com/kurihiro0119/findings-exporter/internal/transport"
)

// DefaultPollInterval is the fixed delay between two status checks
const DefaultPollInterval = 2 * time.Second

// analyticsCollector implements Collector against the analytics report API
type analyticsCollector struct {
	transport    transport.Transport
	baseURL      string
	pollInterval time.Duration
	waiter       Waiter
	logger       *slog.Logger
	onPoll       PollCallback
}

// Option configures the analytics collector
type Option func(*analyticsCollector)

// WithPollInterval sets the delay between status checks
func WithPollInterval(d time.Duration) Option {
	return func(c *analyticsCollector) {
		c.pollInterval = d
	}
}

// WithWaiter replaces the waiter used between status checks
func WithWaiter(w Waiter) Option {
	return func(c *analyticsCollector) {
		c.waiter = w
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *analyticsCollector) {
		c.logger = l
	}
}

// WithPollCallback registers a progress callback invoked after every status check
func WithPollCallback(cb PollCallback) Option {
	return func(c *analyticsCollector) {
		c.onPoll = cb
	}
}

// NewAnalyticsCollector creates a new collector submitting reports to baseURL
func NewAnalyticsCollector(t transport.Transport, baseURL string, opts ...Option) Collector {
	c := &analyticsCollector{
		transport:    t,
		baseURL:      strings.TrimRight(baseURL, "/"),
		pollInterval: DefaultPollInterval,
		waiter:       NewWaiter(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunReport submits a findings report for iv and polls it to completion
func (c *analyticsCollector) RunReport(ctx context.Context, iv domain.Interval) (*domain.ReportJob, error) {
	job, err := c.submit(ctx, iv)
	if err != nil {
		return nil, err
	}

	if err := c.poll(ctx, job); err != nil {
		return nil, err
	}

	c.logger.Info("Report done", "report_id", job.ID, "status", job.Status, "polls", job.Polls)
	c.logger.Info("Retrieved findings", "report_id", job.ID, "count", len(job.Records))
	return job, nil
}

// submit creates the remote report job for the interval
func (c *analyticsCollector) submit(ctx context.Context, iv domain.Interval) (*domain.ReportJob, error) {
	c.logger.Info("Submitting report", "start", iv.Start.Format(domain.ReportTimeLayout), "end", iv.End.Format(domain.ReportTimeLayout))

	payload := map[string]interface{}{
		"report_type":             domain.ReportTypeFindings,
		"last_updated_start_date": iv.Start.Format(domain.ReportTimeLayout),
		"last_updated_end_date":   iv.End.Format(domain.ReportTimeLayout),
	}

	resp, err := c.transport.Call(ctx, http.MethodPost, c.baseURL, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to submit report: %w", err)
	}

	id := reportID(embedded(resp))
	if id == "" {
		return nil, apperrors.NewMissingIdentifierError(resp)
	}

	return &domain.ReportJob{
		ID:       id,
		Interval: iv,
		Status:   domain.JobStatusSubmitted,
	}, nil
}

// poll checks the job status until it succeeds or fails. Pending statuses
// are retried after a fixed delay with no attempt limit; cancelling ctx is
// the only way to stop a job that never finishes.
func (c *analyticsCollector) poll(ctx context.Context, job *domain.ReportJob) error {
	statusURL := c.baseURL + "/" + url.PathEscape(job.ID)

	for {
		resp, err := c.transport.Call(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return fmt.Errorf("failed to check report %s: %w", job.ID, err)
		}
		job.Polls++

		obj := embedded(resp)
		job.Status = domain.JobStatus(stringField(obj, "status"))
		c.logger.Debug("Polled report", "report_id", job.ID, "attempt", job.Polls, "status", job.Status)
		if c.onPoll != nil {
			c.onPoll(job.ID, job.Polls, job.Status)
		}

		switch {
		case job.Status.IsPending():
			if err := c.waiter.Wait(ctx, c.pollInterval); err != nil {
				return fmt.Errorf("stopped polling report %s: %w", job.ID, err)
			}
		case job.Status.IsSucceeded():
			records, err := findings(job.ID, obj)
			if err != nil {
				return err
			}
			job.Records = records
			return nil
		default:
			return apperrors.NewUnexpectedStatusError(job.ID, string(job.Status))
		}
	}
}

// embedded returns the "_embedded" object when the service wraps its payload
func embedded(resp map[string]interface{}) map[string]interface{} {
	if inner, ok := resp["_embedded"].(map[string]interface{}); ok {
		return inner
	}
	return resp
}

func reportID(obj map[string]interface{}) string {
	switch v := obj["id"].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func stringField(obj map[string]interface{}, key string) string {
	switch v := obj[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// findings extracts the record list of a finished report. A missing or null
// list is an empty report, not an error.
func findings(reportID string, obj map[string]interface{}) ([]domain.Record, error) {
	switch raw := obj["findings"].(type) {
	case nil:
		return []domain.Record{}, nil
	case []domain.Record:
		return raw, nil
	case []interface{}:
		records := make([]domain.Record, 0, len(raw))
		for i, item := range raw {
			rec, ok := item.(map[string]interface{})
			if !ok {
				return nil, apperrors.NewMalformedResponseError(
					fmt.Sprintf("report %s: finding %d is %T, not an object", reportID, i, item))
			}
			records = append(records, rec)
		}
		return records, nil
	default:
		return nil, apperrors.NewMalformedResponseError(
			fmt.Sprintf("report %s: findings is %T, not a list", reportID, raw))
	}
}
