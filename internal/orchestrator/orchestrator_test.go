package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/findings-exporter/internal/collector"
	"github.com/kurihiro0119/findings-exporter/internal/domain"
	apperrors "github.com/kurihiro0119/findings-exporter/internal/errors"
	"github.com/kurihiro0119/findings-exporter/internal/planner"
	"github.com/kurihiro0119/findings-exporter/internal/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeCollector returns per-interval records or errors keyed by interval index
type fakeCollector struct {
	records map[int][]domain.Record
	errs    map[int]error
	seen    []domain.Interval
}

func (f *fakeCollector) RunReport(ctx context.Context, iv domain.Interval) (*domain.ReportJob, error) {
	f.seen = append(f.seen, iv)
	if err := f.errs[iv.Index]; err != nil {
		return nil, err
	}
	return &domain.ReportJob{
		ID:       fmt.Sprintf("r-%d", iv.Index),
		Interval: iv,
		Status:   domain.JobStatusSuccess,
		Polls:    1,
		Records:  f.records[iv.Index],
	}, nil
}

func eighteenMonths() domain.TimeRange {
	return domain.TimeRange{Start: date(2022, time.January, 1), End: date(2023, time.July, 1)}
}

func TestExecute_FailFastDiscardsPartialResult(t *testing.T) {
	failure := apperrors.NewUnexpectedStatusError("r-1", "FAILED")
	fc := &fakeCollector{
		records: map[int][]domain.Record{0: {{"id": "first"}}, 2: {{"id": "third"}}},
		errs:    map[int]error{1: failure},
	}

	result, err := New(fc, WithLogger(quietLogger())).Execute(context.Background(), eighteenMonths())

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, failure)
	assert.True(t, apperrors.IsUnexpectedStatus(err))

	var ivErr *IntervalError
	require.True(t, errors.As(err, &ivErr))
	assert.Equal(t, 1, ivErr.Interval.Index)
	assert.Equal(t, 3, ivErr.Total)
	assert.Contains(t, err.Error(), "interval 2/3")

	// interval 3 must never be submitted
	assert.Len(t, fc.seen, 2)
}

func TestExecute_ConcatenatesInIntervalOrder(t *testing.T) {
	fc := &fakeCollector{records: map[int][]domain.Record{
		0: {{"id": "a"}, {"id": "b"}},
		1: {},
		2: {{"id": "c"}, {"id": "a"}},
	}}

	var progress []string
	o := New(fc, WithLogger(quietLogger()), WithIntervalCallback(func(iv domain.Interval, total int) {
		progress = append(progress, fmt.Sprintf("%d/%d", iv.Index+1, total))
	}))

	result, err := o.Execute(context.Background(), eighteenMonths())
	require.NoError(t, err)
	require.False(t, result.Empty())

	var ids []string
	for _, r := range result.Records {
		ids = append(ids, r["id"].(string))
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, ids, "order kept and duplicates preserved")
	assert.Equal(t, []string{"1/3", "2/3", "3/3"}, progress)

	require.Len(t, result.Jobs, 3)
	assert.Equal(t, "r-0", result.Jobs[0].ReportID)
	assert.Equal(t, 2, result.Jobs[0].RecordCount)
	assert.Equal(t, 0, result.Jobs[1].RecordCount)
}

func TestExecute_AllEmptyIsNoFindings(t *testing.T) {
	fc := &fakeCollector{}

	result, err := New(fc, WithLogger(quietLogger())).Execute(context.Background(), eighteenMonths())
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.NotNil(t, result.Records)
	assert.Len(t, result.Jobs, 3)
}

func TestExecute_EmptyRangeDoesNoWork(t *testing.T) {
	fc := &fakeCollector{}
	start := date(2024, time.May, 1)

	result, err := New(fc, WithLogger(quietLogger())).Execute(context.Background(), domain.TimeRange{Start: start, End: start})
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Empty(t, fc.seen)
}

func TestExecute_InvalidSpan(t *testing.T) {
	_, err := New(&fakeCollector{}, WithSpan(planner.Span{}), WithLogger(quietLogger())).Execute(context.Background(), eighteenMonths())
	assert.Error(t, err)
}

// TestExecute_ThirteenMonthsEndToEnd drives the real collector through a
// transport double to count submissions.
func TestExecute_ThirteenMonthsEndToEnd(t *testing.T) {
	var submits []map[string]interface{}
	tr := transport.Func(func(ctx context.Context, method, url string, body map[string]interface{}) (map[string]interface{}, error) {
		if method == "POST" {
			submits = append(submits, body)
			return map[string]interface{}{"id": fmt.Sprintf("job-%d", len(submits))}, nil
		}
		id := url[strings.LastIndex(url, "/")+1:]
		return map[string]interface{}{
			"status": "SUCCESS",
			"findings": []interface{}{
				map[string]interface{}{"job": id, "n": 1},
				map[string]interface{}{"job": id, "n": 2},
			},
		}, nil
	})

	c := collector.NewAnalyticsCollector(tr, "https://api.example.test/report", collector.WithLogger(quietLogger()))
	rng := domain.TimeRange{Start: date(2023, time.March, 1), End: date(2024, time.April, 1)}

	result, err := New(c, WithLogger(quietLogger())).Execute(context.Background(), rng)
	require.NoError(t, err)

	require.Len(t, submits, 3)
	assert.Equal(t, "2023-03-01 00:00:00", submits[0]["last_updated_start_date"])
	assert.Equal(t, "2023-09-01 00:00:00", submits[0]["last_updated_end_date"])
	assert.Equal(t, "2023-09-01 00:00:00", submits[1]["last_updated_start_date"])
	assert.Equal(t, "2024-03-01 00:00:00", submits[1]["last_updated_end_date"])
	assert.Equal(t, "2024-03-01 00:00:00", submits[2]["last_updated_start_date"])
	assert.Equal(t, "2024-04-01 00:00:00", submits[2]["last_updated_end_date"])

	require.Len(t, result.Records, 6)
	var order []string
	for _, r := range result.Records {
		order = append(order, fmt.Sprintf("%s#%v", r["job"], r["n"]))
	}
	assert.Equal(t, []string{"job-1#1", "job-1#2", "job-2#1", "job-2#2", "job-3#1", "job-3#2"}, order)
}

// blockingCollector waits for ctx to end, like a report that never finishes
type blockingCollector struct{}

func (blockingCollector) RunReport(ctx context.Context, iv domain.Interval) (*domain.ReportJob, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestExecute_JobTimeout(t *testing.T) {
	o := New(blockingCollector{}, WithJobTimeout(10*time.Millisecond), WithLogger(quietLogger()))

	result, err := o.Execute(context.Background(), eighteenMonths())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
