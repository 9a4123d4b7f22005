package collector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
	apperrors "github.com/kurihiro0119/findings-exporter/internal/errors"
)

const testBaseURL = "https://api.example.test/appsec/v1/analytics/report"

type call struct {
	method string
	url    string
	body   map[string]interface{}
}

type reply struct {
	resp map[string]interface{}
	err  error
}

// scriptedTransport answers calls from a fixed script and records them
type scriptedTransport struct {
	replies []reply
	calls   []call
}

func (s *scriptedTransport) Call(ctx context.Context, method, url string, body map[string]interface{}) (map[string]interface{}, error) {
	s.calls = append(s.calls, call{method: method, url: url, body: body})
	if len(s.calls) > len(s.replies) {
		return nil, errors.New("unexpected call")
	}
	r := s.replies[len(s.calls)-1]
	return r.resp, r.err
}

type countingWaiter struct {
	waits []time.Duration
	err   error
}

func (w *countingWaiter) Wait(ctx context.Context, d time.Duration) error {
	w.waits = append(w.waits, d)
	return w.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func obj(raw string) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		panic(err)
	}
	return m
}

func testInterval() domain.Interval {
	return domain.Interval{
		Index: 0,
		TimeRange: domain.TimeRange{
			Start: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, time.July, 1, 12, 30, 5, 0, time.UTC),
		},
	}
}

func newTestCollector(tr *scriptedTransport, w *countingWaiter, opts ...Option) Collector {
	opts = append([]Option{WithWaiter(w), WithLogger(quietLogger())}, opts...)
	return NewAnalyticsCollector(tr, testBaseURL, opts...)
}

func TestRunReport_PendingThenSuccess(t *testing.T) {
	tr := &scriptedTransport{replies: []reply{
		{resp: obj(`{"id":"r-42"}`)},
		{resp: obj(`{"status":"SUBMITTED"}`)},
		{resp: obj(`{"status":"PROCESSING"}`)},
		{resp: obj(`{"status":"COMPLETED","findings":[{"app_name":"a"},{"app_name":"b"},{"app_name":"c"}]}`)},
	}}
	w := &countingWaiter{}

	var polled []domain.JobStatus
	c := newTestCollector(tr, w, WithPollCallback(func(id string, attempt int, status domain.JobStatus) {
		assert.Equal(t, "r-42", id)
		assert.Equal(t, len(polled)+1, attempt)
		polled = append(polled, status)
	}))

	job, err := c.RunReport(context.Background(), testInterval())
	require.NoError(t, err)

	require.Len(t, job.Records, 3)
	assert.Equal(t, "a", job.Records[0]["app_name"])
	assert.Equal(t, "b", job.Records[1]["app_name"])
	assert.Equal(t, "c", job.Records[2]["app_name"])
	assert.Equal(t, []time.Duration{DefaultPollInterval, DefaultPollInterval}, w.waits)
	assert.Equal(t, 3, job.Polls)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, []domain.JobStatus{"SUBMITTED", "PROCESSING", "COMPLETED"}, polled)
	assert.Len(t, tr.calls, 4)
}

func TestRunReport_SubmitRequest(t *testing.T) {
	tr := &scriptedTransport{replies: []reply{
		{resp: obj(`{"id":"r-1"}`)},
		{resp: obj(`{"status":"SUCCESS","findings":[]}`)},
	}}

	_, err := newTestCollector(tr, &countingWaiter{}).RunReport(context.Background(), testInterval())
	require.NoError(t, err)

	submit := tr.calls[0]
	assert.Equal(t, "POST", submit.method)
	assert.Equal(t, testBaseURL, submit.url)
	assert.Equal(t, map[string]interface{}{
		"report_type":             "FINDINGS",
		"last_updated_start_date": "2024-01-01 00:00:00",
		"last_updated_end_date":   "2024-07-01 12:30:05",
	}, submit.body)

	status := tr.calls[1]
	assert.Equal(t, "GET", status.method)
	assert.Equal(t, testBaseURL+"/r-1", status.url)
	assert.Nil(t, status.body)
}

func TestRunReport_UnexpectedStatusStopsImmediately(t *testing.T) {
	tr := &scriptedTransport{replies: []reply{
		{resp: obj(`{"id":"r-7"}`)},
		{resp: obj(`{"status":"CANCELLED"}`)},
		{resp: obj(`{"status":"SUCCESS"}`)},
	}}
	w := &countingWaiter{}

	job, err := newTestCollector(tr, w).RunReport(context.Background(), testInterval())
	require.Error(t, err)
	assert.Nil(t, job)
	assert.True(t, apperrors.IsUnexpectedStatus(err))
	assert.Contains(t, err.Error(), "CANCELLED")
	assert.Len(t, tr.calls, 2)
	assert.Empty(t, w.waits)
}

func TestRunReport_MissingStatusIsUnexpected(t *testing.T) {
	tr := &scriptedTransport{replies: []reply{
		{resp: obj(`{"id":"r-7"}`)},
		{resp: obj(`{}`)},
	}}

	_, err := newTestCollector(tr, &countingWaiter{}).RunReport(context.Background(), testInterval())
	assert.True(t, apperrors.IsUnexpectedStatus(err))
}

func TestRunReport_MissingIdentifier(t *testing.T) {
	for _, resp := range []string{`{}`, `{"id":""}`, `{"_embedded":{"status":"SUBMITTED"}}`} {
		tr := &scriptedTransport{replies: []reply{{resp: obj(resp)}}}

		_, err := newTestCollector(tr, &countingWaiter{}).RunReport(context.Background(), testInterval())
		require.Error(t, err, resp)
		assert.True(t, apperrors.IsMissingIdentifier(err), resp)
		assert.Len(t, tr.calls, 1, resp)
	}
}

func TestRunReport_EmbeddedEnvelope(t *testing.T) {
	tr := &scriptedTransport{replies: []reply{
		{resp: obj(`{"_embedded":{"id":"emb-1"}}`)},
		{resp: obj(`{"_embedded":{"status":"SUCCESS","findings":[{"id":1}]}}`)},
	}}

	job, err := newTestCollector(tr, &countingWaiter{}).RunReport(context.Background(), testInterval())
	require.NoError(t, err)
	assert.Equal(t, "emb-1", job.ID)
	assert.Len(t, job.Records, 1)
	assert.Equal(t, testBaseURL+"/emb-1", tr.calls[1].url)
}

func TestRunReport_NumericIdentifier(t *testing.T) {
	tr := &scriptedTransport{replies: []reply{
		{resp: map[string]interface{}{"id": json.Number("9007199254740993")}},
		{resp: obj(`{"status":"SUCCESS"}`)},
	}}

	job, err := newTestCollector(tr, &countingWaiter{}).RunReport(context.Background(), testInterval())
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", job.ID)
}

func TestRunReport_MissingFindingsIsEmpty(t *testing.T) {
	tr := &scriptedTransport{replies: []reply{
		{resp: obj(`{"id":"r-1"}`)},
		{resp: obj(`{"status":"SUCCESS"}`)},
	}}

	job, err := newTestCollector(tr, &countingWaiter{}).RunReport(context.Background(), testInterval())
	require.NoError(t, err)
	assert.NotNil(t, job.Records)
	assert.Empty(t, job.Records)
}

func TestRunReport_MalformedFindings(t *testing.T) {
	for _, resp := range []string{`{"status":"SUCCESS","findings":"none"}`, `{"status":"SUCCESS","findings":[1,2]}`} {
		tr := &scriptedTransport{replies: []reply{
			{resp: obj(`{"id":"r-1"}`)},
			{resp: obj(resp)},
		}}

		_, err := newTestCollector(tr, &countingWaiter{}).RunReport(context.Background(), testInterval())
		assert.Equal(t, apperrors.ErrCodeMalformedResponse, apperrors.CodeOf(err), resp)
	}
}

func TestRunReport_TransportErrors(t *testing.T) {
	boom := apperrors.NewTransportError("POST", testBaseURL, 500, nil)

	tr := &scriptedTransport{replies: []reply{{err: boom}}}
	_, err := newTestCollector(tr, &countingWaiter{}).RunReport(context.Background(), testInterval())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to submit report")

	tr = &scriptedTransport{replies: []reply{
		{resp: obj(`{"id":"r-1"}`)},
		{resp: obj(`{"status":"PROCESSING"}`)},
		{err: boom},
	}}
	_, err = newTestCollector(tr, &countingWaiter{}).RunReport(context.Background(), testInterval())
	assert.True(t, apperrors.IsTransport(err))
	assert.Contains(t, err.Error(), "failed to check report r-1")
}

func TestRunReport_CancelledWhileWaiting(t *testing.T) {
	tr := &scriptedTransport{replies: []reply{
		{resp: obj(`{"id":"r-1"}`)},
		{resp: obj(`{"status":"PROCESSING"}`)},
	}}
	w := &countingWaiter{err: context.Canceled}

	_, err := newTestCollector(tr, w).RunReport(context.Background(), testInterval())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, tr.calls, 2)
}

func TestRunReport_CustomPollInterval(t *testing.T) {
	tr := &scriptedTransport{replies: []reply{
		{resp: obj(`{"id":"r-1"}`)},
		{resp: obj(`{"status":"SUBMITTED"}`)},
		{resp: obj(`{"status":"SUCCESS"}`)},
	}}
	w := &countingWaiter{}

	_, err := newTestCollector(tr, w, WithPollInterval(50*time.Millisecond)).RunReport(context.Background(), testInterval())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{50 * time.Millisecond}, w.waits)
}

func TestClockWaiter(t *testing.T) {
	w := NewWaiter()
	require.NoError(t, w.Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Wait(ctx, time.Hour), context.Canceled)
}
