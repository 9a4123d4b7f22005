package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
	apperrors "github.com/kurihiro0119/findings-exporter/internal/errors"
	"github.com/kurihiro0119/findings-exporter/internal/storage"
)

func newTestStorage(t *testing.T) storage.Storage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "findings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string, created time.Time) *domain.Run {
	return &domain.Run{
		ID:            id,
		Start:         time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Status:        domain.RunStatusCompleted,
		IntervalCount: 3,
		FindingCount:  2,
		CreatedAt:     created,
		CompletedAt:   created.Add(time.Minute),
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := testRun("run-1", created)

	jobs := []*domain.StoredJob{
		{RunID: "run-1", IntervalIndex: 1, Start: run.Start, End: run.Start.AddDate(0, 6, 0), ReportID: "r1", Status: "COMPLETED", Polls: 2, FindingCount: 1},
		{RunID: "run-1", IntervalIndex: 0, Start: run.Start, End: run.Start.AddDate(0, 6, 0), ReportID: "r0", Status: "SUCCESS", Polls: 1, FindingCount: 1},
	}
	findings := []domain.Record{
		{"app_name": "billing", "severity": json.Number("4")},
		{"app_name": "portal", "cwe": map[string]interface{}{"id": json.Number("79")}},
	}
	require.NoError(t, s.SaveRun(ctx, run, jobs, findings))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Equal(t, 3, got.IntervalCount)
	assert.Equal(t, 2, got.FindingCount)
	assert.True(t, got.Start.Equal(run.Start))
	assert.True(t, got.CreatedAt.Equal(created))

	storedJobs, err := s.GetJobs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, storedJobs, 2)
	assert.Equal(t, 0, storedJobs[0].IntervalIndex)
	assert.Equal(t, "r0", storedJobs[0].ReportID)
	assert.Equal(t, "r1", storedJobs[1].ReportID)

	storedFindings, err := s.GetFindings(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, storedFindings, 2)
	assert.Equal(t, "billing", storedFindings[0]["app_name"])
	assert.Equal(t, json.Number("4"), storedFindings[0]["severity"])
	assert.Equal(t, map[string]interface{}{"id": json.Number("79")}, storedFindings[1]["cwe"])
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = s.GetFindings(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSaveRunWithoutFindings(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	run := testRun("failed-run", time.Now().UTC())
	run.Status = domain.RunStatusFailed
	run.FindingCount = 0
	run.Error = "interval 2/3: report r2 failed: \"CANCELLED\""
	require.NoError(t, s.SaveRun(ctx, run, nil, nil))

	got, err := s.GetRun(ctx, "failed-run")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, got.Status)
	assert.Equal(t, run.Error, got.Error)

	findings, err := s.GetFindings(ctx, "failed-run")
	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.NotNil(t, findings)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Hour)), nil, nil))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "a", runs[2].ID)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSaveRunReplacesExisting(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	run := testRun("run-1", time.Now().UTC())

	require.NoError(t, s.SaveRun(ctx, run, nil, []domain.Record{{"a": "1"}, {"a": "2"}}))
	run.FindingCount = 1
	require.NoError(t, s.SaveRun(ctx, run, nil, []domain.Record{{"a": "3"}}))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.FindingCount)

	findings, err := s.GetFindings(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "3", findings[0]["a"])
}
