package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
	apperrors "github.com/kurihiro0119/findings-exporter/internal/errors"
	"github.com/kurihiro0119/findings-exporter/internal/storage"
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		range_start TIMESTAMPTZ NOT NULL,
		range_end TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL,
		interval_count INTEGER NOT NULL,
		finding_count INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

	CREATE TABLE IF NOT EXISTS report_jobs (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		interval_index INTEGER NOT NULL,
		range_start TIMESTAMPTZ NOT NULL,
		range_end TIMESTAMPTZ NOT NULL,
		report_id TEXT NOT NULL,
		status TEXT NOT NULL,
		polls INTEGER NOT NULL,
		finding_count INTEGER NOT NULL,
		PRIMARY KEY (run_id, interval_index)
	);

	CREATE TABLE IF NOT EXISTS findings (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		data JSONB NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRun stores a run, its jobs and its findings in one transaction
func (s *postgresStorage) SaveRun(ctx context.Context, run *domain.Run, jobs []*domain.StoredJob, findings []domain.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, range_start, range_end, status, interval_count, finding_count, error, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			interval_count = EXCLUDED.interval_count,
			finding_count = EXCLUDED.finding_count,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at
	`,
		run.ID,
		run.Start,
		run.End,
		string(run.Status),
		run.IntervalCount,
		run.FindingCount,
		run.Error,
		run.CreatedAt,
		run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	// Replace any rows from a previous save of the same run
	if _, err := tx.ExecContext(ctx, `DELETE FROM report_jobs WHERE run_id = $1`, run.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE run_id = $1`, run.ID); err != nil {
		return err
	}

	// COPY keeps large finding sets fast
	jobStmt, err := tx.PrepareContext(ctx, pq.CopyIn("report_jobs",
		"run_id", "interval_index", "range_start", "range_end", "report_id", "status", "polls", "finding_count"))
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if _, err := jobStmt.ExecContext(ctx,
			run.ID,
			job.IntervalIndex,
			job.Start,
			job.End,
			job.ReportID,
			job.Status,
			job.Polls,
			job.FindingCount,
		); err != nil {
			jobStmt.Close()
			return fmt.Errorf("failed to save report job %d: %w", job.IntervalIndex, err)
		}
	}
	if _, err := jobStmt.ExecContext(ctx); err != nil {
		jobStmt.Close()
		return err
	}
	if err := jobStmt.Close(); err != nil {
		return err
	}

	findingStmt, err := tx.PrepareContext(ctx, pq.CopyIn("findings", "run_id", "seq", "data"))
	if err != nil {
		return err
	}
	for i, finding := range findings {
		data, err := json.Marshal(finding)
		if err != nil {
			findingStmt.Close()
			return err
		}
		if _, err := findingStmt.ExecContext(ctx, run.ID, i, string(data)); err != nil {
			findingStmt.Close()
			return fmt.Errorf("failed to save finding %d: %w", i, err)
		}
	}
	if _, err := findingStmt.ExecContext(ctx); err != nil {
		findingStmt.Close()
		return err
	}
	if err := findingStmt.Close(); err != nil {
		return err
	}

	return tx.Commit()
}

const runColumns = `id, range_start, range_end, status, interval_count, finding_count, error, created_at, completed_at`

// GetRun retrieves a run by id
func (s *postgresStorage) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("run " + id)
	}
	return run, err
}

// ListRuns retrieves the most recent runs first
func (s *postgresStorage) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetJobs retrieves the report jobs of a run
func (s *postgresStorage) GetJobs(ctx context.Context, runID string) ([]*domain.StoredJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, interval_index, range_start, range_end, report_id, status, polls, finding_count
		FROM report_jobs WHERE run_id = $1 ORDER BY interval_index
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.StoredJob
	for rows.Next() {
		job := &domain.StoredJob{}
		if err := rows.Scan(&job.RunID, &job.IntervalIndex, &job.Start, &job.End, &job.ReportID, &job.Status, &job.Polls, &job.FindingCount); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetFindings retrieves the findings of a run in fetch order
func (s *postgresStorage) GetFindings(ctx context.Context, runID string) ([]domain.Record, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM findings WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	findings := []domain.Record{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var record domain.Record
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&record); err != nil {
			return nil, fmt.Errorf("failed to decode stored finding: %w", err)
		}
		findings = append(findings, record)
	}
	return findings, rows.Err()
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	run := &domain.Run{}
	var status string
	if err := row.Scan(
		&run.ID,
		&run.Start,
		&run.End,
		&status,
		&run.IntervalCount,
		&run.FindingCount,
		&run.Error,
		&run.CreatedAt,
		&run.CompletedAt,
	); err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	return run, nil
}
