package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kurihiro0119/findings-exporter/internal/domain"
	apperrors "github.com/kurihiro0119/findings-exporter/internal/errors"
	"github.com/kurihiro0119/findings-exporter/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		range_start TIMESTAMP NOT NULL,
		range_end TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		interval_count INTEGER NOT NULL,
		finding_count INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

	CREATE TABLE IF NOT EXISTS report_jobs (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		interval_index INTEGER NOT NULL,
		range_start TIMESTAMP NOT NULL,
		range_end TIMESTAMP NOT NULL,
		report_id TEXT NOT NULL,
		status TEXT NOT NULL,
		polls INTEGER NOT NULL,
		finding_count INTEGER NOT NULL,
		PRIMARY KEY (run_id, interval_index)
	);

	CREATE TABLE IF NOT EXISTS findings (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRun stores a run, its jobs and its findings in one transaction
func (s *sqliteStorage) SaveRun(ctx context.Context, run *domain.Run, jobs []*domain.StoredJob, findings []domain.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, range_start, range_end, status, interval_count, finding_count, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			interval_count = excluded.interval_count,
			finding_count = excluded.finding_count,
			error = excluded.error,
			completed_at = excluded.completed_at
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
	if _, err := tx.ExecContext(ctx, `DELETE FROM report_jobs WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE run_id = ?`, run.ID); err != nil {
		return err
	}

	jobStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO report_jobs (run_id, interval_index, range_start, range_end, report_id, status, polls, finding_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer jobStmt.Close()

	for _, job := range jobs {
		_, err = jobStmt.ExecContext(ctx,
			run.ID,
			job.IntervalIndex,
			job.Start,
			job.End,
			job.ReportID,
			job.Status,
			job.Polls,
			job.FindingCount,
		)
		if err != nil {
			return fmt.Errorf("failed to save report job %d: %w", job.IntervalIndex, err)
		}
	}

	findingStmt, err := tx.PrepareContext(ctx, `INSERT INTO findings (run_id, seq, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer findingStmt.Close()

	for i, finding := range findings {
		data, err := json.Marshal(finding)
		if err != nil {
			return err
		}
		if _, err := findingStmt.ExecContext(ctx, run.ID, i, string(data)); err != nil {
			return fmt.Errorf("failed to save finding %d: %w", i, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, range_start, range_end, status, interval_count, finding_count, error, created_at, completed_at`

// GetRun retrieves a run by id
func (s *sqliteStorage) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("run " + id)
	}
	return run, err
}

// ListRuns retrieves the most recent runs first
func (s *sqliteStorage) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
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
func (s *sqliteStorage) GetJobs(ctx context.Context, runID string) ([]*domain.StoredJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, interval_index, range_start, range_end, report_id, status, polls, finding_count
		FROM report_jobs WHERE run_id = ? ORDER BY interval_index
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
func (s *sqliteStorage) GetFindings(ctx context.Context, runID string) ([]domain.Record, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM findings WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	findings := []domain.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		record, err := decodeRecord([]byte(data))
		if err != nil {
			return nil, err
		}
		findings = append(findings, record)
	}
	return findings, rows.Err()
}

// Close closes the database connection
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*domain.Run, error) {
	run := &domain.Run{}
	var status string
	err := row.Scan(
		&run.ID,
		&run.Start,
		&run.End,
		&status,
		&run.IntervalCount,
		&run.FindingCount,
		&run.Error,
		&run.CreatedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	return run, nil
}

func decodeRecord(data []byte) (domain.Record, error) {
	var record domain.Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode stored finding: %w", err)
	}
	return record, nil
}
