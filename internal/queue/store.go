package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages conversion job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the queue database.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure queue directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Enqueue records a conversion job for an hour holding sourceCount raw
// files. Hours already pending or running are left alone; hours that
// previously finished or failed are reset to pending so a catch-up scan can
// retry them. The second return value reports whether the call changed the
// queue.
func (s *Store) Enqueue(ctx context.Context, hourKey string, sourceCount int) (*Job, bool, error) {
	now := timestamp()

	existing, err := s.GetByHour(ctx, hourKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		switch existing.Status {
		case StatusPending, StatusRunning:
			return existing, false, nil
		default:
			if _, err := s.execWithRetry(
				ctx,
				`UPDATE conversion_jobs
                 SET status = ?, error_message = NULL, source_count = ?, updated_at = ?, started_at = NULL, finished_at = NULL
                 WHERE id = ?`,
				StatusPending, sourceCount, now, existing.ID,
			); err != nil {
				return nil, false, fmt.Errorf("requeue job: %w", err)
			}
			job, err := s.GetByID(ctx, existing.ID)
			return job, true, err
		}
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO conversion_jobs (hour_key, status, source_count, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		hourKey, StatusPending, sourceCount, now, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}
	job, err := s.GetByID(ctx, id)
	return job, true, err
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM conversion_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetByHour fetches the job for an hour key, or nil when none exists.
func (s *Store) GetByHour(ctx context.Context, hourKey string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM conversion_jobs WHERE hour_key = ?`, hourKey)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by hour: %w", err)
	}
	return job, nil
}

// NextPending returns the oldest pending job, or nil when the queue is empty.
func (s *Store) NextPending(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM conversion_jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`,
		StatusPending,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending job: %w", err)
	}
	return job, nil
}

// MarkRunning transitions a job to running and counts the attempt.
func (s *Store) MarkRunning(ctx context.Context, id int64) error {
	now := timestamp()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, attempts = attempts + 1, started_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusRunning, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	return nil
}

// MarkSucceeded finalizes a job after its products were archived.
func (s *Store) MarkSucceeded(ctx context.Context, id int64) error {
	now := timestamp()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, error_message = NULL, finished_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusSucceeded, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark succeeded: %w", err)
	}
	return nil
}

// MarkFailed records a conversion failure without blocking later jobs.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	now := timestamp()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed, message, now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ResetStuckRunning returns jobs left running by an earlier process to
// pending. Called once during startup, before the worker begins.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, started_at = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending, timestamp(), StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to pending.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, error_message = NULL, started_at = NULL, finished_at = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending, timestamp(), StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// List returns jobs filtered by status set, oldest first. With no statuses
// every job is returned.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM conversion_jobs`
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Health aggregates job counts by status.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM conversion_jobs GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	defer rows.Close()

	var health HealthSummary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, err
		}
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusRunning:
			health.Running += count
		case StatusSucceeded:
			health.Succeeded += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, rows.Err()
}

// ClearSucceeded removes finished jobs.
func (s *Store) ClearSucceeded(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM conversion_jobs WHERE status = ?`, StatusSucceeded)
	if err != nil {
		return 0, fmt.Errorf("clear succeeded: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM conversion_jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all jobs.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM conversion_jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, hour_key, status, error_message, attempts, source_count, created_at, updated_at, started_at, finished_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           int64
		hourKey      string
		statusStr    string
		errorMessage sql.NullString
		attempts     int
		sourceCount  int
		createdRaw   string
		updatedRaw   string
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(&id, &hourKey, &statusStr, &errorMessage, &attempts, &sourceCount, &createdRaw, &updatedRaw, &startedRaw, &finishedRaw); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		HourKey:      hourKey,
		Status:       Status(statusStr),
		ErrorMessage: errorMessage.String,
		Attempts:     attempts,
		SourceCount:  sourceCount,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return job, nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
