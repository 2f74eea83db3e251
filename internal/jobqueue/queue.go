package jobqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"webp-renditions/internal/filesystem"
	"webp-renditions/internal/logging"
	"webp-renditions/internal/metrics"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
)

// ErrEmpty is returned by Claim when no job is pending.
var ErrEmpty = errors.New("job queue is empty")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Spec describes a job to push.
type Spec struct {
	Type   string
	Params any
	// DedupKey suppresses a push while a pending job has the same key.
	// Empty keys never deduplicate.
	DedupKey string
}

// Job is a queued unit of work.
type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Params    json.RawMessage `json:"params"`
	DedupKey  string          `json:"dedup_key,omitempty"`
	Status    Status          `json:"status"`
	Attempts  int             `json:"attempts"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Decode unmarshals the job parameters into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Params, v); err != nil {
		return fmt.Errorf("invalid %s params: %w", j.Type, err)
	}
	return nil
}

// Stats holds job counts per status.
type Stats struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
}

// Queue is a persistent job queue in a SQLite database.
type Queue struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	params TEXT NOT NULL,
	dedup_key TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs(status, created_at);

-- At most one pending job per dedup key
CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_pending_dedup
	ON jobs(dedup_key) WHERE status = 'pending' AND dedup_key != '';
`

// Open opens or creates the queue database at path. ":memory:" gives a
// private in-memory queue.
func Open(ctx context.Context, path string) (*Queue, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		info, err := filesystem.StatWithRetry(dir, filesystem.DefaultRetryConfig())
		if err != nil {
			return nil, fmt.Errorf("queue directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("queue directory %s is not a directory", dir)
		}
	}

	connStr := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open job queue: %w", err)
	}

	// Claims read then write in one statement; a single connection keeps
	// them serialized and lets ":memory:" share one database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to job queue: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize job queue schema: %w", err)
	}

	logging.Info("Job queue opened at %s", path)
	return &Queue{db: db, path: path, now: time.Now}, nil
}

// Close closes the database.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Push enqueues a job. It returns the job ID and false when a pending job
// with the same dedup key already exists; the ID is then empty.
func (q *Queue) Push(ctx context.Context, spec Spec) (string, bool, error) {
	params, err := json.Marshal(spec.Params)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode %s params: %w", spec.Type, err)
	}

	id := uuid.NewString()
	now := q.now().UnixNano()

	res, err := q.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO jobs (id, type, params, dedup_key, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', ?, ?)`,
		id, spec.Type, string(params), spec.DedupKey, now, now)
	if err != nil {
		return "", false, fmt.Errorf("failed to push %s job: %w", spec.Type, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("failed to push %s job: %w", spec.Type, err)
	}

	queued := n > 0
	metrics.JobsEnqueuedTotal.WithLabelValues(spec.Type, strconv.FormatBool(!queued)).Inc()
	if !queued {
		logging.Debug("Skipping duplicate %s job %s", spec.Type, spec.DedupKey)
		return "", false, nil
	}
	return id, true, nil
}

// PushAll enqueues specs and returns how many were new.
func (q *Queue) PushAll(ctx context.Context, specs []Spec) (int, error) {
	queued := 0
	for _, spec := range specs {
		_, ok, err := q.Push(ctx, spec)
		if err != nil {
			return queued, err
		}
		if ok {
			queued++
		}
	}
	return queued, nil
}

// Claim marks the oldest pending job running and returns it, or ErrEmpty.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET status = 'running', attempts = attempts + 1, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs WHERE status = 'pending'
			ORDER BY created_at, rowid LIMIT 1
		)
		RETURNING id, type, params, dedup_key, status, attempts, error, created_at, updated_at`,
		q.now().UnixNano())

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

// Complete marks a running job done.
func (q *Queue) Complete(ctx context.Context, id string) error {
	return q.finish(ctx, id, StatusDone, "")
}

// Fail marks a running job failed and records the cause.
func (q *Queue) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return q.finish(ctx, id, StatusFailed, msg)
}

func (q *Queue) finish(ctx context.Context, id string, status Status, msg string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ? AND status = 'running'`,
		string(status), msg, q.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job %s %s: %w", id, status, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s is not running", id)
	}
	return nil
}

// Requeue returns jobs left running by a previous process to pending.
// Call it before starting workers.
func (q *Queue) Requeue(ctx context.Context) (int64, error) {
	// A pending duplicate may already exist; drop the running copy then.
	if _, err := q.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE status = 'running' AND dedup_key != ''
		AND dedup_key IN (SELECT dedup_key FROM jobs WHERE status = 'pending')`); err != nil {
		return 0, fmt.Errorf("failed to requeue jobs: %w", err)
	}

	res, err := q.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'pending', updated_at = ? WHERE status = 'running'`,
		q.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to requeue jobs: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes finished jobs last updated before cutoff.
func (q *Queue) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN ('done', 'failed') AND updated_at < ?`,
		cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats counts jobs per status.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, fmt.Errorf("failed to read queue stats: %w", err)
		}
		switch Status(status) {
		case StatusPending:
			stats.Pending = n
		case StatusRunning:
			stats.Running = n
		case StatusDone:
			stats.Done = n
		case StatusFailed:
			stats.Failed = n
		}
	}
	return stats, rows.Err()
}

// Recent lists the most recently updated jobs with the given status.
func (q *Queue) Recent(ctx context.Context, status Status, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, type, params, dedup_key, status, attempts, error, created_at, updated_at
		FROM jobs WHERE status = ? ORDER BY updated_at DESC LIMIT ?`,
		string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s jobs: %w", status, err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s jobs: %w", status, err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var (
		job              Job
		params, status   string
		created, updated int64
	)
	if err := s.Scan(&job.ID, &job.Type, &params, &job.DedupKey, &status,
		&job.Attempts, &job.Error, &created, &updated); err != nil {
		return nil, err
	}
	job.Params = json.RawMessage(params)
	job.Status = Status(status)
	job.CreatedAt = time.Unix(0, created)
	job.UpdatedAt = time.Unix(0, updated)
	return &job, nil
}
