package scheduler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/threadsight/threadsight/internal/models"
)

// Ledger persists job records in SQLite so job history survives restarts.
// The in-memory job table is authoritative while the process runs; the
// ledger is written through on every status change.
type Ledger struct {
	db *sql.DB
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	config       TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	started_at   TEXT,
	completed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at);
`

// OpenLedger opens (or creates) the job ledger at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open job ledger %s: %w", path, err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init job ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Insert records a newly submitted job.
func (l *Ledger) Insert(job models.Job) error {
	cfg, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("marshal job config: %w", err)
	}

	_, err = l.db.Exec(
		`INSERT INTO jobs (id, config, status, error, created_at, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(cfg), string(job.Status), job.Error,
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullTime(job.StartedAt), nullTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// Update writes the current status fields of a job.
func (l *Ledger) Update(job models.Job) error {
	_, err := l.db.Exec(
		`UPDATE jobs SET status = ?, error = ?, started_at = ?, completed_at = ? WHERE id = ?`,
		string(job.Status), job.Error,
		nullTime(job.StartedAt), nullTime(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	return nil
}

// List returns all recorded jobs ordered by submission time, oldest first.
func (l *Ledger) List() ([]models.Job, error) {
	rows, err := l.db.Query(
		`SELECT id, config, status, error, created_at, started_at, completed_at
		 FROM jobs ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var (
			job                  models.Job
			cfg                  string
			status               string
			created              string
			startedAt, completed sql.NullString
		)
		if err := rows.Scan(&job.ID, &cfg, &status, &job.Error, &created, &startedAt, &completed); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}

		if err := json.Unmarshal([]byte(cfg), &job.Config); err != nil {
			return nil, fmt.Errorf("parse config for job %s: %w", job.ID, err)
		}
		job.Status = models.JobStatus(status)

		if job.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at for job %s: %w", job.ID, err)
		}
		if job.StartedAt, err = parseNullTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at for job %s: %w", job.ID, err)
		}
		if job.CompletedAt, err = parseNullTime(completed); err != nil {
			return nil, fmt.Errorf("parse completed_at for job %s: %w", job.ID, err)
		}

		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
