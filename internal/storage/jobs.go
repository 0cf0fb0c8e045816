package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/escribajus/hearing-transcription/internal/types"
)

// maxErrorLen bounds the persisted error message so a verbose upstream
// response body cannot grow the row without limit.
const maxErrorLen = 1000

// ErrJobNotFound is returned when no job exists with the requested id.
var ErrJobNotFound = fmt.Errorf("job not found")

// CreateJob inserts a new job row
func (d *DB) CreateJob(job *types.Job) error {
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	query := `
	INSERT INTO jobs (id, title, glossary, engine, status, progress, error, media_path, media_kind, media_size, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := d.db.Exec(query, job.ID, job.Title, job.Glossary, job.Engine,
		job.Status, job.Progress, job.Error, job.MediaPath, job.MediaKind,
		job.MediaSize, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %v", err)
	}
	return nil
}

// GetJob retrieves a job by id
func (d *DB) GetJob(id string) (*types.Job, error) {
	query := `
	SELECT id, title, glossary, engine, status, progress, error, media_path, media_kind, media_size, created_at, updated_at
	FROM jobs WHERE id = ?
	`
	var job types.Job
	err := d.db.QueryRow(query, id).Scan(&job.ID, &job.Title, &job.Glossary,
		&job.Engine, &job.Status, &job.Progress, &job.Error, &job.MediaPath,
		&job.MediaKind, &job.MediaSize, &job.CreatedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %v", err)
	}
	return &job, nil
}

// ListJobs returns the most recent jobs
func (d *DB) ListJobs(limit int) ([]types.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
	SELECT id, title, glossary, engine, status, progress, error, media_path, media_kind, media_size, created_at, updated_at
	FROM jobs ORDER BY created_at DESC LIMIT ?
	`
	rows, err := d.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %v", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		var job types.Job
		if err := rows.Scan(&job.ID, &job.Title, &job.Glossary, &job.Engine,
			&job.Status, &job.Progress, &job.Error, &job.MediaPath,
			&job.MediaKind, &job.MediaSize, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %v", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJobStatus sets the job status and progress in one write
func (d *DB) UpdateJobStatus(id, status string, progress int) error {
	query := `UPDATE jobs SET status = ?, progress = ?, updated_at = ? WHERE id = ?`
	_, err := d.db.Exec(query, status, progress, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update job status: %v", err)
	}
	return nil
}

// UpdateJobProgress sets only the progress value
func (d *DB) UpdateJobProgress(id string, progress int) error {
	query := `UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?`
	_, err := d.db.Exec(query, progress, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %v", err)
	}
	return nil
}

// MarkJobError moves the job to the error state, keeping the last progress
// value that was reached. The message is truncated to a bounded length.
func (d *DB) MarkJobError(id, message string) error {
	if len(message) > maxErrorLen {
		message = message[:maxErrorLen]
	}
	query := `UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`
	_, err := d.db.Exec(query, types.StatusError, message, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark job error: %v", err)
	}
	return nil
}

// ResetJobForRun prepares a job for a fresh pipeline run: utterances from a
// previous run are discarded and status/progress/error start over.
func (d *DB) ResetJobForRun(id string) error {
	if err := d.DeleteUtterances(id); err != nil {
		return err
	}
	query := `UPDATE jobs SET status = ?, progress = 0, error = '', updated_at = ? WHERE id = ?`
	_, err := d.db.Exec(query, types.StatusUploading, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to reset job: %v", err)
	}
	return nil
}

// DeleteJob removes a job and, via cascade, its utterances
func (d *DB) DeleteJob(id string) error {
	_, err := d.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %v", err)
	}
	return nil
}

// ListStuckJobs returns jobs sitting in a non-terminal status whose last
// update is older than the cutoff. Used by the watchdog sweep.
func (d *DB) ListStuckJobs(cutoff time.Time) ([]types.Job, error) {
	query := `
	SELECT id, title, glossary, engine, status, progress, error, media_path, media_kind, media_size, created_at, updated_at
	FROM jobs WHERE status NOT IN (?, ?) AND updated_at < ?
	`
	rows, err := d.db.Query(query, types.StatusCompleted, types.StatusError, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck jobs: %v", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		var job types.Job
		if err := rows.Scan(&job.ID, &job.Title, &job.Glossary, &job.Engine,
			&job.Status, &job.Progress, &job.Error, &job.MediaPath,
			&job.MediaKind, &job.MediaSize, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %v", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
