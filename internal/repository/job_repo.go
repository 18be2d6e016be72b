package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sms-screening-service/internal/models"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrJobNotFound is returned for unknown job IDs
var ErrJobNotFound = errors.New("job not found")

// MemoryPath keeps the database in process memory
const MemoryPath = ":memory:"

// JobRepository stores batch jobs and their result rows
type JobRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewJobRepository opens the database at dbPath and creates the schema
func NewJobRepository(dbPath string, logger *zap.Logger) (*JobRepository, error) {
	if dbPath == "" {
		dbPath = MemoryPath
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: would see its own empty database
	db.SetMaxOpenConns(1)

	repo := &JobRepository{
		db:     db,
		logger: logger,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Job repository initialized", zap.String("db_path", dbPath))

	return repo, nil
}

// migrate creates tables
func (r *JobRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		total_count INTEGER NOT NULL,
		processed_count INTEGER DEFAULT 0,
		failed_count INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL,
		completed_at DATETIME,
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_job_status ON jobs(status);

	CREATE TABLE IF NOT EXISTS results (
		job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		row_index INTEGER NOT NULL,
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		"case" TEXT NOT NULL,
		category TEXT NOT NULL,
		note TEXT NOT NULL,
		PRIMARY KEY (job_id, row_index)
	);
	`

	_, err := r.db.Exec(schema)
	return err
}

// CreateJob inserts a new job
func (r *JobRepository) CreateJob(job *models.Job) error {
	query := `
		INSERT INTO jobs (id, filename, status, total_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := r.db.Exec(query, job.ID, job.Filename, job.Status, job.TotalCount, job.CreatedAt); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// SetStatus updates a job's status. completedAt is set for terminal states.
func (r *JobRepository) SetStatus(jobID, status, errorMessage string, completedAt *time.Time) error {
	query := `
		UPDATE jobs
		SET status = ?, completed_at = ?, error_message = ?
		WHERE id = ?
	`

	res, err := r.db.Exec(query, status, completedAt, errorMessage, jobID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// AppendResult stores the result row at index and advances the job's progress
func (r *JobRepository) AppendResult(jobID string, index int, res models.ResultRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO results (job_id, row_index, sender, text, "case", category, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, jobID, index, res.Sender, res.Text, string(res.Case), res.Category, res.Note)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	failed := 0
	if res.Case == models.CaseError {
		failed = 1
	}
	_, err = tx.Exec(`
		UPDATE jobs SET processed_count = processed_count + 1, failed_count = failed_count + ?
		WHERE id = ?
	`, failed, jobID)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}

	return tx.Commit()
}

// GetJob retrieves a job by ID
func (r *JobRepository) GetJob(jobID string) (*models.Job, error) {
	query := `
		SELECT id, filename, status, total_count, processed_count, failed_count, created_at, completed_at, error_message
		FROM jobs
		WHERE id = ?
	`

	job := &models.Job{}
	var completedAt sql.NullTime
	err := r.db.QueryRow(query, jobID).Scan(
		&job.ID,
		&job.Filename,
		&job.Status,
		&job.TotalCount,
		&job.ProcessedCount,
		&job.FailedCount,
		&job.CreatedAt,
		&completedAt,
		&job.ErrorMessage,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

// ListJobs returns all jobs, newest first
func (r *JobRepository) ListJobs() ([]*models.Job, error) {
	rows, err := r.db.Query(`SELECT id FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	rows.Close()

	jobs := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		job, err := r.GetJob(id)
		if err != nil {
			r.logger.Error("Failed to load job", zap.String("job_id", id), zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// GetResults returns a job's rows in input order
func (r *JobRepository) GetResults(jobID string) ([]models.ResultRecord, error) {
	if _, err := r.GetJob(jobID); err != nil {
		return nil, err
	}

	query := `
		SELECT sender, text, "case", category, note
		FROM results
		WHERE job_id = ?
		ORDER BY row_index
	`

	rows, err := r.db.Query(query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := []models.ResultRecord{}
	for rows.Next() {
		var res models.ResultRecord
		var c string
		if err := rows.Scan(&res.Sender, &res.Text, &c, &res.Category, &res.Note); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		res.Case = models.Case(c)
		results = append(results, res)
	}

	return results, rows.Err()
}

// DeleteJob removes a job and its results
func (r *JobRepository) DeleteJob(jobID string) error {
	if _, err := r.db.Exec(`DELETE FROM results WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	res, err := r.db.Exec(`DELETE FROM jobs WHERE id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Close closes the database connection
func (r *JobRepository) Close() error {
	return r.db.Close()
}
