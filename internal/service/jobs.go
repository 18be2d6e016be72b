package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sms-screening-service/internal/models"
	"sms-screening-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrJobFinished is returned when cancelling a job that is no longer running
var ErrJobFinished = errors.New("job is not running")

// JobManager runs screening batches in the background and tracks their progress
type JobManager struct {
	screener *Screener
	repo     *repository.JobRepository
	logger   *zap.Logger

	mu      sync.Mutex
	running map[string]*runningJob
	wg      sync.WaitGroup
}

type runningJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJobManager creates a new job manager
func NewJobManager(screener *Screener, repo *repository.JobRepository, logger *zap.Logger) *JobManager {
	return &JobManager{
		screener: screener,
		repo:     repo,
		logger:   logger,
		running:  make(map[string]*runningJob),
	}
}

// Start registers a job for records and processes it asynchronously
func (m *JobManager) Start(filename string, records []models.InputRecord) (*models.Job, error) {
	job := &models.Job{
		ID:         uuid.New().String(),
		Filename:   filename,
		Status:     models.JobPending,
		TotalCount: len(records),
		CreatedAt:  time.Now(),
	}

	if err := m.repo.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &runningJob{cancel: cancel, done: make(chan struct{})}
	m.mu.Lock()
	m.running[job.ID] = run
	m.mu.Unlock()

	m.wg.Add(1)
	go m.process(ctx, job.ID, records, run)

	m.logger.Info("Batch job started",
		zap.String("job_id", job.ID),
		zap.String("filename", filename),
		zap.Int("rows", len(records)))

	return job, nil
}

// process runs one job to completion or cancellation
func (m *JobManager) process(ctx context.Context, jobID string, records []models.InputRecord, run *runningJob) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.running, jobID)
		m.mu.Unlock()
		run.cancel()
		close(run.done)
	}()

	if err := m.repo.SetStatus(jobID, models.JobRunning, "", nil); err != nil {
		m.logger.Error("Failed to mark job running", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	var saveErr error
	onResult := func(i int, res models.ResultRecord) {
		if err := m.repo.AppendResult(jobID, i, res); err != nil && saveErr == nil {
			saveErr = err
			m.logger.Error("Failed to save result",
				zap.String("job_id", jobID),
				zap.Int("index", i),
				zap.Error(err))
		}
	}

	_, runErr := m.screener.Run(ctx, records, nil, onResult)

	status, message := models.JobCompleted, ""
	switch {
	case runErr != nil:
		status, message = models.JobCancelled, runErr.Error()
	case saveErr != nil:
		status, message = models.JobFailed, saveErr.Error()
	}

	completedAt := time.Now()
	if err := m.repo.SetStatus(jobID, status, message, &completedAt); err != nil {
		m.logger.Error("Failed to finalize job", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	m.logger.Info("Batch job finished",
		zap.String("job_id", jobID),
		zap.String("status", status))
}

// Get returns a job's current state
func (m *JobManager) Get(jobID string) (*models.Job, error) {
	return m.repo.GetJob(jobID)
}

// List returns all known jobs, newest first
func (m *JobManager) List() ([]*models.Job, error) {
	return m.repo.ListJobs()
}

// Results returns the rows a job has produced so far
func (m *JobManager) Results(jobID string) ([]models.ResultRecord, error) {
	return m.repo.GetResults(jobID)
}

// Cancel stops a running job; rows already produced are kept
func (m *JobManager) Cancel(jobID string) error {
	if _, err := m.repo.GetJob(jobID); err != nil {
		return err
	}

	m.mu.Lock()
	run, ok := m.running[jobID]
	m.mu.Unlock()
	if !ok {
		return ErrJobFinished
	}

	run.cancel()
	m.logger.Info("Batch job cancellation requested", zap.String("job_id", jobID))
	return nil
}

// Delete removes a job and its results, stopping it first if it is still running
func (m *JobManager) Delete(ctx context.Context, jobID string) error {
	m.mu.Lock()
	run, ok := m.running[jobID]
	m.mu.Unlock()

	if ok {
		run.cancel()
		select {
		case <-run.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := m.repo.DeleteJob(jobID); err != nil {
		return err
	}

	m.logger.Info("Batch job deleted", zap.String("job_id", jobID))
	return nil
}

// Shutdown cancels running jobs and waits for them to stop
func (m *JobManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, run := range m.running {
		run.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
