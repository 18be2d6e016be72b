package service

import (
	"context"
	"testing"
	"time"

	"sms-screening-service/internal/models"
	"sms-screening-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newJobManager(t *testing.T, c Classifier, workers int) *JobManager {
	t.Helper()
	repo, err := repository.NewJobRepository(repository.MemoryPath, zap.NewNop())
	require.NoError(t, err)

	m := NewJobManager(newScreener(c, workers), repo, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.Shutdown(ctx)
		repo.Close()
	})
	return m
}

func waitForStatus(t *testing.T, m *JobManager, jobID string, statuses ...string) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		j, err := m.Get(jobID)
		if err != nil {
			return false
		}
		job = j
		for _, s := range statuses {
			if j.Status == s {
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestJobCompletes(t *testing.T) {
	fake := &fakeClassifier{verdicts: map[string]models.Verdict{
		"message 1": {Case: models.CaseError, Category: models.CategoryAPIFailure, Note: "API Error or Format Error: boom"},
	}}
	m := newJobManager(t, fake, 2)

	input := records(4)
	input[2].Text = "ด่วน เงินด่วน อนุมัติไว"

	job, err := m.Start("batch.csv", input)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, job.Status)
	assert.Equal(t, 4, job.TotalCount)

	job = waitForStatus(t, m, job.ID, models.JobCompleted)
	assert.Equal(t, 4, job.ProcessedCount)
	assert.Equal(t, 1, job.FailedCount)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.ErrorMessage)

	results, err := m.Results(job.ID)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, input[i].Sender, r.Sender)
		assert.Equal(t, input[i].Text, r.Text)
	}
	assert.Equal(t, models.CaseError, results[1].Case)
	assert.Equal(t, models.CategoryGamblingLoan, results[2].Category)

	assert.ErrorIs(t, m.Cancel(job.ID), ErrJobFinished)

	jobs, err := m.List()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestJobCancel(t *testing.T) {
	fake := &fakeClassifier{delay: func(string) time.Duration { return 20 * time.Millisecond }}
	m := newJobManager(t, fake, 1)

	job, err := m.Start("slow.csv", records(100))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := m.Get(job.ID)
		return err == nil && j.ProcessedCount >= 2
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Cancel(job.ID))

	job = waitForStatus(t, m, job.ID, models.JobCancelled)
	assert.Less(t, job.ProcessedCount, 100)
	assert.Contains(t, job.ErrorMessage, "context canceled")

	results, err := m.Results(job.ID)
	require.NoError(t, err)
	assert.Len(t, results, job.ProcessedCount)
	for _, r := range results {
		assert.NotEqual(t, models.CaseError, r.Case)
	}
}

func TestJobDeleteStopsRunningJob(t *testing.T) {
	fake := &fakeClassifier{delay: func(string) time.Duration { return 20 * time.Millisecond }}
	m := newJobManager(t, fake, 1)

	job, err := m.Start("slow.csv", records(100))
	require.NoError(t, err)

	require.NoError(t, m.Delete(context.Background(), job.ID))

	_, err = m.Get(job.ID)
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
	_, err = m.Results(job.ID)
	assert.ErrorIs(t, err, repository.ErrJobNotFound)

	assert.ErrorIs(t, m.Delete(context.Background(), job.ID), repository.ErrJobNotFound)
}

func TestJobUnknown(t *testing.T) {
	m := newJobManager(t, &fakeClassifier{}, 1)

	_, err := m.Get("nope")
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
	assert.ErrorIs(t, m.Cancel("nope"), repository.ErrJobNotFound)
}

func TestShutdownStopsJobs(t *testing.T) {
	fake := &fakeClassifier{delay: func(string) time.Duration { return 20 * time.Millisecond }}
	m := newJobManager(t, fake, 3)

	job, err := m.Start("slow.csv", records(200))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	job, err = m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCancelled, job.Status)
}
