package handler

import (
	"net/http"

	"sms-screening-service/internal/export"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StartJob uploads a file and screens it in the background
func (h *Handler) StartJob(c *gin.Context) {
	filename, records, ok := h.readUpload(c)
	if !ok {
		return
	}

	job, err := h.jobs.Start(filename, records)
	if err != nil {
		h.logger.Error("Failed to start batch job", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, ErrKindInternal, "failed to start batch job")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  job.ID,
		"status":  job.Status,
		"total":   job.TotalCount,
		"message": "Batch screening started. Check /api/v1/jobs/" + job.ID + " for status",
	})
}

// ListJobs returns every known job
func (h *Handler) ListJobs(c *gin.Context) {
	jobs, err := h.jobs.List()
	if err != nil {
		h.failJob(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetJob returns batch job status
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Param("id"))
	if err != nil {
		h.failJob(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetJobResults returns the rows a job has produced so far
func (h *Handler) GetJobResults(c *gin.Context) {
	jobID := c.Param("id")

	results, err := h.jobs.Results(jobID)
	if err != nil {
		h.failJob(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"data":   results,
		"total":  len(results),
	})
}

// ExportJob downloads a job's results
func (h *Handler) ExportJob(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		h.fail(c, http.StatusBadRequest, ErrKindUnsupportedFormat, err.Error())
		return
	}

	results, err := h.jobs.Results(c.Param("id"))
	if err != nil {
		h.failJob(c, err)
		return
	}

	h.download(c, format, results)
}

// CancelJob stops a running job and keeps the rows it produced
func (h *Handler) CancelJob(c *gin.Context) {
	jobID := c.Param("id")
	if err := h.jobs.Cancel(jobID); err != nil {
		h.failJob(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"message": "Cancellation requested",
	})
}

// DeleteJob stops a job if needed and removes it with its results
func (h *Handler) DeleteJob(c *gin.Context) {
	jobID := c.Param("id")
	if err := h.jobs.Delete(c.Request.Context(), jobID); err != nil {
		h.failJob(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":  jobID,
		"message": "Job deleted",
	})
}
