package handler

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"sms-screening-service/internal/export"
	"sms-screening-service/internal/ingest"
	"sms-screening-service/internal/models"
	"sms-screening-service/internal/repository"
	"sms-screening-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Error kinds reported in the "error" field of failed responses
const (
	ErrKindUnsupportedFormat = "UnsupportedFormat"
	ErrKindParse             = "ParseError"
	ErrKindMissingColumns    = "MissingColumns"
	ErrKindMissingFields     = "MissingFields"
	ErrKindMissingFile       = "MissingFile"
	ErrKindBadRequest        = "BadRequest"
	ErrKindNotFound          = "NotFound"
	ErrKindConflict          = "Conflict"
	ErrKindInternal          = "InternalError"
)

// Handler handles HTTP requests
type Handler struct {
	screener       *service.Screener
	jobs           *service.JobManager
	gatherer       prometheus.Gatherer
	maxUploadBytes int64
	logger         *zap.Logger
}

// Options configures a Handler
type Options struct {
	// MaxUploadBytes limits multipart request bodies; 0 means 32 MiB
	MaxUploadBytes int64
	// Gatherer is served on /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer
}

// NewHandler creates a new API handler
func NewHandler(screener *service.Screener, jobs *service.JobManager, opts Options, logger *zap.Logger) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		screener:       screener,
		jobs:           jobs,
		gatherer:       opts.Gatherer,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"message": "Method Not Allowed"})
	})

	api := r.Group("/api/v1")
	{
		// Screening endpoints
		api.POST("/upload", h.Upload)
		api.POST("/process-one", h.ProcessOne)
		api.POST("/process", h.Process)
		api.POST("/process/stream", h.ProcessStream)

		// Background jobs
		api.POST("/jobs", h.StartJob)
		api.GET("/jobs", h.ListJobs)
		api.GET("/jobs/:id", h.GetJob)
		api.GET("/jobs/:id/results", h.GetJobResults)
		api.GET("/jobs/:id/export", h.ExportJob)
		api.POST("/jobs/:id/cancel", h.CancelJob)
		api.DELETE("/jobs/:id", h.DeleteJob)

		// Export
		api.POST("/export", h.Export)
	}

	// Health check and metrics
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
}

// processOneRequest keeps raw values so non-text fields can be rejected
type processOneRequest struct {
	Sender any `json:"sender"`
	Text   any `json:"text"`
}

type exportRequest struct {
	Data []models.ResultRecord `json:"data"`
}

// Upload reads a file and returns its normalized rows without classifying them
func (h *Handler) Upload(c *gin.Context) {
	_, records, ok := h.readUpload(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "File read successfully",
		"data":    records,
	})
}

// ProcessOne screens a single message
func (h *Handler) ProcessOne(c *gin.Context) {
	var req processOneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, ErrKindBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	sender, okSender := req.Sender.(string)
	text, okText := req.Text.(string)
	if !okSender || !okText || strings.TrimSpace(sender) == "" || strings.TrimSpace(text) == "" {
		h.fail(c, http.StatusBadRequest, ErrKindMissingFields, "Missing sender or text in request body.")
		return
	}

	result := h.screener.ClassifyOne(c.Request.Context(), models.InputRecord{Sender: sender, Text: text})

	c.JSON(http.StatusOK, gin.H{
		"message": "Processing complete for one row",
		"data":    result,
	})
}

// Process screens a whole file and responds once every row is done
func (h *Handler) Process(c *gin.Context) {
	_, records, ok := h.readUpload(c)
	if !ok {
		return
	}

	results, err := h.screener.Run(c.Request.Context(), records, nil, nil)
	if err != nil {
		h.logger.Warn("Batch aborted by client",
			zap.Int("processed", len(results)),
			zap.Int("rows", len(records)),
			zap.Error(err))
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Processing complete",
		"data":    results,
	})
}

// ProcessStream screens a file and reports every row as a server-sent event
func (h *Handler) ProcessStream(c *gin.Context) {
	_, records, ok := h.readUpload(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	total := len(records)
	results, err := h.screener.Run(c.Request.Context(), records, nil, func(i int, res models.ResultRecord) {
		c.SSEvent("progress", gin.H{
			"processed": i + 1,
			"total":     total,
			"result":    res,
		})
		c.Writer.Flush()
	})

	if err != nil {
		h.logger.Warn("Streamed batch aborted",
			zap.Int("processed", len(results)),
			zap.Int("rows", total),
			zap.Error(err))
		c.SSEvent("error", gin.H{"message": "Processing cancelled", "error": err.Error()})
		c.Writer.Flush()
		return
	}

	c.SSEvent("done", gin.H{
		"message": "Processing complete",
		"data":    results,
	})
	c.Writer.Flush()
}

// Export converts posted results into a CSV or XLSX download
func (h *Handler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		h.fail(c, http.StatusBadRequest, ErrKindUnsupportedFormat, err.Error())
		return
	}

	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, ErrKindBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	h.download(c, format, req.Data)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "sms-screening-service",
		"version": "1.0.0",
	})
}

// readUpload parses and validates the multipart "file" field. On failure the
// error response is already written.
func (h *Handler) readUpload(c *gin.Context) (string, []models.InputRecord, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, http.StatusRequestEntityTooLarge, ErrKindBadRequest, "File is too large.")
			return "", nil, false
		}
		h.fail(c, http.StatusBadRequest, ErrKindMissingFile, "No file uploaded.")
		return "", nil, false
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("Failed to open upload", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, ErrKindInternal, "Error reading uploaded file")
		return "", nil, false
	}
	defer file.Close()

	raw, err := ingest.Parse(file, header.Filename)
	if err == nil {
		var records []models.InputRecord
		records, err = ingest.Normalize(raw)
		if err == nil {
			h.logger.Info("File ingested",
				zap.String("filename", header.Filename),
				zap.Int("rows", len(records)))
			return header.Filename, records, true
		}
	}

	h.logger.Warn("Rejected upload", zap.String("filename", header.Filename), zap.Error(err))
	h.failIngest(c, err)
	return "", nil, false
}

// failIngest maps ingest errors to 400 responses
func (h *Handler) failIngest(c *gin.Context, err error) {
	var parseErr *ingest.ParseError
	var columnsErr *ingest.MissingColumnsError

	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		h.fail(c, http.StatusBadRequest, ErrKindUnsupportedFormat, err.Error())
	case errors.As(err, &parseErr):
		h.fail(c, http.StatusBadRequest, ErrKindParse, err.Error())
	case errors.As(err, &columnsErr):
		h.fail(c, http.StatusBadRequest, ErrKindMissingColumns, err.Error())
	default:
		h.logger.Error("Failed to read upload", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
	}
}

// failJob maps job lookup errors
func (h *Handler) failJob(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrJobNotFound):
		h.fail(c, http.StatusNotFound, ErrKindNotFound, "job not found")
	case errors.Is(err, service.ErrJobFinished):
		h.fail(c, http.StatusConflict, ErrKindConflict, err.Error())
	default:
		h.logger.Error("Job request failed", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, ErrKindInternal, err.Error())
	}
}

func (h *Handler) fail(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message, "error": kind})
}

// download renders results in format and sends them as an attachment
func (h *Handler) download(c *gin.Context, format export.Format, results []models.ResultRecord) {
	var buf bytes.Buffer
	if err := export.Write(&buf, format, results); err != nil {
		h.logger.Error("Failed to export results", zap.String("format", string(format)), zap.Error(err))
		h.fail(c, http.StatusInternalServerError, ErrKindInternal, "export failed")
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+format.Filename())
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
