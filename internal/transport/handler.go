package transport

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-damage-assessor/internal/config"
	apperrors "go-damage-assessor/internal/errors"
	"go-damage-assessor/internal/logger"
	"go-damage-assessor/internal/observer"
	"go-damage-assessor/internal/service"
	"go-damage-assessor/pkg/models"
)

const version = "1.0.0"

// NewHandler builds the HTTP API around the assessment service
func NewHandler(svc service.AssessmentService, metrics *observer.Metrics, cfg *config.Config) http.Handler {
	r := gin.Default()

	r.Use(
		corsMiddleware(cfg.CORSAllowedOrigins),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)
	if metrics != nil {
		r.Use(metricsMiddleware(metrics))
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	h := &handler{svc: svc}
	r.GET("/health", h.healthCheck)
	r.POST("/analyze", rateLimiter(cfg.AnalyzeRateLimit, cfg.AnalyzeRateBurst), h.analyze)
	r.GET("/analysis-status/:id", h.status)
	r.GET("/analysis-result/:id", h.result)
	r.DELETE("/analysis-result/:id", h.deleteResult)
	r.GET("/latest-analysis", h.latest)

	return r
}

type handler struct {
	svc service.AssessmentService
}

func (h *handler) analyze(c *gin.Context) {
	startTime := time.Now()

	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, apperrors.NewValidationError("request body too large", err).WithStatus(http.StatusRequestEntityTooLarge))
			return
		}
		respondError(c, apperrors.NewValidationError("invalid request format", err))
		return
	}

	logger.WithFields(logrus.Fields{
		"before_image_id": req.BeforeImageID,
		"after_image_id":  req.AfterImageID,
		"analysis_level":  req.AnalysisLevel,
		"async":           req.IsAsync(),
		"ip":              c.ClientIP(),
	}).Info("Processing damage analysis request")

	if req.IsAsync() {
		job, err := h.svc.Submit(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Location", "/analysis-status/"+job.ID)
		c.JSON(http.StatusAccepted, job)
		return
	}

	result, err := h.svc.AnalyzeSync(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.WithFields(logrus.Fields{
		"job_id":             result.JobID,
		"severity_score":     result.SeverityScore,
		"changed_percentage": result.ChangedPercentage,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}).Info("Synchronous analysis completed")
	c.JSON(http.StatusOK, result)
}

func (h *handler) status(c *gin.Context) {
	job, err := h.svc.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *handler) result(c *gin.Context) {
	id := c.Param("id")
	result, err := h.svc.GetResult(c.Request.Context(), id)
	if err == nil {
		c.JSON(http.StatusOK, result)
		return
	}

	// Still running: answer 202 with the current job so clients can keep polling
	if apperrors.IsType(err, apperrors.ErrorTypeNotReady) {
		if job, statusErr := h.svc.GetStatus(c.Request.Context(), id); statusErr == nil {
			c.Header("Location", "/analysis-status/"+id)
			c.JSON(http.StatusAccepted, job)
			return
		}
	}
	respondError(c, err)
}

func (h *handler) deleteResult(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteResult(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{ID: id, Deleted: true})
}

func (h *handler) latest(c *gin.Context) {
	result, err := h.svc.LatestResult(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) healthCheck(c *gin.Context) {
	stats := h.svc.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": version,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"workers": gin.H{
			"workers":        stats.Workers,
			"active":         stats.ActiveWorkers,
			"queue_length":   stats.QueueLength,
			"queue_capacity": stats.QueueCapacity,
			"completed_jobs": stats.CompletedJobs,
			"failed_jobs":    stats.FailedJobs,
		},
	})
}

func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Info("Request rejected")
	}

	body := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: err.Error(),
		Type:    string(apperrors.GetType(err)),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		if appErr.Details != "" {
			body.Message += ": " + appErr.Details
		}
	}
	c.AbortWithStatusJSON(code, body)
}
