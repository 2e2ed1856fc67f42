package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/database"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/formats"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/jobs"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/middleware"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/monitoring"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/notify"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/platform"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/provider"
	"github.com/therealutkarshpriyadarshi/mediafetch/pkg/models"
)

const defaultRecentLimit = 5

// HistoryStore lists and deletes persisted download records
type HistoryStore interface {
	ListRecent(ctx context.Context, n int) ([]*models.HistoryRecord, error)
	ListAll(ctx context.Context) ([]*models.HistoryRecord, error)
	DeleteDownload(ctx context.Context, id int64) error
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

type API struct {
	provider    provider.Provider
	manager     *jobs.Manager
	history     HistoryStore
	health      HealthChecker
	hub         *notify.Hub
	monitor     *monitoring.Monitor
	logger      *logging.Logger
	recentLimit int
}

func setupRouter(api *API, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(api.logger), middleware.Tracing())

	// Health check
	router.GET("/health", api.healthCheck)
	router.GET("/api/status", api.systemStatus)

	submit := router.Group("/")
	if limiter != nil {
		submit.Use(middleware.RateLimit(limiter))
	}
	{
		submit.POST("/info", api.getInfo)
		submit.POST("/download", api.startDownload)
	}

	router.GET("/get_file/:id", api.getFile)

	// Jobs
	router.GET("/jobs", api.listJobs)
	router.GET("/jobs/:id", api.getJob)
	router.GET("/ws/jobs/:id", api.watchJob)

	// History
	history := router.Group("/api/downloads")
	{
		history.GET("", api.listDownloads)
		history.GET("/recent", api.recentDownloads)
		history.DELETE("/:id", api.deleteDownload)
	}

	return router
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, jobs.ErrValidation),
		errors.Is(err, jobs.ErrExtraction),
		errors.Is(err, jobs.ErrNotReady):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrNotFound),
		errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, jobs.ErrShutdown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func invalidURLMessage() string {
	return "Invalid URL. We support " + platform.SupportedNames()
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	if api.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := api.health.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"jobs":   api.manager.Len(),
	})
}

// Job and queue summary with alerts
func (api *API) systemStatus(c *gin.Context) {
	if err := api.monitor.Refresh(); err != nil {
		api.logger.WarnWithErr("Status refresh incomplete", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  api.monitor.GetSystemHealth(),
		"metrics": api.monitor.GetMetrics(),
		"alerts":  api.monitor.GetAlerts(),
	})
}

// Fetch metadata and the curated format menu for a URL
func (api *API) getInfo(c *gin.Context) {
	url := c.PostForm("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No URL provided"})
		return
	}
	if !platform.Validate(url) {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidURLMessage()})
		return
	}

	info, err := api.provider.FetchMetadata(c.Request.Context(), url)
	if err != nil {
		if errors.Is(err, provider.ErrExtraction) {
			api.logger.WarnWithErr("Metadata extraction failed", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not retrieve video information"})
			return
		}
		api.logger.ErrorWithErr("Metadata request failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        info.ID,
		"title":     info.Title,
		"thumbnail": info.Thumbnail,
		"duration":  info.Duration,
		"platform":  platform.Classify(url),
		"formats":   formats.Resolve(info.Formats),
	})
}

// Start a download job; with wait=true the response is sent once it finishes
func (api *API) startDownload(c *gin.Context) {
	url := c.PostForm("url")
	formatID := c.PostForm("format")
	if url == "" || formatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL and format are required"})
		return
	}
	if !platform.Validate(url) {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidURLMessage()})
		return
	}

	job, err := api.manager.Submit(c.Request.Context(), url, formatID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	wait, _ := strconv.ParseBool(c.DefaultPostForm("wait", c.Query("wait")))
	if !wait {
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"download_id": job.ID,
			"status":      job.Status,
			"message":     "Download started",
		})
		return
	}

	job, err = api.manager.Wait(c.Request.Context(), job.ID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if job.Status == models.JobStatusFailed {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":       job.ErrorMsg,
			"download_id": job.ID,
			"status":      job.Status,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"download_id": job.ID,
		"status":      job.Status,
		"message":     "Download completed successfully!",
	})
}

// Serve a completed artifact as an attachment
func (api *API) getFile(c *gin.Context) {
	dl, err := api.manager.Artifact(c.Param("id"))
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		switch status {
		case http.StatusNotFound:
			msg = "Download not found"
		case http.StatusBadRequest:
			msg = "Download not completed yet"
		default:
			api.logger.WithJobID(c.Param("id")).ErrorWithErr("Error sending file", err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.Header("Content-Type", dl.ContentType)
	c.FileAttachment(dl.Path, dl.Filename)
}

// List tracked jobs, newest first
func (api *API) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": api.manager.List()})
}

// Get job endpoint
func (api *API) getJob(c *gin.Context) {
	job, err := api.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// Stream job events over a websocket
func (api *API) watchJob(c *gin.Context) {
	api.hub.ServeJob(c.Writer, c.Request, c.Param("id"))
}

func views(records []*models.HistoryRecord) []models.HistoryView {
	out := make([]models.HistoryView, 0, len(records))
	for _, r := range records {
		out = append(out, r.View())
	}
	return out
}

// List all history records
func (api *API) listDownloads(c *gin.Context) {
	records, err := api.history.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"downloads": views(records)})
}

// List the most recent history records
func (api *API) recentDownloads(c *gin.Context) {
	limit := api.recentLimit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := api.history.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"downloads": views(records)})
}

// Delete a history record
func (api *API) deleteDownload(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid download id"})
		return
	}

	if err := api.history.DeleteDownload(c.Request.Context(), id); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Download record deleted successfully",
	})
}
