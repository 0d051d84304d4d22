package transport

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"go-damage-sync/internal/analysis"
	"go-damage-sync/internal/cache"
	"go-damage-sync/internal/config"
	apperrors "go-damage-sync/internal/errors"
	"go-damage-sync/internal/history"
	"go-damage-sync/internal/logger"
	"go-damage-sync/internal/media"
	"go-damage-sync/internal/observer"
	"go-damage-sync/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const dashboardCacheKey = "admin_dashboard"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// AnalyzeResponse carries the stored record plus degradation flags the UI
// surfaces as non-fatal warnings.
type AnalyzeResponse struct {
	Record        models.AnalysisRecord `json:"record"`
	IsDemoMode    bool                  `json:"is_demo_mode,omitempty"`
	QuotaExceeded bool                  `json:"quota_exceeded,omitempty"`
	Warning       string                `json:"warning,omitempty"`
}

// Deps bundles everything the facade exposes to the UI layer.
type Deps struct {
	// UserID is the acting principal the container was built for; a
	// reverse proxy in front of the facade may override it per request.
	UserID    string
	Fetcher   *analysis.Fetcher
	Pipeline  *media.Pipeline
	Migrator  *media.Migrator
	History   *history.Store
	Dashboard *cache.Cache[models.AggregatedStats]
	Metrics   *observer.MetricsObserver
	Config    *config.Config
}

func NewHandler(deps Deps) http.Handler {
	r := gin.Default()

	r.Use(requestSizeLimiter(deps.Config.MaxRequestBodySize))

	r.GET("/health", healthCheck)
	r.POST("/analyze", analyzeDamage(deps))
	r.GET("/history", listHistory(deps.History))
	r.DELETE("/history/:id", removeRecord(deps.History))
	r.POST("/history/clear", clearHistory(deps.History))
	r.GET("/stats", dashboardStats(deps.History))
	r.GET("/dashboard", adminDashboard(deps))
	r.POST("/migrate", migrateLegacy(deps))
	r.GET("/metrics", syncMetrics(deps.Metrics))

	return r
}

// analyzeDamage runs the full flow: analyze the upload, persist the media
// pair, append the record. Demo results and local-only persistence degrade
// the response but never fail it.
func analyzeDamage(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, header, err := c.Request.FormFile("image")
		if err != nil {
			respondError(c, http.StatusBadRequest, "missing image upload", err)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			respondError(c, http.StatusBadRequest, "unreadable image upload", err)
			return
		}

		ctx := c.Request.Context()
		result, err := deps.Fetcher.Analyze(ctx, data, header.Filename)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "analysis failed", err)
			return
		}

		record := models.AnalysisRecord{
			DamageType:     result.DamageType,
			Confidence:     result.Confidence,
			Severity:       result.Severity,
			RepairEstimate: result.RepairEstimate,
			RawResult:      result.RawResult,
		}

		// Demo results carry no real assessment; skip blob storage for them.
		if !result.IsDemoMode {
			persisted, err := deps.Pipeline.Persist(ctx, actingUser(c, deps.UserID), data)
			if err != nil {
				respondError(c, apperrors.GetStatusCode(err), "failed to persist media", err)
				return
			}
			record.ImagePath = persisted.Original.Path
			record.ImageURL = persisted.Original.URL
			record.ThumbnailPath = persisted.Thumbnail.Path
			record.ThumbnailURL = persisted.Thumbnail.URL
		}

		stored, warn := deps.History.Add(ctx, record)
		resp := AnalyzeResponse{
			Record:        stored,
			IsDemoMode:    result.IsDemoMode,
			QuotaExceeded: result.QuotaExceeded,
		}
		if warn != nil {
			resp.Warning = warn.Error()
		}
		c.JSON(http.StatusOK, resp)
	}
}

func listHistory(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		force := c.Query("refresh") == "true"
		c.JSON(http.StatusOK, gin.H{"records": store.Load(c.Request.Context(), force)})
	}
}

func removeRecord(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Remove(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to remove record", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func clearHistory(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Clear(c.Request.Context()); err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to clear history", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func dashboardStats(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		force := c.Query("refresh") == "true"
		c.JSON(http.StatusOK, store.Stats(c.Request.Context(), force))
	}
}

// adminDashboard serves the server-side cross-user aggregate through the
// request cache: concurrent readers share one backend call and a failed
// refresh degrades to the last good payload.
func adminDashboard(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		force := c.Query("refresh") == "true"
		perUserLimit := intQuery(c, "per_user_limit", 50)
		maxUsers := intQuery(c, "max_users", 100)

		stats := deps.Dashboard.Get(c.Request.Context(), dashboardCacheKey, force,
			func(ctx context.Context) (models.AggregatedStats, error) {
				return deps.Fetcher.FetchDashboard(ctx, perUserLimit, maxUsers)
			})
		c.JSON(http.StatusOK, stats)
	}
}

func migrateLegacy(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", deps.Config.MigrationBatchSize)
		report, err := deps.Migrator.MigrateLegacy(c.Request.Context(), actingUser(c, deps.UserID), limit)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "migration failed", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func syncMetrics(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.Metrics())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "available"})
}

// actingUser resolves the acting user: a forwarded subject header wins,
// otherwise the principal the container was built for.
func actingUser(c *gin.Context, fallback string) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return fallback
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	})
}
