package analytics

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/auth"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
)

// Handler provides HTTP endpoints for the dashboard.
type Handler struct {
	service *Service
}

// NewHandler creates a new analytics handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up analytics routes. The group must require auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/analytics/stats", h.GetStats)
	r.GET("/analytics/recent-documents", h.RecentDocuments)
	r.GET("/analytics/usage-overtime", h.UsageOverTime)
}

// GetStats handles GET /v1/analytics/stats
func (h *Handler) GetStats(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	st, err := h.service.Stats(c.Request.Context(), scope)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// RecentDocuments handles GET /v1/analytics/recent-documents?limit=
func (h *Handler) RecentDocuments(c *gin.Context) {
	limit := DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit", "message": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	scope, _ := auth.ScopeFrom(c)
	docs, err := h.service.RecentDocuments(c.Request.Context(), scope, limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

// UsageOverTime handles GET /v1/analytics/usage-overtime
func (h *Handler) UsageOverTime(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	points, err := h.service.UsageOverTime(c.Request.Context(), scope)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usage": points, "days": len(points)})
}

func internalError(c *gin.Context, err error) {
	logging.L(c.Request.Context()).Error("analytics request failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to load analytics"})
}
