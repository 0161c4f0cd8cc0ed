package activity

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/auth"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
)

// Handler provides HTTP endpoints for the activity log.
type Handler struct {
	recorder *Recorder
}

// NewHandler creates a new activity handler.
func NewHandler(recorder *Recorder) *Handler {
	return &Handler{recorder: recorder}
}

// RegisterRoutes sets up activity routes. The group must require auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/activity", h.ListActivity)
}

// ListActivity handles GET /v1/activity
func (h *Handler) ListActivity(c *gin.Context) {
	scope, ok := auth.ScopeFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Authentication required."})
		return
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "cursor is malformed",
		})
		return
	}
	limit := pagination.ParseLimit(c.Query("limit"))

	records, next, more, err := h.recorder.List(c.Request.Context(), scope, limit, cursor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list activity",
		})
		return
	}
	if records == nil {
		records = []*Record{}
	}

	c.JSON(http.StatusOK, gin.H{
		"activity":   records,
		"count":      len(records),
		"nextCursor": next,
		"hasMore":    more,
	})
}
