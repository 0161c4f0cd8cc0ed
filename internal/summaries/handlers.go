package summaries

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/auth"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/entitlement"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/idgen"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/pagination"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/validation"
)

// Handler provides HTTP endpoints for summaries.
type Handler struct {
	service *Service
}

// NewHandler creates a new summaries handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up summary routes. The group must require auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/summaries", h.CreateSummary)
	r.GET("/summaries", h.ListSummaries)
	r.GET("/summaries/:id", validation.IDParamMiddleware(), h.GetSummary)
	r.DELETE("/summaries/:id", validation.IDParamMiddleware(), h.DeleteSummary)
	r.GET("/documents/:id/summaries", validation.IDParamMiddleware(), h.ListDocumentSummaries)
}

type createRequest struct {
	DocumentID string `json:"documentId" binding:"required"`
	Style      string `json:"summaryType"`
}

// CreateSummary handles POST /v1/summaries
func (h *Handler) CreateSummary(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "documentId is required"})
		return
	}
	if !idgen.Valid(req.DocumentID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "message": "documentId must be a UUID"})
		return
	}
	style, err := ParseStyle(req.Style)
	if err != nil {
		respondError(c, err)
		return
	}

	scope, _ := auth.ScopeFrom(c)
	sum, err := h.service.Create(c.Request.Context(), scope, req.DocumentID, style)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sum)
}

// ListSummaries handles GET /v1/summaries
func (h *Handler) ListSummaries(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": "cursor is malformed"})
		return
	}
	limit := pagination.ParseLimit(c.Query("limit"))

	sums, next, more, err := h.service.List(c.Request.Context(), scope, limit, cursor)
	if err != nil {
		respondError(c, err)
		return
	}
	if sums == nil {
		sums = []*Summary{}
	}
	c.JSON(http.StatusOK, gin.H{
		"summaries":  sums,
		"count":      len(sums),
		"nextCursor": next,
		"hasMore":    more,
	})
}

// ListDocumentSummaries handles GET /v1/documents/:id/summaries
func (h *Handler) ListDocumentSummaries(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	sums, err := h.service.ListByDocument(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if sums == nil {
		sums = []*Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"summaries": sums, "count": len(sums)})
}

// GetSummary handles GET /v1/summaries/:id
func (h *Handler) GetSummary(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	sum, err := h.service.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// DeleteSummary handles DELETE /v1/summaries/:id
func (h *Handler) DeleteSummary(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	if err := h.service.Delete(c.Request.Context(), scope, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Summary deleted"})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entitlement.ErrQuotaExceeded):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "quota_exceeded",
			"message": "Summary limit reached for this billing period. Please upgrade your plan.",
		})
	case errors.Is(err, entitlement.ErrAccountNotFound):
		c.JSON(http.StatusForbidden, gin.H{"error": "no_entitlement", "message": "Organization has no billing account"})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Summary not found"})
	case errors.Is(err, ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document_not_found", "message": "Document not found"})
	case errors.Is(err, ErrDocumentNotReady):
		c.JSON(http.StatusBadRequest, gin.H{"error": "document_not_ready", "message": "Document text not available"})
	case errors.Is(err, ErrInvalidStyle):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_style", "message": "summaryType must be brief, standard or detailed"})
	case errors.Is(err, ErrGeneratorUnavailable):
		c.Header("Retry-After", "30")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "generation_unavailable", "message": "Summary generation is temporarily unavailable"})
	case errors.Is(err, ErrGenerationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "generation_failed", "message": "Failed to generate summary"})
	default:
		logging.L(c.Request.Context()).Error("summary request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Summary request failed"})
	}
}
