package organization

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/auth"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

// Handler provides HTTP endpoints for the caller's organization.
type Handler struct {
	service *Service
}

// NewHandler creates a new organization handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up organization routes. The group must require auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/organization", h.GetOrganization)
	r.PUT("/organization", auth.RequireAdmin(), h.UpdateOrganization)
	r.DELETE("/organization", auth.RequireAdmin(), h.DeleteOrganization)
}

// updateRequest decodes settings as raw JSON so omitted keys keep their
// current values.
type updateRequest struct {
	Name     *string         `json:"name"`
	Domain   *string         `json:"domain"`
	Settings json.RawMessage `json:"settings"`
}

// GetOrganization handles GET /v1/organization
func (h *Handler) GetOrganization(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	t, err := h.service.Get(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"organization": t})
}

// UpdateOrganization handles PUT /v1/organization
func (h *Handler) UpdateOrganization(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	ctx := c.Request.Context()

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	upd := tenant.ProfileUpdate{Name: req.Name, Domain: req.Domain}
	if len(req.Settings) > 0 && string(req.Settings) != "null" {
		current, err := h.service.Get(ctx, scope)
		if err != nil {
			respondError(c, err)
			return
		}
		settings := current.Settings
		if err := json.Unmarshal(req.Settings, &settings); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "Invalid settings",
			})
			return
		}
		if settings.DocumentRetentionDays < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "settings.documentRetentionDays must be at least 1",
			})
			return
		}
		upd.Settings = &settings
	}

	t, changed, err := h.service.UpdateProfile(ctx, scope, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	if changed == nil {
		changed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"organization": t, "changed": changed})
}

// DeleteOrganization handles DELETE /v1/organization
func (h *Handler) DeleteOrganization(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	if err := h.service.Delete(c.Request.Context(), scope); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Organization not found"})
	case errors.Is(err, tenant.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "name is required and at most 200 characters"})
	case errors.Is(err, tenant.ErrIsolationViolation):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Request could not be scoped"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Organization request failed"})
	}
}
