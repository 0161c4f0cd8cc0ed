package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/auth"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/validation"
)

// Handler provides HTTP endpoints for accounts and team management.
type Handler struct {
	service *Service
}

// NewHandler creates a new users handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes sets up unauthenticated account routes.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/accept-invitation", h.AcceptInvitation)
	r.POST("/auth/check-invitation", h.CheckInvitation)
	r.POST("/auth/refresh", h.Refresh)
}

// RegisterProtectedRoutes sets up team routes. The group must require auth.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/users/me", h.Me)
	r.GET("/users", h.ListUsers)
	r.POST("/users", auth.RequireAdmin(), h.InviteUser)
	r.PATCH("/users/:id", auth.RequireAdmin(), validation.IDParamMiddleware(), h.UpdateUser)
	r.DELETE("/users/:id", auth.RequireAdmin(), validation.IDParamMiddleware(), h.RemoveUser)
}

// RegisterAdminRoutes sets up operator routes. The group must require the
// admin secret.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/admin/identities", h.ExternalLogin)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type acceptRequest struct {
	Token    string `json:"invitationToken" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type checkInvitationRequest struct {
	Email string `json:"email" binding:"required"`
}

type inviteRequest struct {
	Email string      `json:"email" binding:"required"`
	Name  string      `json:"fullName"`
	Role  tenant.Role `json:"role"`
}

type updateRequest struct {
	Role tenant.Role `json:"role" binding:"required"`
}

// Signup handles POST /v1/auth/signup
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	if errs := validation.Validate(
		validation.Required("organizationName", req.OrganizationName),
		validation.MaxLength("organizationName", req.OrganizationName, tenant.MaxNameLength),
		validation.ValidEmail("email", validation.NormalizeEmail(req.Email)),
		validation.MinLength("password", req.Password, MinPasswordLength),
	); len(errs) > 0 {
		validation.Abort(c, errs)
		return
	}

	sess, err := h.service.Signup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// Login handles POST /v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	sess, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// AcceptInvitation handles POST /v1/auth/accept-invitation
func (h *Handler) AcceptInvitation(c *gin.Context) {
	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	sess, err := h.service.AcceptInvitation(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// CheckInvitation handles POST /v1/auth/check-invitation
func (h *Handler) CheckInvitation(c *gin.Context) {
	var req checkInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	pending, err := h.service.HasPendingInvitation(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasInvitation": pending})
}

// Refresh handles POST /v1/auth/refresh. The current token comes in the
// Authorization header and is revoked once the new one is issued.
func (h *Handler) Refresh(c *gin.Context) {
	sess, err := h.service.Refresh(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// ExternalLogin handles POST /v1/admin/identities, called by the identity
// broker after a provider login.
func (h *Handler) ExternalLogin(c *gin.Context) {
	var req ExternalIdentity
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	sess, err := h.service.LoginExternal(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Me handles GET /v1/users/me
func (h *Handler) Me(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	u, err := h.service.Get(c.Request.Context(), scope, scope.PrincipalID())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// ListUsers handles GET /v1/users
func (h *Handler) ListUsers(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	list, err := h.service.List(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []*User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": list, "count": len(list)})
}

// InviteUser handles POST /v1/users
func (h *Handler) InviteUser(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	if errs := validation.Validate(
		validation.ValidEmail("email", validation.NormalizeEmail(req.Email)),
		validation.OneOf("role", string(req.Role), string(tenant.RoleAdmin), string(tenant.RoleMember)),
	); len(errs) > 0 {
		validation.Abort(c, errs)
		return
	}

	scope, _ := auth.ScopeFrom(c)
	inv, err := h.service.Invite(c.Request.Context(), scope, req.Email, req.Name, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// UpdateUser handles PATCH /v1/users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidBody(c)
		return
	}
	scope, _ := auth.ScopeFrom(c)
	u, err := h.service.ChangeRole(c.Request.Context(), scope, c.Param("id"), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// RemoveUser handles DELETE /v1/users/:id
func (h *Handler) RemoveUser(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	if err := h.service.Remove(c.Request.Context(), scope, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func invalidBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": "Invalid request body",
	})
}

func respondError(c *gin.Context, err error) {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, ErrUserNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, auth.ErrNoToken), errors.Is(err, auth.ErrInvalidToken):
		status, code = http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, ErrPendingInvitation):
		status, code = http.StatusForbidden, "invitation_pending"
	case errors.Is(err, ErrNoPassword):
		status, code = http.StatusForbidden, "no_password"
	case errors.Is(err, ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrIdentityBoundElsewhere):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, ErrInvalidInvitation):
		status, code = http.StatusNotFound, "invalid_invitation"
	case errors.Is(err, ErrInvitationAccepted):
		status, code = http.StatusBadRequest, "invitation_accepted"
	case errors.Is(err, ErrCannotRemoveSelf), errors.Is(err, ErrCannotDemoteSelf),
		errors.Is(err, ErrInvalidRole), errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrIncompleteIdentity),
		errors.Is(err, tenant.ErrInvalidName):
		status, code = http.StatusBadRequest, "validation_error"
	default:
		logging.L(c.Request.Context()).Error("users request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Request failed",
		})
		return
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}
