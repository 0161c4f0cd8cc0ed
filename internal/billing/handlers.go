package billing

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/auth"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/entitlement"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

// MaxWebhookBody is the largest webhook payload accepted.
const MaxWebhookBody = 64 * 1024

// ContactResolver returns the billing email and display name for a tenant's
// provider customer.
type ContactResolver func(ctx context.Context, scope tenant.Scope) (email, name string, err error)

// Handler provides HTTP endpoints for billing.
type Handler struct {
	reconciler *Reconciler
	service    *Service
	contact    ContactResolver
}

// NewHandler creates a new billing handler.
func NewHandler(reconciler *Reconciler, service *Service, contact ContactResolver) *Handler {
	return &Handler{reconciler: reconciler, service: service, contact: contact}
}

// RegisterRoutes sets up the public webhook route.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/billing/webhook", h.Webhook)
}

// RegisterProtectedRoutes sets up tenant billing routes. The group must
// require auth.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/billing/subscription", h.GetSubscription)
	r.POST("/billing/checkout", auth.RequireAdmin(), h.Checkout)
	r.POST("/billing/cancel", auth.RequireAdmin(), h.Cancel)
}

// Webhook handles POST /v1/billing/webhook
func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxWebhookBody+1))
	if err != nil || len(payload) > MaxWebhookBody {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_webhook", "message": "Unreadable or oversized payload"})
		return
	}

	outcome, err := h.reconciler.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": outcome})
	case errors.Is(err, ErrUnsupportedEvent):
		c.JSON(http.StatusOK, gin.H{"status": OutcomeIgnored})
	case errors.Is(err, ErrSubscriptionConflict):
		c.JSON(http.StatusOK, gin.H{"status": OutcomeRejected})
	case errors.Is(err, ErrInvalidWebhook):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_webhook", "message": "Webhook could not be verified"})
	default:
		// Non-2xx makes Stripe redeliver and surfaces the failure on its dashboard.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile_failed", "message": "Event not applied"})
	}
}

type checkoutRequest struct {
	Plan string `json:"planType" binding:"required"`
}

// Checkout handles POST /v1/billing/checkout
func (h *Handler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "planType is required"})
		return
	}
	plan, err := entitlement.ParseTier(req.Plan)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_plan", "message": "planType must be 'basic' or 'pro'"})
		return
	}

	scope, _ := auth.ScopeFrom(c)
	ctx := c.Request.Context()
	var email, name string
	if h.contact != nil {
		if email, name, err = h.contact(ctx, scope); err != nil {
			respondError(c, err)
			return
		}
	}

	sess, err := h.service.Checkout(ctx, scope, email, name, plan)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// GetSubscription handles GET /v1/billing/subscription
func (h *Handler) GetSubscription(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	sub, err := h.service.Subscription(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// Cancel handles POST /v1/billing/cancel
func (h *Handler) Cancel(c *gin.Context) {
	scope, _ := auth.ScopeFrom(c)
	if err := h.service.Cancel(c.Request.Context(), scope); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Cancellation requested"})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNoSubscription):
		c.JSON(http.StatusNotFound, gin.H{"error": "no_subscription", "message": "No active subscription found"})
	case errors.Is(err, entitlement.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "No billing account for this organization"})
	case errors.Is(err, ErrProviderUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "billing_unavailable", "message": "Billing is not configured"})
	default:
		logging.L(c.Request.Context()).Error("billing request failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "provider_error", "message": "Payment provider request failed"})
	}
}
