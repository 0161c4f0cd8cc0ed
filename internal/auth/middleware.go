package auth

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

const (
	// ContextKeyPrincipal is the key for storing the resolved principal in gin context
	ContextKeyPrincipal = "authPrincipal"
)

// PrincipalLoader resolves a token's user to its current principal. It
// returns an error if the user no longer exists in that tenant or cannot
// authenticate.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, tenantID, userID string) (tenant.Principal, error)
}

// Middleware resolves the bearer token, loads the principal and stores it in
// the context. Requests without a token pass through unauthenticated; a
// token that fails to resolve is rejected.
func Middleware(m *Manager, loader PrincipalLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			raw = c.Query("access_token") // browsers cannot set headers on WebSocket upgrades
		}
		if raw == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		tok, err := m.Validate(ctx, raw)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token.")
			return
		}
		p, err := loader.LoadPrincipal(ctx, tok.TenantID, tok.UserID)
		if err != nil || p.TenantID != tok.TenantID {
			logging.L(ctx).Warn("token resolved to unusable principal", "user_id", tok.UserID, "error", err)
			abortUnauthorized(c, "Invalid or expired token.")
			return
		}

		c.Set(ContextKeyPrincipal, p)
		c.Request = c.Request.WithContext(logging.WithTenant(ctx, p.TenantID, p.ID))
		c.Next()
	}
}

// RequireAuth middleware rejects requests without a resolved principal
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetPrincipal(c); !ok {
			abortUnauthorized(c, "Authentication required. Include 'Authorization: Bearer dsk_...' header.")
			return
		}
		c.Next()
	}
}

// RequireAdmin middleware requires auth AND the tenant admin role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			abortUnauthorized(c, "Authentication required.")
			return
		}
		if p.Role != tenant.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin role required.",
			})
			return
		}
		c.Next()
	}
}

// RequireAdminSecret guards operator endpoints with the X-Admin-Secret
// header. An empty secret disables the endpoints entirely.
func RequireAdminSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Admin-Secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Admin secret required.",
			})
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the principal from context (if authenticated)
func GetPrincipal(c *gin.Context) (tenant.Principal, bool) {
	v, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return tenant.Principal{}, false
	}
	p, ok := v.(tenant.Principal)
	return p, ok
}

// ScopeFrom returns the tenant scope of the authenticated principal.
func ScopeFrom(c *gin.Context) (tenant.Scope, bool) {
	p, ok := GetPrincipal(c)
	if !ok {
		return tenant.Scope{}, false
	}
	return tenant.NewScope(p), true
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": msg,
	})
}
