package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubLoader map[string]tenant.Principal

func (s stubLoader) LoadPrincipal(_ context.Context, tenantID, userID string) (tenant.Principal, error) {
	p, ok := s[userID]
	if !ok || p.TenantID != tenantID {
		return tenant.Principal{}, errors.New("no such user")
	}
	return p, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *Manager, stubLoader) {
	t.Helper()
	mgr := NewManager(NewMemoryStore(), time.Hour)
	loader := stubLoader{
		"admin-1":  {ID: "admin-1", TenantID: "tenant-a", Role: tenant.RoleAdmin},
		"member-1": {ID: "member-1", TenantID: "tenant-a", Role: tenant.RoleMember},
	}

	r := gin.New()
	r.Use(Middleware(mgr, loader))
	r.GET("/open", func(c *gin.Context) {
		_, ok := GetPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})
	r.GET("/me", RequireAuth(), func(c *gin.Context) {
		scope, _ := ScopeFrom(c)
		c.JSON(http.StatusOK, gin.H{"tenant": scope.TenantID(), "user": scope.PrincipalID()})
	})
	r.DELETE("/org", RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.POST("/ops", RequireAdminSecret("s3cret"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, mgr, loader
}

func do(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_AnonymousPassesThrough(t *testing.T) {
	r, _, _ := setupRouter(t)
	w := do(r, "GET", "/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(r, "GET", "/me", "").Code)
}

func TestMiddleware_ValidTokenSetsScope(t *testing.T) {
	r, mgr, _ := setupRouter(t)
	tok, err := mgr.Issue(context.Background(), "tenant-a", "member-1")
	require.NoError(t, err)

	w := do(r, "GET", "/me", tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"tenant":"tenant-a","user":"member-1"}`, w.Body.String())
}

func TestMiddleware_InvalidTokenIsRejected(t *testing.T) {
	r, _, _ := setupRouter(t)
	w := do(r, "GET", "/open", "dsk_bogus")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_TokenForRemovedUserIsRejected(t *testing.T) {
	r, mgr, loader := setupRouter(t)
	tok, err := mgr.Issue(context.Background(), "tenant-a", "member-1")
	require.NoError(t, err)

	delete(loader, "member-1")
	assert.Equal(t, http.StatusUnauthorized, do(r, "GET", "/me", tok).Code)
}

func TestMiddleware_TokenCannotCrossTenants(t *testing.T) {
	r, mgr, _ := setupRouter(t)
	// A token minted for tenant-b naming a tenant-a user must not resolve.
	tok, err := mgr.Issue(context.Background(), "tenant-b", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, "GET", "/me", tok).Code)
}

func TestRequireAdmin(t *testing.T) {
	r, mgr, _ := setupRouter(t)
	member, _ := mgr.Issue(context.Background(), "tenant-a", "member-1")
	admin, _ := mgr.Issue(context.Background(), "tenant-a", "admin-1")

	assert.Equal(t, http.StatusUnauthorized, do(r, "DELETE", "/org", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, "DELETE", "/org", member).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "DELETE", "/org", admin).Code)
}

func TestRequireAdminSecret(t *testing.T) {
	r, _, _ := setupRouter(t)

	req := httptest.NewRequest("POST", "/ops", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest("POST", "/ops", nil)
	req.Header.Set("X-Admin-Secret", "s3cret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	disabled := gin.New()
	disabled.POST("/ops", RequireAdminSecret(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	req = httptest.NewRequest("POST", "/ops", nil)
	req.Header.Set("X-Admin-Secret", "")
	w = httptest.NewRecorder()
	disabled.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
