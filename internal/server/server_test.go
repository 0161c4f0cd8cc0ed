package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/config"
)

const webhookSecret = "whsec_server_test"

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal in-memory config for testing
func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Port:                   "0",
		Env:                    "development",
		LogLevel:               "error",
		LogFormat:              "text",
		RequestTimeout:         10 * time.Second,
		StripeWebhookSecret:    webhookSecret,
		FrontendURL:            "http://localhost:3000",
		BasicSummariesPerMonth: 100,
		ProSummariesPerMonth:   500,
		TrialSummariesLimit:    2,
		MaxFileSizeMB:          10,
		UploadDir:              t.TempDir(),
		AdminSecret:            "0123456789abcdef0123456789abcdef",
		RateLimitRPM:           6000,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.rateLimiter.Stop() })
	return s
}

func do(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case []byte:
		rdr = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type account struct {
	token    string
	tenantID string
}

func signup(t *testing.T, s *Server, org, email string) account {
	t.Helper()
	w := do(t, s, http.MethodPost, "/v1/auth/signup", "", map[string]string{
		"organizationName": org,
		"fullName":         "Owner of " + org,
		"email":            email,
		"password":         "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	user := resp["user"].(map[string]any)
	return account{token: resp["accessToken"].(string), tenantID: user["tenantId"].(string)}
}

func upload(t *testing.T, s *Server, token, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func uploadText(t *testing.T, s *Server, token string) string {
	t.Helper()
	w := upload(t, s, token, "report.txt",
		[]byte("Revenue grew in the third quarter. Costs were flat. Margins improved. Hiring paused."))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func webhook(t *testing.T, s *Server, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))

	req := httptest.NewRequest(http.MethodPost, "/v1/billing/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.Equal(t, "healthy", resp["status"])
	var names []string
	for _, c := range resp["checks"].([]any) {
		names = append(names, c.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{"uploads", "generator"}, names)
}

func TestHealthEndpoint_DegradedWhenUploadDirMissing(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.rateLimiter.Stop()

	require.NoError(t, os.RemoveAll(cfg.UploadDir))
	w := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w)["status"])
}

func TestLivenessAndReadiness(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health/live", "", nil).Code)
	// Run has not been called
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/health/ready", "", nil).Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = do(t, s, http.MethodGet, "/health/live", "", nil)
	assert.Len(t, w.Header().Get("X-Request-ID"), 32)
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	expected := []string{
		"GET:/health",
		"GET:/metrics",
		"POST:/v1/auth/signup",
		"POST:/v1/auth/login",
		"POST:/v1/admin/identities",
		"GET:/v1/organization",
		"GET:/v1/users/me",
		"POST:/v1/documents",
		"GET:/v1/documents/:id/download",
		"GET:/v1/documents/:id/summaries",
		"POST:/v1/summaries",
		"GET:/v1/activity",
		"GET:/v1/activity/stream",
		"POST:/v1/billing/webhook",
		"GET:/v1/billing/subscription",
		"POST:/v1/billing/checkout",
		"POST:/v1/auth/check-invitation",
		"POST:/v1/auth/refresh",
		"GET:/v1/analytics/stats",
		"GET:/v1/analytics/recent-documents",
		"GET:/v1/analytics/usage-overtime",
	}

	routeSet := make(map[string]bool)
	for _, route := range s.router.Routes() {
		routeSet[route.Method+":"+route.Path] = true
	}
	for _, e := range expected {
		assert.True(t, routeSet[e], "route %s not registered", e)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/v1/documents", "/v1/summaries", "/v1/activity", "/v1/billing/subscription", "/v1/organization", "/v1/analytics/stats"} {
		assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, path, "", nil).Code, path)
	}
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/v1/documents", "not-a-token", nil).Code)
}

func TestAdminRoutesRequireSecret(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/v1/admin/identities", "", map[string]string{"provider": "google"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/nonexistent", "", nil).Code)
}

// ---------------------------------------------------------------------------
// End to end
// ---------------------------------------------------------------------------

func TestSummaryQuotaAndUpgradeFlow(t *testing.T) {
	s := newTestServer(t)
	alice := signup(t, s, "Acme", "alice@acme.example")
	docID := uploadText(t, s, alice.token)

	create := func() *httptest.ResponseRecorder {
		return do(t, s, http.MethodPost, "/v1/summaries", alice.token,
			map[string]string{"documentId": docID, "summaryType": "brief"})
	}

	// Trial limit is two
	for i := 0; i < 2; i++ {
		w := create()
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "Revenue grew in the third quarter. Costs were flat. Margins improved.",
			decode(t, w)["summaryText"])
	}
	w := create()
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "quota_exceeded", decode(t, w)["error"])

	sub := decode(t, do(t, s, http.MethodGet, "/v1/billing/subscription", alice.token, nil))
	assert.Equal(t, "trial", sub["subscriptionStatus"])
	assert.EqualValues(t, 0, sub["summariesRemaining"])

	// Checkout completion upgrades to pro and keeps usage
	payload := []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":"checkout.session.completed","api_version":"2020-08-27",`+
		`"data":{"object":{"id":"cs_1","object":"checkout.session","customer":"cus_1","subscription":"sub_1",`+
		`"metadata":{"tenant_id":%q,"plan_type":"pro"}}}}`, alice.tenantID))
	w = webhook(t, s, payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "applied", decode(t, w)["status"])

	w = webhook(t, s, payload)
	assert.Equal(t, "duplicate", decode(t, w)["status"])

	sub = decode(t, do(t, s, http.MethodGet, "/v1/billing/subscription", alice.token, nil))
	assert.Equal(t, "pro", sub["planType"])
	assert.Equal(t, "active", sub["subscriptionStatus"])
	assert.EqualValues(t, 2, sub["summariesUsed"])
	assert.EqualValues(t, 498, sub["summariesRemaining"])

	assert.Equal(t, http.StatusCreated, create().Code)

	// Activity trail shows the upload and summaries
	act := decode(t, do(t, s, http.MethodGet, "/v1/activity?limit=10", alice.token, nil))
	var actions []string
	for _, r := range act["activity"].([]any) {
		actions = append(actions, r.(map[string]any)["action"].(string))
	}
	assert.Contains(t, actions, "upload")
	assert.Contains(t, actions, "summary_create")
}

func TestWebhook_BadSignature(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/billing/webhook", strings.NewReader(`{"id":"evt_x"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTenantsCannotSeeEachOther(t *testing.T) {
	s := newTestServer(t)
	alice := signup(t, s, "Acme", "alice@acme.example")
	mallory := signup(t, s, "Evil", "mallory@evil.example")
	docID := uploadText(t, s, alice.token)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/documents/"+docID, mallory.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/documents/"+docID+"/download", mallory.token, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/v1/documents/"+docID, mallory.token, nil).Code)

	w := do(t, s, http.MethodPost, "/v1/summaries", mallory.token, map[string]string{"documentId": docID})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "document_not_found", decode(t, w)["error"])

	// Mallory's failed attempt costs nothing
	sub := decode(t, do(t, s, http.MethodGet, "/v1/billing/subscription", mallory.token, nil))
	assert.EqualValues(t, 0, sub["summariesUsed"])

	list := decode(t, do(t, s, http.MethodGet, "/v1/documents", mallory.token, nil))
	assert.EqualValues(t, 0, list["count"])

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/v1/documents/"+docID, alice.token, nil).Code)
}

func TestUploadBypassesJSONSizeLimit(t *testing.T) {
	s := newTestServer(t)
	alice := signup(t, s, "Acme", "alice@acme.example")

	big := bytes.Repeat([]byte("All work and no play. "), 100_000) // ~2.2 MB
	w := upload(t, s, alice.token, "big.txt", big)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// JSON routes keep the 1 MB ceiling
	huge := []byte(`{"email":"` + strings.Repeat("a", 2<<20) + `"}`)
	w = do(t, s, http.MethodPost, "/v1/auth/login", "", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDeleteOrganizationPurgesEverything(t *testing.T) {
	s := newTestServer(t)
	alice := signup(t, s, "Acme", "alice@acme.example")
	uploadText(t, s, alice.token)

	tenantDir := filepath.Join(s.cfg.UploadDir, alice.tenantID)
	_, err := os.Stat(tenantDir)
	require.NoError(t, err)

	w := do(t, s, http.MethodDelete, "/v1/organization", alice.token, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	_, err = os.Stat(tenantDir)
	assert.True(t, os.IsNotExist(err), "uploads are removed with the tenant")
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/v1/documents", alice.token, nil).Code)

	// The email is free again
	signup(t, s, "Acme Again", "alice@acme.example")
}
