package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	h := NewHandlers(NewClient(Config{APIURL: ts.URL + "/", APIKey: "dsk_test_key"}))
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Client tests
// ============================================================

func TestClient_AuthHeader(t *testing.T) {
	var gotAuth, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewClient(Config{APIURL: ts.URL, APIKey: "dsk_secret123"})
	_, err := client.GetSubscription(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer dsk_secret123", gotAuth)
	assert.Equal(t, "/v1/billing/subscription", gotPath)
}

func TestClient_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "unauthorized",
			"message": "Invalid or expired token",
		})
	}))
	defer ts.Close()

	_, err := NewClient(Config{APIURL: ts.URL, APIKey: "bad"}).GetSubscription(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "unauthorized", apiErr.Code)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Invalid or expired token")
}

func TestClient_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	_, err := NewClient(Config{APIURL: ts.URL, APIKey: "k"}).ListDocuments(context.Background(), 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_ConnectionRefused(t *testing.T) {
	_, err := NewClient(Config{APIURL: "http://127.0.0.1:1", APIKey: "k"}).GetSubscription(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestClient_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(Config{APIURL: ts.URL, APIKey: "k"}).ListActivity(ctx, 5, "")
	require.Error(t, err)
}

func TestClient_PageQuery(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/activity", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
		_, _ = w.Write([]byte(`{"activity":[]}`))
	}))
	defer ts.Close()

	_, err := NewClient(Config{APIURL: ts.URL, APIKey: "k"}).ListActivity(context.Background(), 5, "abc")
	require.NoError(t, err)
}

// ============================================================
// Tool handler tests
// ============================================================

func TestHandleGetQuota(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"organizationId":     "org-1",
			"planType":           "pro",
			"subscriptionStatus": "past_due",
			"summariesLimit":     500,
			"summariesUsed":      42,
			"summariesRemaining": 458,
		})
	}))
	defer cleanup()

	result, err := h.HandleGetQuota(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Plan:      pro")
	assert.Contains(t, text, "Used:      42 of 500")
	assert.Contains(t, text, "Remaining: 458")
	assert.Contains(t, text, "past due")
}

func TestHandleGetQuota_APIError(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized","message":"Authentication required."}`))
	}))
	defer cleanup()

	result, err := h.HandleGetQuota(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Authentication required.")
}

func TestHandleListDocuments(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/documents", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{
			"documents": [
				{"id": "doc-1", "filename": "q3.txt", "status": "completed", "sizeBytes": 10485760, "createdAt": "2026-03-01T09:00:00Z"},
				{"id": "doc-2", "filename": "scan.pdf", "status": "uploaded", "sizeBytes": 2048, "createdAt": "2026-02-28T09:00:00Z"}
			],
			"count": 2, "nextCursor": "next-page", "hasMore": true
		}`))
	}))
	defer cleanup()

	result, err := h.HandleListDocuments(context.Background(), makeRequest(map[string]any{"limit": float64(2)}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 document(s)")
	assert.Contains(t, text, "1. q3.txt [completed]")
	assert.Contains(t, text, "10485760 bytes")
	assert.Contains(t, text, "2. scan.pdf [uploaded]")
	assert.Contains(t, text, "cursor: next-page")
}

func TestHandleListDocuments_Empty(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"documents": [], "count": 0, "nextCursor": "", "hasMore": false}`))
	}))
	defer cleanup()

	result, err := h.HandleListDocuments(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "No documents found.", resultText(t, result))
}

func TestHandleSummarizeDocument(t *testing.T) {
	var gotBody map[string]string
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/summaries", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"sum-1","documentId":"doc-1","summaryType":"brief","summaryText":"Revenue grew.","tokensUsed":17}`))
	}))
	defer cleanup()

	result, err := h.HandleSummarizeDocument(context.Background(), makeRequest(map[string]any{
		"document_id":  "doc-1",
		"summary_type": "brief",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, map[string]string{"documentId": "doc-1", "summaryType": "brief"}, gotBody)

	text := resultText(t, result)
	assert.Contains(t, text, "Summary (brief) of document doc-1")
	assert.Contains(t, text, "Tokens used: 17")
	assert.Contains(t, text, "Revenue grew.")
}

func TestHandleSummarizeDocument_MissingID(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API must not be called")
	}))
	defer cleanup()

	result, err := h.HandleSummarizeDocument(context.Background(), makeRequest(map[string]any{"document_id": "  "}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "document_id is required")
}

func TestHandleSummarizeDocument_QuotaExceeded(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"quota_exceeded","message":"Summary limit reached for this billing period."}`))
	}))
	defer cleanup()

	result, err := h.HandleSummarizeDocument(context.Background(), makeRequest(map[string]any{"document_id": "doc-1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "used all of its summaries")
}

func TestHandleSummarizeDocument_NotReady(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"document_not_ready","message":"Document text not available"}`))
	}))
	defer cleanup()

	result, err := h.HandleSummarizeDocument(context.Background(), makeRequest(map[string]any{"document_id": "doc-1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Document text not available")
}

func TestHandleListActivity(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"activity":[
			{"id":"a1","actorId":"user-1","action":"summary_create","target":"sum-1","createdAt":"2026-03-01T10:00:00Z"},
			{"id":"a2","actorId":"user-1","action":"upload","target":"doc-1","createdAt":"2026-03-01T09:00:00Z"}
		],"count":2,"nextCursor":"","hasMore":false}`))
	}))
	defer cleanup()

	result, err := h.HandleListActivity(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "2 activity record(s)")
	assert.Contains(t, text, "summary_create  sum-1 by user-1")
	assert.NotContains(t, text, "cursor")
}

func TestHandleListActivity_BadPayload(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[1,2,3]`))
	}))
	defer cleanup()

	result, err := h.HandleListActivity(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	s := NewMCPServer(Config{APIURL: "http://localhost:8080", APIKey: "dsk_x"})
	require.NotNil(t, s)
}

func TestTools_Schema(t *testing.T) {
	assert.Equal(t, "get_quota", ToolGetQuota.Name)
	assert.Equal(t, "list_documents", ToolListDocuments.Name)
	assert.Equal(t, "summarize_document", ToolSummarizeDocument.Name)
	assert.Equal(t, "list_activity", ToolListActivity.Name)
	assert.Contains(t, ToolSummarizeDocument.InputSchema.Required, "document_id")
}

// Failures are encoded in result.IsError, never the Go error.
func TestHandlers_NeverReturnGoError(t *testing.T) {
	h := NewHandlers(NewClient(Config{APIURL: "http://127.0.0.1:1", APIKey: "k"}))

	tests := []struct {
		name string
		fn   func() (*mcp.CallToolResult, error)
	}{
		{"GetQuota", func() (*mcp.CallToolResult, error) {
			return h.HandleGetQuota(context.Background(), makeRequest(nil))
		}},
		{"ListDocuments", func() (*mcp.CallToolResult, error) {
			return h.HandleListDocuments(context.Background(), makeRequest(nil))
		}},
		{"SummarizeDocument", func() (*mcp.CallToolResult, error) {
			return h.HandleSummarizeDocument(context.Background(), makeRequest(map[string]any{"document_id": "d1"}))
		}},
		{"ListActivity", func() (*mcp.CallToolResult, error) {
			return h.HandleListActivity(context.Background(), makeRequest(nil))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.fn()
			assert.NoError(t, err)
			require.NotNil(t, result)
			assert.True(t, result.IsError)
		})
	}
}
