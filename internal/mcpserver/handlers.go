package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const defaultPageSize = 20

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *Client) *Handlers {
	return &Handlers{client: client}
}

// HandleGetQuota reports plan, status and remaining summaries.
func (h *Handlers) HandleGetQuota(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetSubscription(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get quota: %v", err)), nil
	}
	text, err := formatQuota(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse quota: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleListDocuments lists the organization's documents.
func (h *Handlers) HandleListDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultPageSize)
	cursor := req.GetString("cursor", "")

	raw, err := h.client.ListDocuments(ctx, limit, cursor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list documents: %v", err)), nil
	}
	text, err := formatDocumentList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse documents: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleSummarizeDocument generates a summary through the gated API.
func (h *Handlers) HandleSummarizeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID := strings.TrimSpace(req.GetString("document_id", ""))
	if documentID == "" {
		return mcp.NewToolResultError("document_id is required"), nil
	}
	style := req.GetString("summary_type", "")

	raw, err := h.client.CreateSummary(ctx, documentID, style)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden && apiErr.Code == "quota_exceeded" {
			return mcp.NewToolResultError(
				"The organization has used all of its summaries for this billing period. " +
					"An admin can upgrade the plan to continue."), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Failed to summarize document: %v", err)), nil
	}

	var sum struct {
		ID         string `json:"id"`
		DocumentID string `json:"documentId"`
		Style      string `json:"summaryType"`
		Content    string `json:"summaryText"`
		TokensUsed int    `json:"tokensUsed"`
	}
	if err := json.Unmarshal(raw, &sum); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse summary: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Summary (%s) of document %s\n", sum.Style, sum.DocumentID)
	fmt.Fprintf(&sb, "Summary ID: %s\n", sum.ID)
	fmt.Fprintf(&sb, "Tokens used: %d\n\n", sum.TokensUsed)
	sb.WriteString(sum.Content)
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleListActivity lists the organization's audit trail.
func (h *Handlers) HandleListActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultPageSize)
	cursor := req.GetString("cursor", "")

	raw, err := h.client.ListActivity(ctx, limit, cursor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list activity: %v", err)), nil
	}
	text, err := formatActivity(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse activity: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

func formatQuota(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Summary quota:\n")
	fmt.Fprintf(&sb, "  Plan:      %s\n", getString(m, "planType"))
	fmt.Fprintf(&sb, "  Status:    %s\n", getString(m, "subscriptionStatus"))
	fmt.Fprintf(&sb, "  Used:      %s of %s\n", getString(m, "summariesUsed"), getString(m, "summariesLimit"))
	fmt.Fprintf(&sb, "  Remaining: %s\n", getString(m, "summariesRemaining"))
	if getString(m, "subscriptionStatus") == "past_due" {
		sb.WriteString("\nPayment is past due; summaries stop once the quota is used.\n")
	}
	return sb.String(), nil
}

func formatDocumentList(raw json.RawMessage) (string, error) {
	var resp struct {
		Documents  []map[string]any `json:"documents"`
		NextCursor string           `json:"nextCursor"`
		HasMore    bool             `json:"hasMore"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected documents response format")
	}
	if len(resp.Documents) == 0 {
		return "No documents found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d document(s):\n\n", len(resp.Documents))
	for i, d := range resp.Documents {
		fmt.Fprintf(&sb, "%d. %s [%s]\n", i+1, getString(d, "filename"), getString(d, "status"))
		fmt.Fprintf(&sb, "   id: %s, %s bytes, uploaded %s\n",
			getString(d, "id"), getString(d, "sizeBytes"), getString(d, "createdAt"))
	}
	if resp.HasMore {
		fmt.Fprintf(&sb, "\nMore documents available. cursor: %s\n", resp.NextCursor)
	}
	return sb.String(), nil
}

func formatActivity(raw json.RawMessage) (string, error) {
	var resp struct {
		Activity   []map[string]any `json:"activity"`
		NextCursor string           `json:"nextCursor"`
		HasMore    bool             `json:"hasMore"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected activity response format")
	}
	if len(resp.Activity) == 0 {
		return "No activity recorded.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d activity record(s):\n\n", len(resp.Activity))
	for _, a := range resp.Activity {
		fmt.Fprintf(&sb, "- %s  %s  %s by %s\n",
			getString(a, "createdAt"), getString(a, "action"), getString(a, "target"), getString(a, "actorId"))
	}
	if resp.HasMore {
		fmt.Fprintf(&sb, "\nMore records available. cursor: %s\n", resp.NextCursor)
	}
	return sb.String(), nil
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return strconv.FormatFloat(f, 'f', -1, 64)
			}
		}
	}
	return ""
}
