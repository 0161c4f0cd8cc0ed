package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the docsum MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetQuota = mcp.NewTool("get_quota",
	mcp.WithDescription(
		"Show the organization's plan, subscription status and summary quota for the current billing period. "+
			"Check this before summarizing when you are unsure whether quota remains."),
)

var ToolListDocuments = mcp.NewTool("list_documents",
	mcp.WithDescription(
		"List documents uploaded to the organization, newest first. "+
			"Returns each document's id, filename, status and size. Only documents with status 'completed' can be summarized."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of documents to return (default 20, max 200)")),
	mcp.WithString("cursor",
		mcp.Description("Cursor from a previous list_documents result to fetch the next page")),
)

var ToolSummarizeDocument = mcp.NewTool("summarize_document",
	mcp.WithDescription(
		"Generate a summary of one document. Each call consumes one summary from the organization's quota, "+
			"even if generation fails. Fails with a quota error once the limit is reached."),
	mcp.WithString("document_id",
		mcp.Required(),
		mcp.Description("The document id from list_documents")),
	mcp.WithString("summary_type",
		mcp.Description("How long the summary should be (default 'standard')"),
		mcp.Enum("brief", "standard", "detailed")),
)

var ToolListActivity = mcp.NewTool("list_activity",
	mcp.WithDescription(
		"Show the organization's audit trail, newest first: uploads, deletions, invitations, role changes, "+
			"settings updates and summaries, with who did them and when."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return (default 20, max 200)")),
	mcp.WithString("cursor",
		mcp.Description("Cursor from a previous list_activity result to fetch the next page")),
)
