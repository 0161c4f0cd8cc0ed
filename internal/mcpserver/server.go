package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients during initialization.
const Version = "1.0.0"

// NewMCPServer creates a configured MCP server with all docsum tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("docsum", Version)
	h := NewHandlers(NewClient(cfg))

	s.AddTool(ToolGetQuota, h.HandleGetQuota)
	s.AddTool(ToolListDocuments, h.HandleListDocuments)
	s.AddTool(ToolSummarizeDocument, h.HandleSummarizeDocument)
	s.AddTool(ToolListActivity, h.HandleListActivity)

	return s
}
