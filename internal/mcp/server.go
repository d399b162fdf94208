// Package mcp exposes the catalog to AI clients as read-only MCP tools.
// It never bypasses the download entitlement gate: raw workflow JSON is
// not reachable from here.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"flowstore/backend/internal/repository"
	"flowstore/backend/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	repo      repository.Store
}

func NewServer(repo repository.Store) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Workflow Store Catalog",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		repo: repo,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"search_workflows",
			mcp.WithDescription("Search the workflow catalog by name, description, or integration"),
			mcp.WithString("query", mcp.Required(), mcp.Description("Free-text search query")),
		),
		s.handleSearchWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"workflow_instructions",
			mcp.WithDescription("Fetch the setup instructions of a catalog workflow"),
			mcp.WithString("slug", mcp.Required(), mcp.Description("The workflow slug")),
		),
		s.handleWorkflowInstructions,
	)
}

// catalogEntry is the trimmed view returned to MCP clients.
type catalogEntry struct {
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Description  string   `json:"description"`
	Integrations []string `json:"integrations"`
}

func (s *Server) handleSearchWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("Missing required parameter: query"), nil
	}

	workflows, err := s.repo.ListWorkflows(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}

	needle := strings.ToLower(query)
	var results []catalogEntry
	for _, w := range workflows {
		if !matches(w, needle) {
			continue
		}
		results = append(results, catalogEntry{
			Slug:         w.WorkflowSlug,
			Name:         w.Name,
			Category:     w.CategoryTitle,
			Description:  w.Description,
			Integrations: w.Integrations,
		})
	}

	jsonBytes, _ := json.Marshal(results)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleWorkflowInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	slug, ok := args["slug"].(string)
	if !ok || slug == "" {
		return mcp.NewToolResultError("Missing required parameter: slug"), nil
	}

	workflow, err := s.repo.GetWorkflowBySlug(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load workflow: %v", err)), nil
	}
	if workflow.InstructionsMarkdown == "" {
		return mcp.NewToolResultError("No instructions stored for this workflow"), nil
	}

	return mcp.NewToolResultText(workflow.InstructionsMarkdown), nil
}

func matches(w *models.Workflow, needle string) bool {
	if strings.Contains(strings.ToLower(w.Name), needle) ||
		strings.Contains(strings.ToLower(w.Description), needle) ||
		strings.Contains(strings.ToLower(w.CategoryTitle), needle) {
		return true
	}
	for _, integration := range w.Integrations {
		if strings.Contains(strings.ToLower(integration), needle) {
			return true
		}
	}
	return false
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// SSE server backs both the streaming endpoints and direct POSTs
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
