package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/amshadyc/second-brain/internal/composer"
	"github.com/amshadyc/second-brain/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Retriever Retriever
	Composer  *composer.Composer
	LLM       Generator // optional; ask_notes returns an error when nil
	Store     TurnLister
	TopK      int
}

// TurnLister is the slice of the store the MCP resources need.
type TurnLister interface {
	RecentTurns(limit int) ([]storage.Turn, error)
}

// NewMCPServer creates an MCP server exposing the note archive to agents.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"second-brain",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("second-brain — semantic search and analysis over a personal note archive."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_notes",
			mcp.WithDescription("Semantically search the note archive and return the most relevant passages."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchNotes(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_notes",
			mcp.WithDescription("Answer a question from the note archive using retrieval plus a language model."),
			mcp.WithString("query", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("mode", mcp.Description("Response style: analysis, summary, or patterns (default analysis)")),
		),
		mcpAskNotes(deps),
	)

	if deps.Store != nil {
		s.AddResource(
			mcp.NewResource(
				"notes://recent-turns",
				"Recent Questions",
				mcp.WithResourceDescription("Last 10 question/answer turns (queries only)"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceRecentTurns(deps),
		)
	}

	return s
}

func mcpSearchNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		results, err := deps.Retriever.Retrieve(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		if len(results) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAskNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.LLM == nil {
			return mcpError("question answering not available: no language model configured"), nil
		}

		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		modeName := req.GetString("mode", string(composer.ModeAnalysis))
		mode, err := composer.ParseMode(modeName)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		results, err := deps.Retriever.Retrieve(ctx, query, deps.TopK)
		if err != nil {
			return mcpError(fmt.Sprintf("retrieval failed: %v", err)), nil
		}

		prompt, err := deps.Composer.Compose(mode, query, results)
		if err != nil {
			return mcpError(fmt.Sprintf("composing prompt failed: %v", err)), nil
		}

		answer, err := deps.LLM.Generate(ctx, prompt)
		if err != nil {
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}

		return mcpText(answer), nil
	}
}

func mcpResourceRecentTurns(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		turns, err := deps.Store.RecentTurns(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list recent turns: %w", err)
		}

		type turnSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Query     string `json:"query"`
			Mode      string `json:"mode"`
		}

		summaries := make([]turnSummary, len(turns))
		for i, t := range turns {
			query := t.Query
			if utf8.RuneCountInString(query) > 200 {
				runes := []rune(query)
				query = string(runes[:200]) + "..."
			}
			summaries[i] = turnSummary{
				ID:        t.ID,
				CreatedAt: t.CreatedAt.Format(time.RFC3339),
				Query:     query,
				Mode:      t.Mode,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal turns: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
