// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the knowledge base tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/calden/knowld/internal/service"
)

// Server wraps the MCP server with knowl tools.
type Server struct {
	mcp *server.MCPServer
	svc *service.Service
}

// New creates an MCP server with all knowl tools registered.
func New(svc *service.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Knowld",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_knowls",
		mcp.WithDescription("Keyword search across knowl identifiers, titles, and content. All query tokens must match."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("category", mcp.Description("Optional category filter (the identifier prefix before the first dot)")),
	), s.searchKnowls)

	s.mcp.AddTool(mcp.NewTool("read_knowl",
		mcp.WithDescription("Read a knowl's title, raw content, and metadata by identifier."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Knowl identifier (e.g. group.sylow)")),
	), s.readKnowl)

	s.mcp.AddTool(mcp.NewTool("save_knowl",
		mcp.WithDescription("Create or update a knowl. Content MUST follow the canonical knowl format "+
			"(Markdown with $math$ spans, #hashtags, and [[id]] references to other knowls). "+
			"Read the contract first via the get_knowl_contract tool or the knowld://knowl-format resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Knowl identifier: lowercase letters, digits, dot, underscore, hyphen")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Human-readable title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content following the knowl format contract")),
		mcp.WithString("quality", mcp.Description("Quality tag: beta, ok, or reviewed (defaults to beta)")),
	), s.saveKnowl)

	s.mcp.AddTool(mcp.NewTool("render_knowl",
		mcp.WithDescription("Render a knowl to its embeddable HTML fragment, with [[id]] references "+
			"expanded to embed boxes and math spans passed through verbatim."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Knowl identifier")),
	), s.renderKnowl)

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List the distinct category tags in use."),
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("get_knowl_contract",
		mcp.WithDescription("Returns the canonical knowl format contract. "+
			"Call this before creating or updating knowls to ensure correct structure."),
	), s.getKnowlContract)

	// Resource: knowl format contract.
	s.mcp.AddResource(
		mcp.NewResource("knowld://knowl-format", "Knowl Format Contract",
			mcp.WithResourceDescription("Canonical knowl content format that all knowls must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readKnowlFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchKnowls(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category := req.GetString("category", "")

	items, err := s.svc.Search(ctx, service.SearchOpts{Query: query, Category: category})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readKnowl(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	k, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !k.Exists {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(k, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) saveKnowl(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	quality := req.GetString("quality", "")

	if _, err := s.svc.Save(ctx, id, title, content, quality, "mcp"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", id)), nil
}

func (s *Server) renderKnowl(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Render(ctx, id, service.RenderOpts{Footer: true})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// A contained failure still yields the notice fragment, mirroring the
	// HTTP behavior.
	return mcp.NewToolResultText(res.HTML), nil
}

func (s *Server) listCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cats, err := s.svc.Categories(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(cats, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getKnowlContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(KnowlFormatContract), nil
}

func (s *Server) readKnowlFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "knowld://knowl-format",
			MIMEType: "text/markdown",
			Text:     KnowlFormatContract,
		},
	}, nil
}
