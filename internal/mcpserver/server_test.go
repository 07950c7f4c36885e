package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/calden/knowld/internal/service"
	"github.com/calden/knowld/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	svc := service.New(testutil.TestStore(t), testutil.TestAssembler(), 30*time.Minute, nil)
	return New(svc)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_knowls":
		result, err = srv.searchKnowls(ctx, req)
	case "read_knowl":
		result, err = srv.readKnowl(ctx, req)
	case "save_knowl":
		result, err = srv.saveKnowl(ctx, req)
	case "render_knowl":
		result, err = srv.renderKnowl(ctx, req)
	case "list_categories":
		result, err = srv.listCategories(ctx, req)
	case "get_knowl_contract":
		result, err = srv.getKnowlContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSaveAndReadKnowl(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "save_knowl", map[string]interface{}{
		"id":      "group.sylow",
		"title":   "Sylow Theorems",
		"content": "Let $G$ be finite.",
	})
	if text := resultText(r); text != "saved: group.sylow" {
		t.Errorf("save result = %q", text)
	}

	r = callTool(t, srv, "read_knowl", map[string]interface{}{"id": "group.sylow"})
	text := resultText(r)
	if !strings.Contains(text, "Sylow Theorems") || !strings.Contains(text, `"beta"`) {
		t.Errorf("read result = %q", text)
	}
}

func TestReadKnowlMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_knowl", map[string]interface{}{"id": "no.such"})
	if !r.IsError {
		t.Error("expected error for missing knowl")
	}
}

func TestSaveKnowlRejectsBadID(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "save_knowl", map[string]interface{}{
		"id":      "Bad ID",
		"title":   "t",
		"content": "c",
	})
	if !r.IsError {
		t.Error("expected error for malformed identifier")
	}
}

func TestSearchKnowls(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "save_knowl", map[string]interface{}{
		"id": "group.sylow", "title": "Sylow Theorems", "content": "finite group theory",
	})
	_ = callTool(t, srv, "save_knowl", map[string]interface{}{
		"id": "field.galois", "title": "Galois Theory", "content": "field extensions",
	})

	r := callTool(t, srv, "search_knowls", map[string]interface{}{"query": "finite"})
	text := resultText(r)
	if !strings.Contains(text, "group.sylow") || strings.Contains(text, "field.galois") {
		t.Errorf("search result = %q", text)
	}

	r = callTool(t, srv, "search_knowls", map[string]interface{}{"query": "theory", "category": "field"})
	text = resultText(r)
	if !strings.Contains(text, "field.galois") || strings.Contains(text, "group.sylow") {
		t.Errorf("category-filtered result = %q", text)
	}
}

func TestRenderKnowl(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "save_knowl", map[string]interface{}{
		"id": "a.b", "title": "T", "content": "See [[c.d]] and $x^2$.",
	})

	r := callTool(t, srv, "render_knowl", map[string]interface{}{"id": "a.b"})
	text := resultText(r)
	if !strings.Contains(text, "$x^2$") {
		t.Errorf("math not preserved: %q", text)
	}
	if !strings.Contains(text, `data-knowl="c.d"`) {
		t.Errorf("reference not expanded to embed box: %q", text)
	}
}

func TestListCategories(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "save_knowl", map[string]interface{}{
		"id": "group.a", "title": "A", "content": "x",
	})

	r := callTool(t, srv, "list_categories", map[string]interface{}{})
	if !strings.Contains(resultText(r), "group") {
		t.Errorf("categories = %q", resultText(r))
	}
}

func TestGetKnowlContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_knowl_contract", map[string]interface{}{})
	if !strings.Contains(resultText(r), "Knowl Format Contract") {
		t.Error("contract text missing")
	}
}
