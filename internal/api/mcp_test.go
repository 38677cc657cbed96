package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/amshadyc/second-brain/internal/composer"
	"github.com/amshadyc/second-brain/internal/retrieval"
	"github.com/amshadyc/second-brain/internal/storage"
)

// --- mocks ---

type mockRetriever struct {
	results []retrieval.Result
	err     error
	lastK   int
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, topK int) ([]retrieval.Result, error) {
	m.lastK = topK
	return m.results, m.err
}

type mockGenerator struct {
	answer     string
	err        error
	lastPrompt string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.lastPrompt = prompt
	return m.answer, m.err
}

func (m *mockGenerator) Model() string { return "test-model" }

// --- helpers ---

func testComposer(t *testing.T) *composer.Composer {
	t.Helper()
	c, err := composer.New(4000, "")
	if err != nil {
		t.Fatalf("composer.New: %v", err)
	}
	return c
}

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return MCPDeps{
		Retriever: &mockRetriever{},
		Composer:  testComposer(t),
		LLM:       &mockGenerator{answer: "test answer"},
		Store:     store,
		TopK:      10,
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_SearchNotes(t *testing.T) {
	deps := newTestMCPDeps(t)
	deps.Retriever = &mockRetriever{results: []retrieval.Result{
		{ChunkID: "c1", NoteID: "n0", Text: "ran ten miles", Score: 0.9},
	}}
	handler := mcpSearchNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_notes", map[string]interface{}{
		"query": "running",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool errored: %s", toolText(t, result))
	}

	var got []retrieval.Result
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("unmarshaling result: %v", err)
	}
	if len(got) != 1 || got[0].ChunkID != "c1" {
		t.Errorf("got %+v", got)
	}
}

func TestMCPTool_SearchNotes_MissingQuery(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpSearchNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_notes", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing query")
	}
}

func TestMCPTool_SearchNotes_EmptyResults(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpSearchNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_notes", map[string]interface{}{
		"query": "nothing matches",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != "[]" {
		t.Errorf("got %q, want empty JSON array", got)
	}
}

func TestMCPTool_SearchNotes_LimitClamped(t *testing.T) {
	retriever := &mockRetriever{}
	deps := newTestMCPDeps(t)
	deps.Retriever = retriever
	handler := mcpSearchNotes(deps)

	if _, err := handler(context.Background(), makeCallToolRequest("search_notes", map[string]interface{}{
		"query": "q",
		"limit": 500,
	})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retriever.lastK != 50 {
		t.Errorf("limit = %d, want clamped to 50", retriever.lastK)
	}
}

func TestMCPTool_AskNotes(t *testing.T) {
	gen := &mockGenerator{answer: "you wrote about running a lot"}
	deps := newTestMCPDeps(t)
	deps.Retriever = &mockRetriever{results: []retrieval.Result{
		{ChunkID: "c1", Text: "ran ten miles", Score: 0.9},
	}}
	deps.LLM = gen
	handler := mcpAskNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_notes", map[string]interface{}{
		"query": "how was my running year?",
		"mode":  "summary",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool errored: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "you wrote about running a lot" {
		t.Errorf("answer = %q", got)
	}
	if !strings.Contains(gen.lastPrompt, "ran ten miles") {
		t.Error("prompt missing retrieved context")
	}
}

func TestMCPTool_AskNotes_InvalidMode(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpAskNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_notes", map[string]interface{}{
		"query": "q",
		"mode":  "haiku",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for invalid mode")
	}
}

func TestMCPTool_AskNotes_NoLLM(t *testing.T) {
	deps := newTestMCPDeps(t)
	deps.LLM = nil
	handler := mcpAskNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_notes", map[string]interface{}{
		"query": "q",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error when no model is configured")
	}
}

func TestMCPTool_AskNotes_RetrievalError(t *testing.T) {
	deps := newTestMCPDeps(t)
	deps.Retriever = &mockRetriever{err: errors.New("index unavailable")}
	handler := mcpAskNotes(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_notes", map[string]interface{}{
		"query": "q",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for retrieval failure")
	}
}

func TestMCPResource_RecentTurns(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.SaveTurn(storage.Turn{
		ID:        "turn-1",
		CreatedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Query:     "how was my running year?",
		Mode:      "analysis",
		Prompt:    "p",
		Model:     "m",
		Answer:    "a",
	}); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	deps := newTestMCPDeps(t)
	deps.Store = store
	handler := mcpResourceRecentTurns(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("notes://recent-turns"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if !strings.Contains(text.Text, "how was my running year?") {
		t.Errorf("resource body = %s", text.Text)
	}
}
