package composer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amshadyc/second-brain/internal/retrieval"
)

func newTestComposer(t *testing.T, budget int) *Composer {
	t.Helper()
	c, err := New(budget, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func result(text string, score float32) retrieval.Result {
	return retrieval.Result{ChunkID: text, NoteID: "n", Text: text, Score: score}
}

func TestCompose_IncludesChunksAndQuery(t *testing.T) {
	c := newTestComposer(t, 4000)
	results := []retrieval.Result{
		result("ran ten miles this morning", 0.9),
		result("baked sourdough again", 0.5),
	}

	prompt, err := c.Compose(ModeAnalysis, "how was my running year?", results)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for _, want := range []string{"ran ten miles this morning", "baked sourdough again", "how was my running year?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "{retrieved_notes}") || strings.Contains(prompt, "{query}") {
		t.Error("prompt contains unexpanded placeholders")
	}
}

func TestCompose_BudgetStopsAtFirstOverflow(t *testing.T) {
	// ~25 tokens per big chunk; budget admits the first two entries but not
	// the third, and the small fourth chunk must not sneak in after the stop.
	big := strings.Repeat("x", 100)
	results := []retrieval.Result{
		result(big+"-a", 0.9),
		result(big+"-b", 0.8),
		result(big+"-c", 0.7),
		result("tiny", 0.6),
	}

	c := newTestComposer(t, 55)
	prompt, err := c.Compose(ModeSummary, "q", results)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(prompt, big+"-a") || !strings.Contains(prompt, big+"-b") {
		t.Error("prompt missing chunks that fit the budget")
	}
	if strings.Contains(prompt, big+"-c") {
		t.Error("prompt contains the chunk that exceeded the budget")
	}
	if strings.Contains(prompt, "tiny") {
		t.Error("composition continued past the first over-budget chunk")
	}
}

func TestCompose_ContextNeverExceedsBudget(t *testing.T) {
	var results []retrieval.Result
	for _, s := range []string{"alpha alpha alpha", "beta beta", "gamma gamma gamma gamma", "delta"} {
		results = append(results, result(s, 0.5))
	}

	for _, budget := range []int{5, 10, 20, 100} {
		c := newTestComposer(t, budget)
		prompt, err := c.Compose(ModeAnalysis, "q", results)
		if err != nil {
			t.Fatalf("Compose(budget=%d): %v", budget, err)
		}

		// Reconstruct the context portion the same way Compose joins it.
		var included []string
		for _, r := range results {
			if strings.Contains(prompt, r.Text) {
				included = append(included, r.Text)
			}
		}
		if got := EstimateTokens(strings.Join(included, "\n\n")); got > budget {
			t.Errorf("budget %d: context uses %d tokens", budget, got)
		}
	}
}

func TestCompose_TopChunkAloneFitsIsIncluded(t *testing.T) {
	results := []retrieval.Result{result("short note", 0.9)}
	c := newTestComposer(t, EstimateTokens("short note"))

	prompt, err := c.Compose(ModeAnalysis, "q", results)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(prompt, "short note") {
		t.Error("highest-scoring chunk that fits the budget was dropped")
	}
}

func TestCompose_ModeIsolation(t *testing.T) {
	results := []retrieval.Result{
		result("note one", 0.9),
		result("note two", 0.8),
	}
	c := newTestComposer(t, 4000)

	prompts := make(map[Mode]string, 3)
	for _, mode := range Modes() {
		p, err := c.Compose(mode, "same query", results)
		if err != nil {
			t.Fatalf("Compose(%s): %v", mode, err)
		}
		// Every mode carries the identical context and query.
		for _, want := range []string{"note one", "note two", "same query"} {
			if !strings.Contains(p, want) {
				t.Errorf("mode %s missing %q", mode, want)
			}
		}
		prompts[mode] = p
	}

	if prompts[ModeAnalysis] == prompts[ModeSummary] || prompts[ModeSummary] == prompts[ModePatterns] {
		t.Error("modes produced identical prompts; template wording must differ")
	}
}

func TestCompose_NoResults(t *testing.T) {
	c := newTestComposer(t, 4000)
	prompt, err := c.Compose(ModeAnalysis, "obscure question", nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(prompt, "no relevant notes") {
		t.Errorf("prompt does not flag the empty context: %q", prompt)
	}
	if !strings.Contains(prompt, "obscure question") {
		t.Error("no-context prompt dropped the query")
	}
}

func TestCompose_TopChunkOverBudget(t *testing.T) {
	c := newTestComposer(t, 2)
	prompt, err := c.Compose(ModeAnalysis, "q", []retrieval.Result{result("this chunk is far too large", 0.9)})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if strings.Contains(prompt, "far too large") {
		t.Error("over-budget chunk was included")
	}
	if !strings.Contains(prompt, "no relevant notes") {
		t.Error("expected the no-context prompt when nothing fits")
	}
}

func TestCompose_ReadableDate(t *testing.T) {
	r := result("old thought", 0.9)
	r.CreatedAt = 1652265000000000 // 2022-05-11 in microseconds

	c := newTestComposer(t, 4000)
	prompt, err := c.Compose(ModeAnalysis, "q", []retrieval.Result{r})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(prompt, "(Created: May 2022)") {
		t.Error("prompt missing readable creation date")
	}
}

func TestNew_PromptsDirOverride(t *testing.T) {
	dir := t.TempDir()
	custom := "CUSTOM TEMPLATE\n{retrieved_notes}\n{query}\n"
	if err := os.WriteFile(filepath.Join(dir, "analysis.txt"), []byte(custom), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := New(4000, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p, err := c.Compose(ModeAnalysis, "q", []retrieval.Result{result("note", 0.9)})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !strings.Contains(p, "CUSTOM TEMPLATE") {
		t.Error("override template not used for analysis mode")
	}

	// Modes without an override file fall back to the built-ins.
	if _, err := c.Compose(ModeSummary, "q", []retrieval.Result{result("note", 0.9)}); err != nil {
		t.Errorf("built-in fallback failed: %v", err)
	}
}

func TestNew_RejectsTemplateWithoutPlaceholders(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "analysis.txt"), []byte("no placeholders here"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(4000, dir); err == nil {
		t.Fatal("expected error for template missing placeholders")
	}
}

func TestParseMode(t *testing.T) {
	for _, name := range []string{"analysis", "summary", "patterns"} {
		m, err := ParseMode(name)
		if err != nil {
			t.Errorf("ParseMode(%q): %v", name, err)
		}
		if string(m) != name {
			t.Errorf("ParseMode(%q) = %q", name, m)
		}
	}
	if _, err := ParseMode("haiku"); err == nil {
		t.Error("unrecognized mode accepted")
	}
}
