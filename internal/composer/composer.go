// Package composer assembles mode-specific prompts from retrieved note
// chunks under a fixed context budget.
package composer

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/amshadyc/second-brain/internal/corpus"
	"github.com/amshadyc/second-brain/internal/retrieval"
)

//go:embed prompts/*.txt
var builtinPrompts embed.FS

const defaultMaxContextTokens = 4000

// noContextPrompt is used when retrieval returns nothing. The model is told
// explicitly instead of receiving an empty context.
const noContextPrompt = `The user asked a question about their personal notes, but no relevant notes were found in the archive.

Question: {query}

Tell the user that nothing in their notes matches this question, and suggest how they might rephrase it.`

// Composer assembles prompts from retrieved chunks and the user query. It
// holds one template per mode, loaded once at construction; a missing
// template is a construction error, not a per-query one.
type Composer struct {
	maxContextTokens int
	templates        map[Mode]string
}

// New creates a Composer using the built-in templates, optionally overridden
// by files named <mode>.txt in promptsDir. If maxContextTokens <= 0, the
// default (4000) is used.
func New(maxContextTokens int, promptsDir string) (*Composer, error) {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}

	templates := make(map[Mode]string, 3)
	for _, mode := range Modes() {
		text, err := loadTemplate(mode, promptsDir)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(text, "{retrieved_notes}") || !strings.Contains(text, "{query}") {
			return nil, fmt.Errorf("template for mode %s is missing the {retrieved_notes} or {query} placeholder", mode)
		}
		templates[mode] = text
	}

	return &Composer{maxContextTokens: maxContextTokens, templates: templates}, nil
}

func loadTemplate(mode Mode, promptsDir string) (string, error) {
	name := string(mode) + ".txt"
	if promptsDir != "" {
		b, err := os.ReadFile(filepath.Join(promptsDir, name))
		if err == nil {
			return string(b), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("reading template %s: %w", name, err)
		}
		// Fall through to the built-in template.
	}
	b, err := builtinPrompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("loading built-in template for mode %s: %w", mode, err)
	}
	return string(b), nil
}

// Compose builds the prompt for a query under the current mode. Results must
// already be ranked by descending score; chunks are added in that order until
// the next one would exceed the context budget. With no results the composer
// emits an explicit no-context prompt.
func (c *Composer) Compose(mode Mode, query string, results []retrieval.Result) (string, error) {
	template, ok := c.templates[mode]
	if !ok {
		return "", fmt.Errorf("no template loaded for mode %q", mode)
	}

	if len(results) == 0 {
		return strings.ReplaceAll(noContextPrompt, "{query}", query), nil
	}

	var entries []string
	remaining := c.maxContextTokens
	for i, r := range results {
		entry := formatEntry(r)
		cost := EstimateTokens(entry)
		if i > 0 {
			cost += EstimateTokens("\n\n")
		}
		if cost > remaining {
			break
		}
		entries = append(entries, entry)
		remaining -= cost
	}

	notes := strings.Join(entries, "\n\n")
	if notes == "" {
		// Even the top chunk is over budget on its own.
		return strings.ReplaceAll(noContextPrompt, "{query}", query), nil
	}

	prompt := strings.ReplaceAll(template, "{retrieved_notes}", notes)
	prompt = strings.ReplaceAll(prompt, "{query}", query)
	return prompt, nil
}

// formatEntry renders one chunk, appending a human-readable creation date
// when the chunk carries one.
func formatEntry(r retrieval.Result) string {
	text := r.Text
	if t := corpus.TimeFromUsec(r.CreatedAt); !t.IsZero() {
		text += "\n(Created: " + t.Format("January 2006") + ")"
	}
	return text
}

// EstimateTokens provides a rough token count using the 4 chars per token
// heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
