package session

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var nonWord = regexp.MustCompile(`[^\w\s]`)

// responseFilename derives a readable, unique filename from the query: the
// first five words slugged with underscores, capped at 50 chars, plus a
// timestamp.
func responseFilename(query string, now time.Time) string {
	words := strings.Fields(nonWord.ReplaceAllString(strings.ToLower(query), ""))
	if len(words) > 5 {
		words = words[:5]
	}
	slug := strings.Join(words, "_")
	if len(slug) < 3 {
		slug = "query"
	}
	if len(slug) > 50 {
		slug = slug[:50]
	}
	return fmt.Sprintf("%s_%s.md", slug, now.Format("20060102_150405"))
}

// saveResponse archives one answer as a markdown file with the query at the
// top. Returns the path written.
func saveResponse(dir, query, answer string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating responses directory: %w", err)
	}
	path := filepath.Join(dir, responseFilename(query, now))
	content := fmt.Sprintf("# Query\n\n%s\n\n---\n\n%s", query, answer)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing response file: %w", err)
	}
	return path, nil
}
