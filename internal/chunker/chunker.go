// Package chunker splits notes into retrieval-sized passages. Chunking is
// deterministic: the same note text and config always produce byte-identical
// chunks, and chunk ids are derived from content and position so they stay
// stable across rebuilds.
package chunker

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/amshadyc/second-brain/internal/corpus"
)

// idNamespace is the UUIDv5 namespace for chunk ids.
var idNamespace = uuid.MustParse("9c1f2c44-8b0a-4f21-a2d3-5f6e7b8c9d0e")

// Config controls chunk boundaries. All sizes are in runes.
type Config struct {
	MaxSize int
	Overlap int
}

// Chunk is a bounded slice of a note's normalized text. Offsets are rune
// offsets into the normalized note text; overlapping chunks duplicate text
// but offsets always point at the source region.
type Chunk struct {
	ID        string `json:"id"`
	NoteID    string `json:"note_id"`
	Text      string `json:"text"`
	Start     int    `json:"start_offset"`
	End       int    `json:"end_offset"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// Split chunks a single note. An empty or whitespace-only note yields zero
// chunks; a note no longer than MaxSize yields exactly one. Cuts prefer
// sentence boundaries, then word boundaries, then a hard cut at MaxSize.
func Split(note corpus.Note, cfg Config) []Chunk {
	text := corpus.NormalizeText(note.Text)
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := cut(runes, start, cfg.MaxSize)
		chunks = append(chunks, newChunk(note, runes, start, end))
		if end >= len(runes) {
			break
		}

		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		// Never begin a chunk on a space.
		for next < len(runes) && runes[next] == ' ' {
			next++
		}
		start = next
	}

	return chunks
}

// cut returns the exclusive end offset for a chunk starting at start.
func cut(runes []rune, start, maxSize int) int {
	end := start + maxSize
	if end >= len(runes) {
		return len(runes)
	}

	// Prefer the last sentence boundary inside the window.
	for i := end - 1; i > start; i-- {
		if isSentenceEnd(runes[i]) && i+1 < len(runes) && runes[i+1] == ' ' {
			return i + 1
		}
	}

	// Fall back to the last word boundary.
	for i := end - 1; i > start; i-- {
		if runes[i] == ' ' {
			return i
		}
	}

	// No boundary in the window: hard cut at the size limit.
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func newChunk(note corpus.Note, runes []rune, start, end int) Chunk {
	text := string(runes[start:end])
	return Chunk{
		ID:        chunkID(note.ID, start, end, text),
		NoteID:    note.ID,
		Text:      text,
		Start:     start,
		End:       end,
		CreatedAt: note.CreatedAt,
	}
}

// chunkID derives a stable id from the chunk's note, position, and content.
func chunkID(noteID string, start, end int, text string) string {
	name := fmt.Sprintf("%s:%d:%d:%s", noteID, start, end, text)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// SplitAll chunks every note in order.
func SplitAll(notes []corpus.Note, cfg Config) []Chunk {
	var chunks []Chunk
	for _, n := range notes {
		chunks = append(chunks, Split(n, cfg)...)
	}
	return chunks
}
