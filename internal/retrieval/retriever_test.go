package retrieval

import (
	"context"
	"testing"

	"github.com/amshadyc/second-brain/internal/chunker"
)

// queryClient serves query embeddings from the same text→vector table the
// index was built from.
type queryClient struct {
	vectors map[string][]float32
}

func (c *queryClient) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if v, ok := c.vectors[text]; ok {
		return v, nil
	}
	return []float32{0.6, 0.4}, nil
}

func TestRetrieve(t *testing.T) {
	vectors := map[string][]float32{
		"morning runs feel great":  {1, 0},
		"sourdough starter notes":  {0, 1},
		"tempo run pacing ideas":   {0.9, 0.1},
		"how was my running year?": {0.95, 0.05},
	}
	chunks := []chunker.Chunk{
		chunkFixture("c1", "note-0000", "morning runs feel great", 0, 23),
		chunkFixture("c2", "note-0001", "sourdough starter notes", 0, 23),
		chunkFixture("c3", "note-0002", "tempo run pacing ideas", 0, 22),
	}
	ix := buildTestIndex(t, chunks, vectors)

	embedder := NewEmbedder(&queryClient{vectors: vectors}, "nomic-embed-text")
	r, err := NewRetriever(embedder, NewEngine(ix, false))
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	results, err := r.Retrieve(context.Background(), "how was my running year?", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ChunkID != "c1" || results[1].ChunkID != "c3" {
		t.Errorf("got %s, %s; want the two running chunks c1, c3",
			results[0].ChunkID, results[1].ChunkID)
	}
	if results[0].Text != "morning runs feel great" {
		t.Errorf("result text = %q", results[0].Text)
	}
}

func TestNewRetriever_RejectsMismatchedModel(t *testing.T) {
	chunks := []chunker.Chunk{chunkFixture("c1", "n0", "one", 0, 3)}
	ix := buildTestIndex(t, chunks, map[string][]float32{"one": {1, 0}})

	// Index stamped with nomic-embed-text; configured embedder disagrees.
	embedder := NewEmbedder(&queryClient{}, "all-minilm")
	if _, err := NewRetriever(embedder, NewEngine(ix, false)); err == nil {
		t.Fatal("expected mismatched embedder model to be rejected")
	}
}
