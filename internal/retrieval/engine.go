package retrieval

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/amshadyc/second-brain/internal/index"
)

// Result is a retrieved chunk with its similarity score. Results are ordered
// by descending score, ties broken by ascending chunk id.
type Result struct {
	ChunkID   string  `json:"chunk_id"`
	NoteID    string  `json:"note_id"`
	Text      string  `json:"text"`
	Start     int     `json:"start_offset"`
	End       int     `json:"end_offset"`
	CreatedAt int64   `json:"created_at,omitempty"`
	Score     float32 `json:"score"`
}

// Engine performs exact top-k cosine similarity search over a loaded index.
// The scan is brute force over all vectors; at the corpus sizes this system
// targets (tens of thousands of chunks) that is well within budget.
type Engine struct {
	ix            *index.Index
	dedupeOverlap bool
}

// NewEngine creates an Engine over the given index handle. When
// dedupeOverlap is set, overlapping chunks of the same note are collapsed to
// the highest-scoring one.
func NewEngine(ix *index.Index, dedupeOverlap bool) *Engine {
	return &Engine{ix: ix, dedupeOverlap: dedupeOverlap}
}

// Index returns the underlying index handle.
func (e *Engine) Index() *index.Index {
	return e.ix
}

// Search returns the top-k most similar chunks for the query vector. An
// empty index yields an empty result, and k larger than the index size
// returns everything; neither is an error. A query dimension that does not
// match the index's stamped dimension is a configuration error.
func (e *Engine) Search(ctx context.Context, queryVec []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("top-k must be positive, got %d", k)
	}
	if e.ix.Count() == 0 {
		return nil, nil
	}
	if dim := e.ix.Manifest().Dimension; len(queryVec) != dim {
		return nil, fmt.Errorf("query vector has %d dims but index was built with %d; rebuild the index or fix the embedder config",
			len(queryVec), dim)
	}

	queryNorm := norm(queryVec)
	if queryNorm == 0 {
		return nil, nil
	}

	// Phase 1: scan only id + embedding to find the top-k candidates.
	rows, err := e.ix.DB().QueryContext(ctx, `SELECT chunk_id, embedding FROM chunk_vectors`)
	if err != nil {
		return nil, fmt.Errorf("scanning vectors: %w", err)
	}
	defer rows.Close()

	h := &candidateHeap{}
	heap.Init(h)

	// Reusable buffer to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}

		buf, err = index.DecodeVectorInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		c := candidate{id: id, score: cosine(queryVec, buf, queryNorm)}
		if h.Len() < k {
			heap.Push(h, c)
		} else if worse((*h)[0], c) {
			(*h)[0] = c
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch metadata only for the winners.
	scores := make(map[string]float32, h.Len())
	ids := make([]string, 0, h.Len())
	for h.Len() > 0 {
		c := heap.Pop(h).(candidate)
		scores[c.id] = c.score
		ids = append(ids, c.id)
	}

	results, err := e.fetchMeta(ctx, ids, scores)
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if e.dedupeOverlap {
		results = collapseOverlaps(results)
	}

	return results, nil
}

func (e *Engine) fetchMeta(ctx context.Context, ids []string, scores map[string]float32) ([]Result, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT chunk_id, note_id, text, start_offset, end_offset, created_at
		FROM chunk_meta WHERE chunk_id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`

	rows, err := e.ix.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching chunk metadata: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ChunkID, &r.NoteID, &r.Text, &r.Start, &r.End, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning metadata row: %w", err)
		}
		r.Score = scores[r.ChunkID]
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating metadata: %w", err)
	}
	if len(results) != len(ids) {
		return nil, fmt.Errorf("inconsistent index: %d of %d winning chunks missing from metadata", len(ids)-len(results), len(ids))
	}
	return results, nil
}

// collapseOverlaps drops results whose note-text range overlaps a
// higher-scoring result from the same note. Input must already be sorted.
func collapseOverlaps(results []Result) []Result {
	kept := results[:0]
	for _, r := range results {
		redundant := false
		for _, k := range kept {
			if k.NoteID == r.NoteID && k.Start < r.End && r.Start < k.End {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, r)
		}
	}
	return kept
}

type candidate struct {
	id    string
	score float32
}

// worse reports whether a ranks below b: lower score, or on equal scores the
// larger chunk id (ascending id wins ties).
func worse(a, b candidate) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.id > b.id
}

// candidateHeap is a min-heap by rank, so the root is always the candidate
// to evict next.
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * |b|). aNorm is precomputed.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}
