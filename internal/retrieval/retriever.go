package retrieval

import (
	"context"
	"fmt"
)

// Retriever combines query embedding and vector search. It is the single
// entry point the session, HTTP, and MCP surfaces use for semantic recall.
type Retriever struct {
	embedder *Embedder
	engine   *Engine
}

// NewRetriever wires an Embedder to an Engine. The index's provider stamp
// must match the configured embedder; searching across mismatched vector
// spaces is refused outright.
func NewRetriever(embedder *Embedder, engine *Engine) (*Retriever, error) {
	if err := engine.Index().ValidateEmbedder(embedder.Provider(), embedder.Model()); err != nil {
		return nil, fmt.Errorf("validating index against embedder: %w", err)
	}
	return &Retriever{embedder: embedder, engine: engine}, nil
}

// Retrieve embeds the query and returns the top-k most similar chunks.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Result, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.engine.Search(ctx, vec, topK)
}
