package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amshadyc/second-brain/internal/ollama"
)

const (
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// EmbedClient is the slice of the Ollama client the embedder needs.
type EmbedClient interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Embedder wraps the embedding provider with bounded retries and batch
// support. Transient failures (rate limiting, 5xx, network errors) are
// retried with exponential backoff; anything else fails immediately.
type Embedder struct {
	client EmbedClient
	model  string
}

// NewEmbedder creates an Embedder using the given client and model name.
func NewEmbedder(client EmbedClient, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

// Provider identifies the embedding backend for index stamping.
func (e *Embedder) Provider() string { return "ollama" }

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := range maxRetries {
		vec, err := e.client.Embed(ctx, e.model, text)
		if err == nil {
			return vec, nil
		}
		if !isTransient(err) {
			return nil, fmt.Errorf("embedding text: %w", err)
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxRetries, lastErr)
}

// isTransient classifies provider failures. Status errors carry their own
// classification; everything else (connection refused, timeouts) is assumed
// transient, except caller-driven cancellation.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *ollama.StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	return true
}

// EmbedBatch returns embedding vectors for multiple texts, preserving input
// order. Work is spread over a bounded number of goroutines; the first error
// aborts the whole batch. Returns nil (not error) for empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the provider.

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
