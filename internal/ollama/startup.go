package ollama

import (
	"context"
	"fmt"
	"io"
)

// EnsureReady checks that Ollama is running and the embedding model is
// available locally. Returns a non-nil error with a remediation hint when
// either check fails.
func EnsureReady(ctx context.Context, c *Client, embedModel string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("Ollama is not running. Start it with: ollama serve")
	}
	if !c.HasModel(ctx, embedModel) {
		return fmt.Errorf("embedding model %s is not available. Pull it with: ollama pull %s", embedModel, embedModel)
	}
	fmt.Fprintf(w, "model %s: ready\n", embedModel)
	return nil
}
