// Package api exposes the retrieval and question-answering pipeline over
// HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/amshadyc/second-brain/internal/composer"
	"github.com/amshadyc/second-brain/internal/retrieval"
	"github.com/amshadyc/second-brain/internal/storage"
)

const maxQueryBodySize = 1 << 20 // 1MB

// Retriever abstracts semantic search for the API layer.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Result, error)
}

// Generator abstracts the answer-producing model call.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// AppDeps holds dependencies for the HTTP surface.
type AppDeps struct {
	Retriever  Retriever
	Composer   *composer.Composer
	LLM        Generator      // optional; /query returns 503 when nil
	Store      *storage.Store // optional; history endpoints return 503 when nil
	TopK       int
	ChunkCount int
	EmbedModel string
}

// NewAppHandler builds the HTTP router.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	r.Get("/recall", handleRecall(deps))
	r.Post("/query", handleQuery(deps))
	r.Get("/turns", handleListTurns(deps))
	r.Get("/turns/{id}", handleGetTurn(deps))

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"chunks":      deps.ChunkCount,
			"embed_model": deps.EmbedModel,
		})
	}
}

func handleRecall(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}

		limit := deps.TopK
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			if n > 50 {
				n = 50
			}
			limit = n
		}

		results, err := deps.Retriever.Retrieve(r.Context(), query, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "recall failed: %v", err)
			return
		}
		if results == nil {
			results = []retrieval.Result{}
		}
		writeJSON(w, http.StatusOK, results)
	}
}

// QueryRequest is the body for POST /query.
type QueryRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

// QueryResponse is the full pipeline output for one query.
type QueryResponse struct {
	ID     string             `json:"id"`
	Mode   string             `json:"mode"`
	Answer string             `json:"answer"`
	Chunks []retrieval.Result `json:"chunks"`
}

func handleQuery(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.LLM == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "no language model configured")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxQueryBodySize)
		defer r.Body.Close()

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}
		if req.Mode == "" {
			req.Mode = string(composer.ModeAnalysis)
		}
		mode, err := composer.ParseMode(req.Mode)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		results, err := deps.Retriever.Retrieve(r.Context(), req.Query, deps.TopK)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "retrieval failed: %v", err)
			return
		}

		prompt, err := deps.Composer.Compose(mode, req.Query, results)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "composing prompt failed: %v", err)
			return
		}

		answer, err := deps.LLM.Generate(r.Context(), prompt)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "generation failed: %v", err)
			return
		}

		id := uuid.NewString()
		if deps.Store != nil {
			ids := make([]string, len(results))
			for i, res := range results {
				ids[i] = res.ChunkID
			}
			chunkIDs, _ := json.Marshal(ids)
			turn := storage.Turn{
				ID:        id,
				CreatedAt: time.Now(),
				Query:     req.Query,
				Mode:      string(mode),
				Prompt:    prompt,
				Model:     deps.LLM.Model(),
				Answer:    answer,
				Status:    "completed",
				ChunkIDs:  string(chunkIDs),
			}
			// Persisting history is best effort for the API path.
			if err := deps.Store.SaveTurn(turn); err != nil {
				slog.Warn("failed to record turn", "turn_id", id, "error", err)
			}
		}

		if results == nil {
			results = []retrieval.Result{}
		}
		writeJSON(w, http.StatusOK, QueryResponse{
			ID:     id,
			Mode:   string(mode),
			Answer: answer,
			Chunks: results,
		})
	}
}

// TurnSummary is the list form of a stored turn; prompts and answers are
// omitted to keep listings small.
type TurnSummary struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Query     string `json:"query"`
	Mode      string `json:"mode"`
	Status    string `json:"status"`
}

func handleListTurns(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "history storage not configured")
			return
		}

		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			if n > 100 {
				n = 100
			}
			limit = n
		}

		turns, err := deps.Store.RecentTurns(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing turns: %v", err)
			return
		}

		summaries := make([]TurnSummary, len(turns))
		for i, t := range turns {
			summaries[i] = TurnSummary{
				ID:        t.ID,
				CreatedAt: t.CreatedAt.Format(time.RFC3339),
				Query:     t.Query,
				Mode:      t.Mode,
				Status:    t.Status,
			}
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

func handleGetTurn(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "history storage not configured")
			return
		}

		id := chi.URLParam(r, "id")
		turn, err := deps.Store.GetTurn(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "no turn with id %s", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading turn: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"id":         turn.ID,
			"created_at": turn.CreatedAt.Format(time.RFC3339),
			"query":      turn.Query,
			"mode":       turn.Mode,
			"model":      turn.Model,
			"answer":     turn.Answer,
			"status":     turn.Status,
			"chunk_ids":  json.RawMessage(turn.ChunkIDs),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
