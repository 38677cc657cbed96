package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amshadyc/second-brain/internal/chunker"
	"github.com/amshadyc/second-brain/internal/composer"
	"github.com/amshadyc/second-brain/internal/config"
	"github.com/amshadyc/second-brain/internal/corpus"
	"github.com/amshadyc/second-brain/internal/index"
	"github.com/amshadyc/second-brain/internal/llm"
	"github.com/amshadyc/second-brain/internal/ollama"
	"github.com/amshadyc/second-brain/internal/retrieval"
	"github.com/amshadyc/second-brain/internal/session"
	"github.com/amshadyc/second-brain/internal/storage"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk a note export into the retrieval corpus",
	Long: `Chunk a note export into the retrieval corpus.

Examples:
  brain ingest --csv ./notes.csv
  brain ingest --keep-dir ./Takeout/Keep`,
	RunE: func(cmd *cobra.Command, args []string) error {
		csvPath, _ := cmd.Flags().GetString("csv")
		keepDir, _ := cmd.Flags().GetString("keep-dir")

		if (csvPath == "") == (keepDir == "") {
			return fmt.Errorf("exactly one of --csv or --keep-dir is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var notes []corpus.Note
		switch {
		case csvPath != "":
			printStep("Loading notes from %s", csvPath)
			notes, err = corpus.LoadCSVFile(csvPath)
		default:
			printStep("Loading Google Keep notes from %s", keepDir)
			notes, err = corpus.LoadKeepDir(keepDir)
		}
		if err != nil {
			return fmt.Errorf("loading notes: %w", err)
		}
		if len(notes) == 0 {
			return fmt.Errorf("no usable notes found")
		}

		chunkCfg := chunker.Config{MaxSize: cfg.Chunking.MaxSize, Overlap: cfg.Chunking.Overlap}
		chunks := chunker.SplitAll(notes, chunkCfg)

		artifact := chunker.Artifact{
			MaxSize:   chunkCfg.MaxSize,
			Overlap:   chunkCfg.Overlap,
			NoteCount: len(notes),
			CreatedAt: time.Now().UTC(),
			Chunks:    chunks,
		}
		if err := chunker.SaveArtifact(cfg.ChunksPath(), artifact); err != nil {
			return err
		}

		printSuccess("Chunked %d notes into %d chunks (%s)", len(notes), len(chunks), cfg.ChunksPath())
		printStep("Next: run `brain index` to build the vector index")
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("csv", "", "CSV note export (text, created_at, modified_at columns)")
	ingestCmd.Flags().String("keep-dir", "", "directory of Google Keep Takeout JSON files")
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the chunked corpus and build the vector index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		artifact, err := chunker.LoadArtifact(cfg.ChunksPath())
		if err != nil {
			return fmt.Errorf("%w (run `brain ingest` first)", err)
		}

		ollamaClient := ollama.New(cfg.Ollama.BaseURL)
		if err := ollama.EnsureReady(cmd.Context(), ollamaClient, cfg.Ollama.EmbedModel, os.Stderr); err != nil {
			return err
		}

		embedder := retrieval.NewEmbedder(ollamaClient, cfg.Ollama.EmbedModel)
		builder := index.NewBuilder(embedder)

		printStep("Embedding %d chunks with %s", len(artifact.Chunks), cfg.Ollama.EmbedModel)
		manifest, err := builder.Build(cmd.Context(), artifact.Chunks, cfg.IndexPath())
		if err != nil {
			return fmt.Errorf("building index: %w", err)
		}

		printSuccess("Indexed %d chunks (dimension %d) at %s", manifest.ChunkCount, manifest.Dimension, cfg.IndexPath())
		return nil
	},
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Query your notes interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.RequireLLM(); err != nil {
			return err
		}

		ollamaClient := ollama.New(cfg.Ollama.BaseURL)
		if err := ollama.EnsureReady(cmd.Context(), ollamaClient, cfg.Ollama.EmbedModel, os.Stderr); err != nil {
			return err
		}

		retriever, ix, err := openRetriever(cfg)
		if err != nil {
			return err
		}
		defer ix.Close()

		comp, err := composer.New(cfg.Retrieval.MaxContextTokens, cfg.Storage.PromptsDir)
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		sess := session.New(session.Options{
			Retriever:    retriever,
			Composer:     comp,
			LLM:          llm.NewClient(cfg.LLM.OpenRouterAPIKey, cfg.LLM.Model),
			Recorder:     store,
			ResponsesDir: cfg.ResponsesDir(),
			TopK:         cfg.Retrieval.TopK,
			Out:          os.Stdout,
		})
		return sess.Run(cmd.Context(), os.Stdin)
	},
}

// --- recall ---

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Semantic search over your notes without calling a language model",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		retriever, ix, err := openRetriever(cfg)
		if err != nil {
			return err
		}
		defer ix.Close()

		results, err := retriever.Retrieve(cmd.Context(), query, limit)
		if err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("\n%s [score: %.3f, note: %s]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), r.Score, r.NoteID)
			if t := corpus.TimeFromUsec(r.CreatedAt); !t.IsZero() {
				fmt.Printf("  Created: %s\n", t.Format("January 2006"))
			}
			text := r.Text
			if len(text) > 500 {
				text = text[:500] + "..."
			}
			fmt.Printf("  %s\n", text)
		}
		return nil
	},
}

func init() {
	recallCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past questions and answers",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		turns, err := store.RecentTurns(limit)
		if err != nil {
			return err
		}
		if len(turns) == 0 {
			fmt.Println("No turns found.")
			return nil
		}

		for _, t := range turns {
			query := t.Query
			if len(query) > 80 {
				query = query[:80] + "..."
			}
			fmt.Printf("%s  %s  [%s]  %s\n",
				colorize(colorCyan, t.ID[:8]),
				t.CreatedAt.Format("2006-01-02 15:04"),
				t.Mode,
				query,
			)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single turn",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		turn, err := store.GetTurn(args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"id":         turn.ID,
			"created_at": turn.CreatedAt.Format(time.RFC3339),
			"query":      turn.Query,
			"mode":       turn.Mode,
			"model":      turn.Model,
			"answer":     turn.Answer,
			"status":     turn.Status,
			"chunk_ids":  json.RawMessage(turn.ChunkIDs),
		})
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of turns to list")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// openRetriever opens the persisted index and wires it to the configured
// embedding provider. The index validates the provider stamp on open.
func openRetriever(cfg config.Config) (*retrieval.Retriever, *index.Index, error) {
	ix, err := index.Open(cfg.IndexPath())
	if err != nil {
		return nil, nil, err
	}

	embedder := retrieval.NewEmbedder(ollama.New(cfg.Ollama.BaseURL), cfg.Ollama.EmbedModel)
	engine := retrieval.NewEngine(ix, cfg.Retrieval.DedupeOverlap)

	retriever, err := retrieval.NewRetriever(embedder, engine)
	if err != nil {
		ix.Close()
		return nil, nil, err
	}
	return retriever, ix, nil
}
