package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/amshadyc/second-brain/internal/api"
	"github.com/amshadyc/second-brain/internal/composer"
	"github.com/amshadyc/second-brain/internal/llm"
	"github.com/amshadyc/second-brain/internal/storage"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the note archive to agents over MCP (stdio transport)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

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

		// ask_notes is unavailable without a key; search_notes still works.
		var generator api.Generator
		if cfg.LLM.OpenRouterAPIKey != "" {
			generator = llm.NewClient(cfg.LLM.OpenRouterAPIKey, cfg.LLM.Model)
		}

		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Retriever: retriever,
			Composer:  comp,
			LLM:       generator,
			Store:     store,
			TopK:      cfg.Retrieval.TopK,
		})

		stdioSrv := server.NewStdioServer(mcpSrv)
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp stdio server: %w", err)
		}
		return nil
	},
}
