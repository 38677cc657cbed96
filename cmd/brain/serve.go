package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amshadyc/second-brain/internal/api"
	"github.com/amshadyc/second-brain/internal/composer"
	"github.com/amshadyc/second-brain/internal/llm"
	"github.com/amshadyc/second-brain/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the note archive over HTTP",
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

		// The LLM is optional here: recall and history work without a key,
		// and /query reports 503 until one is configured.
		var generator api.Generator
		if cfg.LLM.OpenRouterAPIKey != "" {
			generator = llm.NewClient(cfg.LLM.OpenRouterAPIKey, cfg.LLM.Model)
		} else {
			printWarning("No OpenRouter API key configured; POST /query is disabled")
		}

		handler := api.NewAppHandler(api.AppDeps{
			Retriever:  retriever,
			Composer:   comp,
			LLM:        generator,
			Store:      store,
			TopK:       cfg.Retrieval.TopK,
			ChunkCount: ix.Count(),
			EmbedModel: ix.Manifest().Model,
		})

		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: handler,
			BaseContext: func(_ net.Listener) context.Context {
				return ctx
			},
		}

		errCh := make(chan error, 1)
		go func() {
			fmt.Fprintf(os.Stdout, "brain listening on %s\n", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stdout, "shutting down...")
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
