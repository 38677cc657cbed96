// Package session drives the interactive query loop as an explicit state
// machine: the current mode crossed with a running flag, mutated only by
// user input events.
package session

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amshadyc/second-brain/internal/composer"
	"github.com/amshadyc/second-brain/internal/retrieval"
	"github.com/amshadyc/second-brain/internal/storage"
)

// Queryer retrieves ranked chunks for a query.
type Queryer interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Result, error)
}

// Generator produces an answer from a composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// TurnRecorder persists completed exchanges. Recording is best effort; a
// failed write never interrupts the session.
type TurnRecorder interface {
	SaveTurn(t storage.Turn) error
}

// State is the session's full mutable state: current mode and whether the
// loop should keep running.
type State struct {
	Mode    composer.Mode
	Running bool
}

// Options configures a Session.
type Options struct {
	Retriever    Queryer
	Composer     *composer.Composer
	LLM          Generator
	Recorder     TurnRecorder // optional
	ResponsesDir string       // optional; disables archiving when empty
	TopK         int
	Out          io.Writer
	Logger       *slog.Logger
}

// Session is the interactive read-eval loop. Input handling is exposed as
// HandleInput so transitions are testable without driving a real loop.
type Session struct {
	retriever    Queryer
	composer     *composer.Composer
	llm          Generator
	recorder     TurnRecorder
	responsesDir string
	topK         int
	out          io.Writer
	logger       *slog.Logger
	state        State
}

// New creates a Session starting in analysis mode.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Session{
		retriever:    opts.Retriever,
		composer:     opts.Composer,
		llm:          opts.LLM,
		recorder:     opts.Recorder,
		responsesDir: opts.ResponsesDir,
		topK:         opts.TopK,
		out:          out,
		logger:       logger,
		state:        State{Mode: composer.ModeAnalysis, Running: true},
	}
}

// State returns the current session state.
func (s *Session) State() State {
	return s.state
}

// HandleInput processes one line of input and transitions the state machine.
// Query failures are reported to the user and returned, but they never stop
// the session; the caller may keep feeding input.
func (s *Session) HandleInput(ctx context.Context, raw string) error {
	input := strings.TrimSpace(raw)
	if input == "" {
		return nil
	}

	switch strings.ToLower(input) {
	case "quit", "exit", "q":
		s.state.Running = false
		fmt.Fprintln(s.out, "Goodbye!")
		return nil
	}

	if name, ok := strings.CutPrefix(input, "mode:"); ok {
		mode, err := composer.ParseMode(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			fmt.Fprintln(s.out, "Invalid mode. Use: analysis, summary, or patterns")
			return nil
		}
		s.state.Mode = mode
		fmt.Fprintf(s.out, "Mode changed to: %s\n", mode)
		return nil
	}

	if err := s.runQuery(ctx, input); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return err
	}
	return nil
}

// runQuery executes the full pipeline for one query under the current mode.
// The mode never changes as a side effect.
func (s *Session) runQuery(ctx context.Context, query string) error {
	results, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		return fmt.Errorf("retrieving context: %w", err)
	}
	s.logger.Debug("retrieved context", "query", query, "chunks", len(results))

	prompt, err := s.composer.Compose(s.state.Mode, query, results)
	if err != nil {
		return fmt.Errorf("composing prompt: %w", err)
	}

	answer, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		s.recordTurn(query, prompt, "", results, "failed")
		return fmt.Errorf("generating answer: %w", err)
	}

	fmt.Fprintln(s.out, answer)

	if s.responsesDir != "" {
		path, err := saveResponse(s.responsesDir, query, answer, time.Now())
		if err != nil {
			s.logger.Warn("saving response", "error", err)
		} else {
			fmt.Fprintf(s.out, "\nResponse saved to: %s\n", path)
		}
	}

	s.recordTurn(query, prompt, answer, results, "completed")
	return nil
}

func (s *Session) recordTurn(query, prompt, answer string, results []retrieval.Result, status string) {
	if s.recorder == nil {
		return
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}
	chunkIDs, _ := json.Marshal(ids)

	turn := storage.Turn{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Query:     query,
		Mode:      string(s.state.Mode),
		Prompt:    prompt,
		Model:     s.llm.Model(),
		Answer:    answer,
		Status:    status,
		ChunkIDs:  string(chunkIDs),
	}
	if err := s.recorder.SaveTurn(turn); err != nil {
		s.logger.Warn("recording turn", "error", err)
	}
}

// Run drives the read-eval loop until the user exits or input is exhausted.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	s.printBanner()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for s.state.Running {
		fmt.Fprintf(s.out, "[%s] Query: ", s.state.Mode)
		if !scanner.Scan() {
			break
		}
		// Query errors are already reported; keep the loop alive.
		s.HandleInput(ctx, scanner.Text())
	}
	return scanner.Err()
}

func (s *Session) printBanner() {
	fmt.Fprintln(s.out, strings.Repeat("=", 70))
	fmt.Fprintln(s.out, "Second Brain")
	fmt.Fprintln(s.out, strings.Repeat("=", 70))
	fmt.Fprintln(s.out, "\nModes:")
	fmt.Fprintln(s.out, "  - analysis: deep analysis with themes and insights")
	fmt.Fprintln(s.out, "  - summary:  condensed narrative summary")
	fmt.Fprintln(s.out, "  - patterns: repeated beliefs and thought loops")
	fmt.Fprintln(s.out, "\nCommands:")
	fmt.Fprintln(s.out, "  - type a query to search your notes")
	fmt.Fprintln(s.out, "  - mode:analysis | mode:summary | mode:patterns")
	fmt.Fprintln(s.out, "  - quit, exit or q to leave")
	fmt.Fprintln(s.out, strings.Repeat("=", 70))
	fmt.Fprintln(s.out)
}
