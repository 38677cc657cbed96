package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Storage   StorageConfig
	Ollama    OllamaConfig
	LLM       LLMConfig
	Chunking  ChunkingConfig
	Retrieval RetrievalConfig
	Server    ServerConfig
	Log       LogConfig
}

type StorageConfig struct {
	DataDir string
	// PromptsDir optionally overrides the embedded prompt templates.
	PromptsDir string
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
}

type LLMConfig struct {
	OpenRouterAPIKey string
	Model            string
}

type ChunkingConfig struct {
	MaxSize int // maximum chunk length in runes
	Overlap int // trailing runes repeated from the previous chunk
}

type RetrievalConfig struct {
	TopK             int
	MaxContextTokens int
	// DedupeOverlap collapses overlapping chunks of the same note to the
	// highest-scoring one before composing context.
	DedupeOverlap bool
}

type ServerConfig struct {
	Port int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
		},
		LLM: LLMConfig{
			Model: "google/gemini-2.5-flash-lite",
		},
		Chunking: ChunkingConfig{
			MaxSize: 512,
			Overlap: 50,
		},
		Retrieval: RetrievalConfig{
			TopK:             10,
			MaxContextTokens: 4000,
		},
		Server: ServerConfig{
			Port: 4600,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend and environment
// variables. The file lives at $XDG_CONFIG_HOME/second-brain/config.json;
// environment variables (BRAIN_*) override file values. The OpenRouter API
// key is env-only (BRAIN_OPENROUTER_API_KEY) and is intentionally not
// required here: commands that never call the cloud LLM (ingest, index,
// recall) must work without it. Use RequireLLM for the ones that do.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.Chunking.MaxSize <= 0 {
		return fmt.Errorf("invalid config: chunking.max_size must be positive, got %d", c.Chunking.MaxSize)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("invalid config: chunking.overlap must not be negative, got %d", c.Chunking.Overlap)
	}
	if c.Chunking.Overlap >= c.Chunking.MaxSize {
		return fmt.Errorf("invalid config: chunking.overlap (%d) must be smaller than chunking.max_size (%d)",
			c.Chunking.Overlap, c.Chunking.MaxSize)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("invalid config: retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MaxContextTokens <= 0 {
		return fmt.Errorf("invalid config: retrieval.max_context_tokens must be positive, got %d", c.Retrieval.MaxContextTokens)
	}
	return nil
}

// RequireLLM returns an error when the OpenRouter API key is absent.
// Commands that send prompts to the cloud model call this at startup.
func (c Config) RequireLLM() error {
	if c.LLM.OpenRouterAPIKey == "" {
		return fmt.Errorf("missing required config: OpenRouter API key. " +
			"Set it via environment variable BRAIN_OPENROUTER_API_KEY")
	}
	return nil
}

// ChunksPath is the location of the chunked-corpus artifact.
func (c Config) ChunksPath() string {
	return filepath.Join(c.Storage.DataDir, "chunks.json")
}

// IndexPath is the location of the persisted vector index artifact.
func (c Config) IndexPath() string {
	return filepath.Join(c.Storage.DataDir, "index.db")
}

// AppDBPath is the location of the application state database.
func (c Config) AppDBPath() string {
	return filepath.Join(c.Storage.DataDir, "brain.db")
}

// ResponsesDir is where answered queries are archived as markdown.
func (c Config) ResponsesDir() string {
	return filepath.Join(c.Storage.DataDir, "responses")
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "second-brain-data"
		}
	}
	return filepath.Join(dir, "second-brain")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "second-brain", "config.json")
}
