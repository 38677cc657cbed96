package config

import (
	"strings"
	"testing"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	data map[string]any
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]any)}
}

func (b *memBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *memBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *memBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *memBackend) Delete(key string) error          { delete(b.data, key); return nil }

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Chunking.MaxSize != 512 {
		t.Errorf("Chunking.MaxSize = %d, want 512", cfg.Chunking.MaxSize)
	}
	if cfg.Chunking.Overlap != 50 {
		t.Errorf("Chunking.Overlap = %d, want 50", cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("Retrieval.TopK = %d, want 10", cfg.Retrieval.TopK)
	}
	if cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("Ollama.EmbedModel = %q, want nomic-embed-text", cfg.Ollama.EmbedModel)
	}
	if cfg.Retrieval.DedupeOverlap {
		t.Error("Retrieval.DedupeOverlap should default to false")
	}
}

func TestLoad_BackendOverridesDefaults(t *testing.T) {
	b := newMemBackend()
	b.data["chunking.max_size"] = 256
	b.data["ollama.embed_model"] = "all-minilm"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Chunking.MaxSize != 256 {
		t.Errorf("Chunking.MaxSize = %d, want 256", cfg.Chunking.MaxSize)
	}
	if cfg.Ollama.EmbedModel != "all-minilm" {
		t.Errorf("Ollama.EmbedModel = %q, want all-minilm", cfg.Ollama.EmbedModel)
	}
}

func TestLoad_EnvOverridesBackend(t *testing.T) {
	b := newMemBackend()
	b.data["retrieval.top_k"] = 3
	t.Setenv("BRAIN_RETRIEVAL_TOP_K", "7")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Retrieval.TopK != 7 {
		t.Errorf("Retrieval.TopK = %d, want 7 (env should win)", cfg.Retrieval.TopK)
	}
}

func TestLoad_RejectsOverlapNotSmallerThanSize(t *testing.T) {
	b := newMemBackend()
	b.data["chunking.max_size"] = 50
	b.data["chunking.overlap"] = 50

	_, err := loadWith(b)
	if err == nil {
		t.Fatal("expected error for overlap >= max_size, got nil")
	}
	if !strings.Contains(err.Error(), "overlap") {
		t.Errorf("error should mention overlap: %v", err)
	}
}

func TestLoad_RejectsNonPositiveTopK(t *testing.T) {
	b := newMemBackend()
	b.data["retrieval.top_k"] = 0

	if _, err := loadWith(b); err == nil {
		t.Fatal("expected error for top_k = 0, got nil")
	}
}

func TestRequireLLM(t *testing.T) {
	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if err := cfg.RequireLLM(); err == nil {
		t.Fatal("expected error with no API key")
	}

	cfg.LLM.OpenRouterAPIKey = "sk-or-test"
	if err := cfg.RequireLLM(); err != nil {
		t.Errorf("unexpected error with API key set: %v", err)
	}
}

func TestSetKey_RejectsSecret(t *testing.T) {
	b := newMemBackend()
	err := setKeyWith(b, "llm.openrouter_api_key", "sk-or-leak")
	if err == nil {
		t.Fatal("expected error setting secret key")
	}
	if !strings.Contains(err.Error(), "BRAIN_OPENROUTER_API_KEY") {
		t.Errorf("error should point at the env var: %v", err)
	}
}

func TestSetKey_UnknownKey(t *testing.T) {
	if err := setKeyWith(newMemBackend(), "no.such.key", "1"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestShowAll_ExcludesSecrets(t *testing.T) {
	cfg, err := loadWith(newMemBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	for _, k := range ShowAll(cfg) {
		if k.Key == "llm.openrouter_api_key" {
			t.Error("ShowAll must not include the API key")
		}
	}
}
