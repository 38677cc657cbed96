package chunker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifact is the persisted chunked-corpus document. It records the chunking
// config it was produced with so a later index build can detect drift.
type Artifact struct {
	MaxSize   int       `json:"max_size"`
	Overlap   int       `json:"overlap"`
	NoteCount int       `json:"note_count"`
	CreatedAt time.Time `json:"created_at"`
	Chunks    []Chunk   `json:"chunks"`
}

// SaveArtifact writes the artifact as indented JSON via a temp file and
// rename, so readers never observe a partially written document.
func SaveArtifact(path string, a Artifact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling chunk artifact: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing chunk artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publishing chunk artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads a previously saved chunk artifact.
func LoadArtifact(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("reading chunk artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("parsing chunk artifact: %w", err)
	}
	return a, nil
}
