// Package index owns the persisted vector index artifact: a single SQLite
// file holding the embedding vectors, a parallel chunk metadata table, and a
// manifest stamping the embedding provider, model, and dimension. The
// artifact is rebuilt wholesale and swapped atomically; it is never mutated
// in place.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE index_manifest (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	dimension INTEGER NOT NULL,
	chunk_count INTEGER NOT NULL,
	built_at TEXT NOT NULL
);
CREATE TABLE chunk_meta (
	position INTEGER PRIMARY KEY,
	chunk_id TEXT NOT NULL UNIQUE,
	note_id TEXT NOT NULL,
	text TEXT NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE chunk_vectors (
	position INTEGER PRIMARY KEY,
	chunk_id TEXT NOT NULL UNIQUE,
	embedding BLOB NOT NULL
);
`

// Manifest describes the provider configuration an index was built with.
// A loaded index must match the currently configured embedder exactly.
type Manifest struct {
	Provider   string
	Model      string
	Dimension  int
	ChunkCount int
	BuiltAt    time.Time
}

// Index is a read-only handle on a persisted index artifact.
type Index struct {
	db       *sql.DB
	manifest Manifest
}

// Open loads the index artifact at path and verifies its structural
// invariants: a manifest is present, the vector and metadata tables have
// equal counts matching the manifest, and positions align one-to-one.
// A missing or inconsistent artifact is an error; there is no degraded mode.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("index artifact not found at %s (run `brain index` first): %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging index: %w", err)
	}

	m, err := readManifest(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := verifyConsistency(db, m); err != nil {
		db.Close()
		return nil, err
	}

	return &Index{db: db, manifest: m}, nil
}

func readManifest(db *sql.DB) (Manifest, error) {
	var m Manifest
	var builtAt string
	err := db.QueryRow(`SELECT provider, model, dimension, chunk_count, built_at FROM index_manifest WHERE id = 1`).
		Scan(&m.Provider, &m.Model, &m.Dimension, &m.ChunkCount, &builtAt)
	if err == sql.ErrNoRows {
		return Manifest{}, fmt.Errorf("index artifact has no manifest row")
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("reading index manifest: %w", err)
	}
	t, err := time.Parse(time.RFC3339, builtAt)
	if err != nil {
		return Manifest{}, fmt.Errorf("parsing built_at: %w", err)
	}
	m.BuiltAt = t
	return m, nil
}

func verifyConsistency(db *sql.DB, m Manifest) error {
	var metaCount, vecCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chunk_meta`).Scan(&metaCount); err != nil {
		return fmt.Errorf("counting chunk metadata: %w", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM chunk_vectors`).Scan(&vecCount); err != nil {
		return fmt.Errorf("counting chunk vectors: %w", err)
	}
	if metaCount != vecCount {
		return fmt.Errorf("inconsistent index: %d metadata rows but %d vectors", metaCount, vecCount)
	}
	if metaCount != m.ChunkCount {
		return fmt.Errorf("inconsistent index: manifest says %d chunks, found %d", m.ChunkCount, metaCount)
	}

	var aligned int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM chunk_meta m
		JOIN chunk_vectors v ON m.position = v.position AND m.chunk_id = v.chunk_id`).Scan(&aligned)
	if err != nil {
		return fmt.Errorf("checking position alignment: %w", err)
	}
	if aligned != metaCount {
		return fmt.Errorf("inconsistent index: only %d of %d positions align between metadata and vectors", aligned, metaCount)
	}
	return nil
}

// Manifest returns the provider stamp the index was built with.
func (ix *Index) Manifest() Manifest {
	return ix.manifest
}

// Count returns the number of indexed chunks.
func (ix *Index) Count() int {
	return ix.manifest.ChunkCount
}

// DB exposes the underlying read handle for the retrieval engine.
func (ix *Index) DB() *sql.DB {
	return ix.db
}

// Close releases the artifact handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// ValidateEmbedder fails when the configured embedding provider does not
// match the one the index was built with. Serving a search across mismatched
// vector spaces would silently return meaningless results, so this is fatal.
func (ix *Index) ValidateEmbedder(provider, model string) error {
	m := ix.manifest
	if m.Provider != provider || m.Model != model {
		return fmt.Errorf("index was built with %s/%s but the configured embedder is %s/%s; rebuild the index",
			m.Provider, m.Model, provider, model)
	}
	return nil
}
