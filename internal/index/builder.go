package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/amshadyc/second-brain/internal/chunker"
)

// Embedder produces embedding vectors for chunk texts. Implementations must
// fail the whole batch if any single text cannot be embedded: an index is an
// all-or-nothing artifact for a given corpus snapshot.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Provider() string
	Model() string
}

// Builder turns a chunk set into a persisted index artifact.
type Builder struct {
	embedder Embedder
	logger   *slog.Logger
}

// NewBuilder creates a Builder using the given embedding provider.
func NewBuilder(e Embedder) *Builder {
	return &Builder{embedder: e, logger: slog.Default()}
}

// Build embeds every chunk and writes the index artifact to path. The new
// artifact is assembled in a temp file and renamed over the old one only
// once fully written, so a crash mid-build never destroys a good index.
// Stored order is ascending chunk-id order regardless of input order.
func (b *Builder) Build(ctx context.Context, chunks []chunker.Chunk, path string) (Manifest, error) {
	ordered := make([]chunker.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for i := 1; i < len(ordered); i++ {
		if ordered[i].ID == ordered[i-1].ID {
			return Manifest{}, fmt.Errorf("duplicate chunk id %s in input", ordered[i].ID)
		}
	}

	texts := make([]string, len(ordered))
	for i, c := range ordered {
		texts[i] = c.Text
	}

	b.logger.Info("embedding chunks", "count", len(texts), "model", b.embedder.Model())
	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return Manifest{}, fmt.Errorf("embedding chunks: %w", err)
	}

	dimension := 0
	if len(vectors) > 0 {
		dimension = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return Manifest{}, fmt.Errorf("embedding dimension drift: chunk %s has %d dims, expected %d",
				ordered[i].ID, len(v), dimension)
		}
	}

	m := Manifest{
		Provider:   b.embedder.Provider(),
		Model:      b.embedder.Model(),
		Dimension:  dimension,
		ChunkCount: len(ordered),
		BuiltAt:    time.Now().UTC(),
	}

	tmp := path + ".tmp"
	os.Remove(tmp) // stale temp from a crashed build

	if err := writeArtifact(tmp, m, ordered, vectors); err != nil {
		os.Remove(tmp)
		return Manifest{}, err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return Manifest{}, fmt.Errorf("publishing index: %w", err)
	}

	b.logger.Info("index built", "chunks", m.ChunkCount, "dimension", m.Dimension, "path", path)
	return m, nil
}

func writeArtifact(path string, m Manifest, chunks []chunker.Chunk, vectors [][]float32) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating index schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning index transaction: %w", err)
	}

	metaStmt, err := tx.Prepare(`
		INSERT INTO chunk_meta (position, chunk_id, note_id, text, start_offset, end_offset, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing metadata insert: %w", err)
	}
	defer metaStmt.Close()

	vecStmt, err := tx.Prepare(`
		INSERT INTO chunk_vectors (position, chunk_id, embedding) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing vector insert: %w", err)
	}
	defer vecStmt.Close()

	for i, c := range chunks {
		if _, err := metaStmt.Exec(i, c.ID, c.NoteID, c.Text, c.Start, c.End, c.CreatedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting metadata for chunk %s: %w", c.ID, err)
		}
		if _, err := vecStmt.Exec(i, c.ID, EncodeVector(vectors[i])); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting vector for chunk %s: %w", c.ID, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO index_manifest (id, provider, model, dimension, chunk_count, built_at)
		VALUES (1, ?, ?, ?, ?, ?)`,
		m.Provider, m.Model, m.Dimension, m.ChunkCount, m.BuiltAt.Format(time.RFC3339)); err != nil {
		tx.Rollback()
		return fmt.Errorf("writing manifest: %w", err)
	}

	return tx.Commit()
}
