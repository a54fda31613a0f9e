package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/domain"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
)

// VectorIndex handles pgvector-specific operations for function embeddings.
// It implements port.VectorIndex on top of the same Postgres connection the
// record store uses.
type VectorIndex struct {
	store     *PostgresStore
	dimension int
}

// NewVectorIndex creates a vector index backed by the given Postgres store.
func NewVectorIndex(store *PostgresStore, dimension int) *VectorIndex {
	return &VectorIndex{store: store, dimension: dimension}
}

// EnsureSchema creates the pgvector extension and the embeddings table.
// Idempotent: calling it on an existing schema is a no-op.
func (v *VectorIndex) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS function_embeddings (
			id            SERIAL PRIMARY KEY,
			source_url    TEXT NOT NULL,
			file_path     TEXT NOT NULL,
			function_name TEXT NOT NULL,
			content       TEXT NOT NULL,
			vector        VECTOR(%d) NOT NULL
		)`, v.dimension),
		`CREATE INDEX IF NOT EXISTS idx_function_embeddings_source ON function_embeddings (source_url)`,
	}
	for _, q := range stmts {
		if _, err := v.store.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure vector schema: %w", err)
		}
	}
	return nil
}

// DeleteBySource removes every embedding for a repository.
func (v *VectorIndex) DeleteBySource(ctx context.Context, sourceURL string) error {
	_, err := v.store.db.ExecContext(ctx, `DELETE FROM function_embeddings WHERE source_url = $1`, sourceURL)
	if err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	return nil
}

// InsertBatch persists multiple embeddings efficiently.
func (v *VectorIndex) InsertBatch(ctx context.Context, embeddings []domain.FunctionEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO function_embeddings (source_url, file_path, function_name, content, vector)
		 VALUES ($1, $2, $3, $4, $5::vector)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range embeddings {
		if _, err := stmt.ExecContext(ctx,
			e.SourceURL, e.FilePath, e.FunctionName, e.Content, vectorToString(e.Vector),
		); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
	}

	return tx.Commit()
}

// SearchNearest performs a cosine-distance nearest-neighbor query, optionally
// filtered to one repository's source URL. Results come back in the store's
// distance order with the raw distance attached.
func (v *VectorIndex) SearchNearest(ctx context.Context, vector []float32, sourceURL string, limit int) ([]port.NearestHit, error) {
	vectorStr := vectorToString(vector)
	args := []interface{}{vectorStr}
	query := `SELECT source_url, file_path, function_name, content, (vector <=> $1::vector) AS distance
	          FROM function_embeddings`

	if sourceURL != "" {
		query += ` WHERE source_url = $2`
		args = append(args, sourceURL)
	}
	query += fmt.Sprintf(` ORDER BY vector <=> $1::vector LIMIT %d`, limit)

	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search nearest: %w", err)
	}
	defer rows.Close()

	var hits []port.NearestHit
	for rows.Next() {
		var h port.NearestHit
		if err := rows.Scan(&h.SourceURL, &h.FilePath, &h.FunctionName, &h.Content, &h.Distance); err != nil {
			return nil, fmt.Errorf("scan nearest hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
