package port

import (
	"context"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/domain"
)

// RecordStore is the contract over the structured store: repositories and
// function records.
type RecordStore interface {
	// UpsertRepository inserts or updates the row for (owner, source_url) and
	// returns the stored state. At most one live row exists per identity key.
	UpsertRepository(ctx context.Context, r *domain.Repository) (*domain.Repository, error)

	// GetRepositoryBySource returns the repository with the given source URL,
	// or ErrRepoNotFound.
	GetRepositoryBySource(ctx context.Context, sourceURL string) (*domain.Repository, error)

	// ListRepositoriesByOwner returns all repositories indexed for an owner,
	// newest first.
	ListRepositoriesByOwner(ctx context.Context, owner string) ([]domain.Repository, error)

	// SetFavorite updates the favorite flag for owner/name, or ErrRepoNotFound.
	SetFavorite(ctx context.Context, owner, name string, favorite bool) error

	// ReplaceFunctions deletes every function record for sourceURL and inserts
	// the new generation, atomically with respect to concurrent readers.
	ReplaceFunctions(ctx context.Context, sourceURL string, records []domain.FunctionRecord) error

	// ListFunctionsBySource returns all function records for sourceURL,
	// most-recently-indexed first with a stable id tiebreak.
	ListFunctionsBySource(ctx context.Context, sourceURL string) ([]domain.FunctionRecord, error)
}

// VectorIndex is the contract over the vector store.
type VectorIndex interface {
	// EnsureSchema creates the backing collection if it does not exist.
	// Calling it on an existing collection is a no-op.
	EnsureSchema(ctx context.Context) error

	// DeleteBySource removes every embedding whose source URL matches.
	DeleteBySource(ctx context.Context, sourceURL string) error

	// InsertBatch stores embeddings with their explicit vectors.
	InsertBatch(ctx context.Context, embeddings []domain.FunctionEmbedding) error

	// SearchNearest runs a nearest-neighbor query. sourceURL may be empty to
	// search across all repositories. Results carry the store's raw distance
	// and come back in the store's own order.
	SearchNearest(ctx context.Context, vector []float32, sourceURL string, limit int) ([]NearestHit, error)
}

// NearestHit is one nearest-neighbor result with its raw distance metadata.
type NearestHit struct {
	SourceURL    string
	FilePath     string
	FunctionName string
	Content      string
	Distance     float64
}
