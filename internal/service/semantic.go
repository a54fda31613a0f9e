package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/domain"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
)

// defaultSemanticLimit bounds results when the caller passes none.
const defaultSemanticLimit = 10

// SemanticSearch is the similarity search engine over the vector index.
type SemanticSearch struct {
	ai    port.AIProvider
	index port.VectorIndex
}

// NewSemanticSearch creates a semantic search engine. Either argument may be
// nil when the vector path was never initialized; the engine then reports
// port.ErrVectorUnavailable instead of failing internally.
func NewSemanticSearch(ai port.AIProvider, index port.VectorIndex) *SemanticSearch {
	return &SemanticSearch{ai: ai, index: index}
}

// Available reports whether the vector path is usable.
func (s *SemanticSearch) Available() bool {
	return s.ai != nil && s.index != nil
}

// Search embeds the query with the same embedding function used at index
// time and returns the nearest stored functions. sourceURL may be empty to
// search across all repositories. Similarity is 1 - distance, assuming the
// store's metric is normalized to [0, 1]; the store's result order is kept.
func (s *SemanticSearch) Search(ctx context.Context, query, sourceURL string, limit int) ([]domain.SimilarFunction, error) {
	if !s.Available() {
		return nil, port.ErrVectorUnavailable
	}
	if limit <= 0 {
		limit = defaultSemanticLimit
	}

	vector, err := s.ai.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.index.SearchNearest(ctx, vector, sourceURL, limit)
	if err != nil {
		return nil, fmt.Errorf("search nearest: %w", err)
	}

	slog.Debug("semantic search", "query", query, "source_url", sourceURL, "hits", len(hits))

	results := make([]domain.SimilarFunction, len(hits))
	for i, h := range hits {
		results[i] = domain.SimilarFunction{
			SourceURL:    h.SourceURL,
			FilePath:     h.FilePath,
			FunctionName: h.FunctionName,
			Content:      h.Content,
			Similarity:   1 - h.Distance,
		}
	}
	return results, nil
}
