package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/domain"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
)

// KeywordSearch is the exact-match search engine over stored function
// records. It exposes no scores; ranking is most-recently-indexed first as
// delivered by the store.
type KeywordSearch struct {
	records port.RecordStore
}

// NewKeywordSearch creates a keyword search engine.
func NewKeywordSearch(records port.RecordStore) *KeywordSearch {
	return &KeywordSearch{records: records}
}

// SearchFunctions returns every function record of sourceURL matching the
// query. The query is lowercased and split on whitespace; a record matches
// when ANY term is a substring of its keyword text. A broader query yields
// more results, not fewer.
func (s *KeywordSearch) SearchFunctions(ctx context.Context, sourceURL, query string) ([]domain.FunctionRecord, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	records, err := s.records.ListFunctionsBySource(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("list function records: %w", err)
	}

	var matches []domain.FunctionRecord
	for _, r := range records {
		if matchesAny(r.Keywords, terms) {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

// SearchSummaries returns an owner's repositories whose name or summary
// matches any query term, using the same OR semantics.
func (s *KeywordSearch) SearchSummaries(ctx context.Context, owner, query string) ([]domain.Repository, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	repos, err := s.records.ListRepositoriesByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	var matches []domain.Repository
	for _, r := range repos {
		if matchesAny(strings.ToLower(r.Name+" "+r.Summary), terms) {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

func matchesAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
