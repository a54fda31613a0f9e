package service

import (
	"context"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/domain"
)

// SearchMode selects which engine answers a search request.
type SearchMode string

const (
	ModeKeyword  SearchMode = "keyword"
	ModeSemantic SearchMode = "semantic"
)

// SearchRequest is one routed search.
type SearchRequest struct {
	Mode      SearchMode
	SourceURL string
	Query     string
	Limit     int // semantic mode only
}

// SearchResponse carries the result of whichever engine ran. The two lists
// are never merged; exactly one of them is populated.
type SearchResponse struct {
	Functions []domain.FunctionRecord  `json:"functions,omitempty"`
	Similar   []domain.SimilarFunction `json:"similar,omitempty"`
}

// QueryRouter routes a search request to the keyword or the semantic engine
// based on the caller's declared intent.
type QueryRouter struct {
	keyword  *KeywordSearch
	semantic *SemanticSearch
}

// NewQueryRouter creates a router over the two engines.
func NewQueryRouter(keyword *KeywordSearch, semantic *SemanticSearch) *QueryRouter {
	return &QueryRouter{keyword: keyword, semantic: semantic}
}

// Route dispatches the request. Semantic mode surfaces
// port.ErrVectorUnavailable as a declared condition when the vector path was
// never initialized; every other mode goes to the keyword engine.
func (r *QueryRouter) Route(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Mode == ModeSemantic {
		similar, err := r.semantic.Search(ctx, req.Query, req.SourceURL, req.Limit)
		if err != nil {
			return nil, err
		}
		return &SearchResponse{Similar: similar}, nil
	}

	functions, err := r.keyword.SearchFunctions(ctx, req.SourceURL, req.Query)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Functions: functions}, nil
}
