package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/domain"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
)

const chatSystemPrompt = `You are a repository analysis assistant. Answer questions about the indexed repository using the provided summaries and function descriptions. Be precise, reference specific files and functions, and say so when the context does not cover the question.`

// ChatService answers free-form questions about an indexed repository,
// grounding the chat model on search results as context.
type ChatService struct {
	ai       port.AIProvider
	records  port.RecordStore
	semantic *SemanticSearch
	keyword  *KeywordSearch
}

// NewChatService creates a chat service.
func NewChatService(ai port.AIProvider, records port.RecordStore, semantic *SemanticSearch, keyword *KeywordSearch) *ChatService {
	return &ChatService{ai: ai, records: records, semantic: semantic, keyword: keyword}
}

// QueryRepository answers a question about the repository at sourceURL.
// Context chunks come from semantic search when the vector path is up, from
// keyword matches otherwise. Returns port.ErrRepoNotFound when the URL has
// no ingested generation.
func (s *ChatService) QueryRepository(ctx context.Context, sourceURL, question string) (string, []domain.SimilarFunction, error) {
	repo, err := s.records.GetRepositoryBySource(ctx, sourceURL)
	if err != nil {
		return "", nil, err
	}

	chunks := []string{fmt.Sprintf("Repository %s/%s: %s", repo.Owner, repo.Name, repo.Summary)}

	sources, err := s.semantic.Search(ctx, question, sourceURL, defaultSemanticLimit)
	switch {
	case err == nil:
		for _, hit := range sources {
			chunks = append(chunks, fmt.Sprintf("// %s - %s (similarity: %.2f)\n%s",
				hit.FilePath, hit.FunctionName, hit.Similarity, hit.Content))
		}
	case errors.Is(err, port.ErrVectorUnavailable):
		slog.Info("vector path unavailable, using keyword context", "source_url", sourceURL)
		matches, kerr := s.keyword.SearchFunctions(ctx, sourceURL, question)
		if kerr != nil {
			return "", nil, kerr
		}
		if len(matches) > defaultSemanticLimit {
			matches = matches[:defaultSemanticLimit]
		}
		// Keyword matches become sources too; they carry no similarity score.
		for _, m := range matches {
			chunks = append(chunks, fmt.Sprintf("// %s - %s\n%s", m.FilePath, m.FunctionName, m.Summary))
			sources = append(sources, domain.SimilarFunction{
				SourceURL:    m.SourceURL,
				FilePath:     m.FilePath,
				FunctionName: m.FunctionName,
				Content:      m.Summary,
			})
		}
	default:
		return "", nil, err
	}

	answer, err := s.ai.Chat(ctx, chatSystemPrompt, question, chunks)
	if err != nil {
		return "", nil, fmt.Errorf("chat: %w", err)
	}
	return answer, sources, nil
}
