package handler

import (
	"errors"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/service"
	"github.com/gofiber/fiber/v3"
)

// SearchHandler handles the two search modes and repository Q&A.
type SearchHandler struct {
	router *service.QueryRouter
	chat   *service.ChatService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(router *service.QueryRouter, chat *service.ChatService) *SearchHandler {
	return &SearchHandler{router: router, chat: chat}
}

// Register sets up the search routes.
func (h *SearchHandler) Register(api fiber.Router) {
	api.Post("/search-functions", h.SearchFunctions)
	api.Post("/semantic-search", h.SemanticSearch)
	api.Post("/query-repository", h.QueryRepository)
}

// SearchFunctions runs keyword search over a repository's function records.
func (h *SearchHandler) SearchFunctions(c fiber.Ctx) error {
	var body struct {
		RepoURL string `json:"repo_url"`
		Query   string `json:"query"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.RepoURL == "" || body.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Repository URL and query are required"})
	}

	resp, err := h.router.Route(c.Context(), service.SearchRequest{
		Mode:      service.ModeKeyword,
		SourceURL: body.RepoURL,
		Query:     body.Query,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	results := make([]fiber.Map, len(resp.Functions))
	for i, r := range resp.Functions {
		results[i] = fiber.Map{
			"function_name":    r.FunctionName,
			"file_path":        r.FilePath,
			"function_summary": r.Summary,
			"function_code":    r.Code,
		}
	}

	return c.JSON(fiber.Map{
		"results":  results,
		"count":    len(results),
		"repo_url": body.RepoURL,
		"query":    body.Query,
	})
}

// SemanticSearch runs similarity search; the repository filter is optional.
// When the vector path was never initialized it answers 503 with a declared
// condition rather than a generic failure.
func (h *SearchHandler) SemanticSearch(c fiber.Ctx) error {
	var body struct {
		Query   string `json:"query"`
		RepoURL string `json:"repo_url"`
		Limit   int    `json:"limit"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Query is required"})
	}

	resp, err := h.router.Route(c.Context(), service.SearchRequest{
		Mode:      service.ModeSemantic,
		SourceURL: body.RepoURL,
		Query:     body.Query,
		Limit:     body.Limit,
	})
	if err != nil {
		if errors.Is(err, port.ErrVectorUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":     "capability_unavailable",
				"message":   "Semantic search is not available: the vector store was never initialized",
				"available": false,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	results := make([]fiber.Map, len(resp.Similar))
	for i, r := range resp.Similar {
		results[i] = fiber.Map{
			"source_url":    r.SourceURL,
			"file_path":     r.FilePath,
			"function_name": r.FunctionName,
			"content":       r.Content,
			"similarity":    r.Similarity,
		}
	}

	return c.JSON(fiber.Map{
		"results": results,
		"count":   len(results),
		"query":   body.Query,
	})
}

// QueryRepository answers a free-form question about an indexed repository.
func (h *SearchHandler) QueryRepository(c fiber.Ctx) error {
	var body struct {
		RepoURL  string `json:"repo_url"`
		Question string `json:"question"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.RepoURL == "" || body.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Repository URL and question are required"})
	}

	answer, sources, err := h.chat.QueryRepository(c.Context(), body.RepoURL, body.Question)
	if err != nil {
		if errors.Is(err, port.ErrRepoNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Repository not found. Please process it first."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	sourceMaps := make([]fiber.Map, len(sources))
	for i, s := range sources {
		sourceMaps[i] = fiber.Map{
			"file_path":     s.FilePath,
			"function_name": s.FunctionName,
			"content":       s.Content,
			"similarity":    s.Similarity,
		}
	}

	return c.JSON(fiber.Map{
		"response": answer,
		"repo_url": body.RepoURL,
		"question": body.Question,
		"sources":  sourceMaps,
	})
}
