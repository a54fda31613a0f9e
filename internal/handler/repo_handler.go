package handler

import (
	"errors"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/service"
	"github.com/gofiber/fiber/v3"
)

// RepoHandler handles repository ingestion and listing endpoints.
type RepoHandler struct {
	indexer *service.Indexer
	records port.RecordStore
	source  port.SourceProvider
	keyword *service.KeywordSearch
}

// NewRepoHandler creates a new repo handler.
func NewRepoHandler(indexer *service.Indexer, records port.RecordStore, source port.SourceProvider, keyword *service.KeywordSearch) *RepoHandler {
	return &RepoHandler{indexer: indexer, records: records, source: source, keyword: keyword}
}

// Register sets up the repository routes.
func (h *RepoHandler) Register(api fiber.Router) {
	api.Post("/process-repository", h.Process)
	api.Post("/user-repositories", h.ListRemote)
	api.Post("/user-repository-summaries", h.Summaries)
	api.Post("/repository-structure", h.Structure)
	api.Post("/search-summaries", h.SearchSummaries)
	api.Post("/toggle-favorite", h.ToggleFavorite)
}

// Process ingests a repository from its GitHub URL, replacing any previously
// indexed generation.
func (h *RepoHandler) Process(c fiber.Ctx) error {
	var body struct {
		GitHubURL string `json:"github_url"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.GitHubURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "GitHub URL is required"})
	}

	owner, name, err := service.ParseSourceURL(body.GitHubURL)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	report, err := h.indexer.ProcessRepository(c.Context(), owner, name, body.GitHubURL)
	if err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, port.ErrRetrieval) {
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"message":             "Repository processed successfully",
		"username":            owner,
		"repo_name":           name,
		"repo_summary":        report.Repository.Summary,
		"tree_structure":      report.Repository.Tree,
		"functions_processed": report.FunctionsProcessed,
	})
}

// ListRemote lists a user's repositories on the remote host.
func (h *RepoHandler) ListRemote(c fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username is required"})
	}

	repos, err := h.source.ListRepos(c.Context(), body.Username)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	if len(repos) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found or no repositories available"})
	}

	return c.JSON(fiber.Map{
		"username":     body.Username,
		"repositories": repos,
		"count":        len(repos),
	})
}

// Summaries returns the stored repository summaries for an owner.
func (h *RepoHandler) Summaries(c fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username is required"})
	}

	repos, err := h.records.ListRepositoriesByOwner(c.Context(), body.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	summaries := make([]fiber.Map, len(repos))
	for i, r := range repos {
		summaries[i] = fiber.Map{
			"repo_name":    r.Name,
			"repo_url":     r.SourceURL,
			"repo_summary": r.Summary,
			"is_favorite":  r.IsFavorite,
			"created_at":   r.CreatedAt,
			"updated_at":   r.UpdatedAt,
		}
	}

	return c.JSON(fiber.Map{
		"username":  body.Username,
		"summaries": summaries,
		"count":     len(summaries),
	})
}

// Structure returns the stored tree snapshot for a repository.
func (h *RepoHandler) Structure(c fiber.Ctx) error {
	var body struct {
		RepoURL string `json:"repo_url"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.RepoURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Repository URL is required"})
	}

	repo, err := h.records.GetRepositoryBySource(c.Context(), body.RepoURL)
	if err != nil {
		if errors.Is(err, port.ErrRepoNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Repository not found. Please process it first."})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"repo_url":   body.RepoURL,
		"repo_name":  repo.Name,
		"structure":  repo.Tree,
		"created_at": repo.CreatedAt,
		"updated_at": repo.UpdatedAt,
	})
}

// SearchSummaries searches an owner's repository summaries by keyword.
func (h *RepoHandler) SearchSummaries(c fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Query    string `json:"query"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.Username == "" || body.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username and search query are required"})
	}

	repos, err := h.keyword.SearchSummaries(c.Context(), body.Username, body.Query)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	results := make([]fiber.Map, len(repos))
	for i, r := range repos {
		results[i] = fiber.Map{
			"repo_name":    r.Name,
			"repo_url":     r.SourceURL,
			"repo_summary": r.Summary,
			"is_favorite":  r.IsFavorite,
			"created_at":   r.CreatedAt,
			"updated_at":   r.UpdatedAt,
		}
	}

	return c.JSON(fiber.Map{
		"username": body.Username,
		"query":    body.Query,
		"results":  results,
		"count":    len(results),
	})
}

// ToggleFavorite updates the favorite flag on an indexed repository.
func (h *RepoHandler) ToggleFavorite(c fiber.Ctx) error {
	var body struct {
		Username   string `json:"username"`
		RepoName   string `json:"repo_name"`
		IsFavorite bool   `json:"is_favorite"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.Username == "" || body.RepoName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username and repository name are required"})
	}

	if err := h.records.SetFavorite(c.Context(), body.Username, body.RepoName, body.IsFavorite); err != nil {
		if errors.Is(err, port.ErrRepoNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Repository not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	message := "Repository removed from favorites"
	if body.IsFavorite {
		message = "Repository added to favorites"
	}

	return c.JSON(fiber.Map{
		"username":    body.Username,
		"repo_name":   body.RepoName,
		"is_favorite": body.IsFavorite,
		"message":     message,
	})
}
