package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/adapter/ai"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/adapter/github"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/adapter/store"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/handler"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/mcp"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/middleware"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/service"
	"github.com/arturoeanton/go-repo-analyser-ollama/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting Repository Analyser",
		"port", cfg.Port,
		"ollama_embed", cfg.OllamaEmbedURL,
		"ollama_chat", cfg.OllamaChatURL,
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	ctx := context.Background()
	if err := pgStore.EnsureSchema(ctx); err != nil {
		slog.Error("failed to create schema", "error", err)
		os.Exit(1)
	}

	// The vector path is optional: when pgvector is missing, semantic search
	// degrades to the declared capability-unavailable condition.
	var vectors port.VectorIndex
	vectorIndex := store.NewVectorIndex(pgStore, cfg.EmbeddingDimension)
	if err := vectorIndex.EnsureSchema(ctx); err != nil {
		slog.Warn("vector store unavailable, semantic search disabled", "error", err)
	} else {
		vectors = vectorIndex
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	ollamaAI := ai.NewOllamaProvider(
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaEmbedURL,
			Model:   cfg.OllamaEmbedModel,
			Token:   cfg.OllamaEmbedToken,
		},
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaChatURL,
			Model:   cfg.OllamaChatModel,
			Token:   cfg.OllamaChatToken,
		},
	)
	githubClient := github.NewClient(cfg.GitHubAPIURL, cfg.GitHubToken, cfg.MaxFiles)

	// ── Services ─────────────────────────────────────────────────────────
	summaries := service.NewSummaryGateway(ollamaAI, cfg.SummarizeMaxChars)

	indexer, err := service.NewIndexer(githubClient, pgStore, vectors, ollamaAI, summaries, cfg.SummaryWorkers)
	if err != nil {
		slog.Error("failed to create indexer", "error", err)
		os.Exit(1)
	}
	defer indexer.Close()

	keyword := service.NewKeywordSearch(pgStore)
	semantic := service.NewSemanticSearch(ollamaAI, vectors)
	router := service.NewQueryRouter(keyword, semantic)
	chatService := service.NewChatService(ollamaAI, pgStore, semantic, keyword)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // ingestion is synchronous and slow
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-Username"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))

	// Audit middleware (logs all requests)
	app.Use(middleware.AuditMiddleware(pgStore))

	// Health check
	app.Get("/api/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":             "healthy",
			"app":                cfg.AppName,
			"model":              ollamaAI.ModelName(),
			"semantic_available": vectors != nil,
		})
	})

	// ── Routes ───────────────────────────────────────────────────────────
	api := app.Group("/api")

	repoHandler := handler.NewRepoHandler(indexer, pgStore, githubClient, keyword)
	repoHandler.Register(api)

	searchHandler := handler.NewSearchHandler(router, chatService)
	searchHandler.Register(api)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(router, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
