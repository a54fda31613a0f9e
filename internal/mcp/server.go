package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/service"
)

// Server implements the Model Context Protocol (MCP) server.
// It exposes the two search modes as tools for external AI agents.
type Server struct {
	router *service.QueryRouter
	port   string
}

// NewServer creates a new MCP server.
func NewServer(router *service.QueryRouter, port string) *Server {
	return &Server{router: router, port: port}
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Start begins the MCP server on the configured port.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleRPC)

	slog.Info("MCP server starting", "port", s.port)
	return http.ListenAndServe(":"+s.port, mux)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error")
		return
	}

	var result interface{}
	var err error

	switch req.Method {
	case "tools/list":
		result = s.listTools()
	case "tools/call":
		result, err = s.callTool(r.Context(), req.Params)
	case "initialize":
		result = map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]string{
				"name":    "repo-analyser",
				"version": "1.0.0",
			},
			"capabilities": map[string]interface{}{
				"tools": map[string]bool{"listChanged": false},
			},
		}
	default:
		writeError(w, req.ID, -32601, "method not found")
		return
	}

	if err != nil {
		writeError(w, req.ID, -32603, err.Error())
		return
	}

	writeResult(w, req.ID, result)
}

func (s *Server) listTools() map[string]interface{} {
	tools := []Tool{
		{
			Name:        "search_functions",
			Description: "Keyword search over a repository's indexed functions",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"repo_url": {"type": "string", "description": "Repository source URL"},
					"query": {"type": "string", "description": "Search query"}
				},
				"required": ["repo_url", "query"]
			}`),
		},
		{
			Name:        "semantic_search",
			Description: "Similarity search over indexed function summaries",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search query"},
					"repo_url": {"type": "string", "description": "Optional repository source URL filter"},
					"limit": {"type": "integer", "description": "Maximum number of results"}
				},
				"required": ["query"]
			}`),
		},
	}
	return map[string]interface{}{"tools": tools}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var req struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	switch req.Name {
	case "search_functions":
		var args struct {
			RepoURL string `json:"repo_url"`
			Query   string `json:"query"`
		}
		json.Unmarshal(req.Arguments, &args)

		resp, err := s.router.Route(ctx, service.SearchRequest{
			Mode:      service.ModeKeyword,
			SourceURL: args.RepoURL,
			Query:     args.Query,
		})
		if err != nil {
			return nil, err
		}

		text := fmt.Sprintf("%d matching functions", len(resp.Functions))
		for _, f := range resp.Functions {
			text += fmt.Sprintf("\n- %s (%s): %s", f.FunctionName, f.FilePath, f.Summary)
		}
		return toolText(text), nil

	case "semantic_search":
		var args struct {
			RepoURL string `json:"repo_url"`
			Query   string `json:"query"`
			Limit   int    `json:"limit"`
		}
		json.Unmarshal(req.Arguments, &args)

		resp, err := s.router.Route(ctx, service.SearchRequest{
			Mode:      service.ModeSemantic,
			SourceURL: args.RepoURL,
			Query:     args.Query,
			Limit:     args.Limit,
		})
		if errors.Is(err, port.ErrVectorUnavailable) {
			return toolText("Semantic search is not available: the vector store was never initialized."), nil
		}
		if err != nil {
			return nil, err
		}

		text := fmt.Sprintf("%d similar functions", len(resp.Similar))
		for _, h := range resp.Similar {
			text += fmt.Sprintf("\n- %s (%s, similarity %.2f): %s", h.FunctionName, h.FilePath, h.Similarity, h.Content)
		}
		return toolText(text), nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", req.Name)
	}
}

func toolText(text string) map[string]interface{} {
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
	}
}

func writeResult(w http.ResponseWriter, id, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}})
}
