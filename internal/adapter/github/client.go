package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/domain"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
	"golang.org/x/sync/errgroup"
)

// fetchWorkers bounds how many blob downloads run in parallel per repository.
const fetchWorkers = 8

// textExtensions is the bounded set of extensions considered readable source.
var textExtensions = map[string]bool{
	".py": true, ".js": true, ".jsx": true, ".mjs": true, ".ts": true,
	".tsx": true, ".go": true, ".java": true, ".rb": true, ".c": true,
	".h": true, ".cpp": true, ".md": true, ".txt": true,
}

// ignoredDirs are directory names excluded from retrieval: version-control
// metadata, dependency caches, and virtual environments.
var ignoredDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "venv": true,
	".venv": true, "__pycache__": true, "dist": true, "build": true,
	"target": true, ".idea": true,
}

// Client implements port.SourceProvider against the GitHub REST API.
type Client struct {
	apiURL     string
	token      string
	maxFiles   int
	httpClient *http.Client
}

// NewClient creates a GitHub client. token may be empty for anonymous access.
func NewClient(apiURL, token string, maxFiles int) *Client {
	return &Client{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		token:      token,
		maxFiles:   maxFiles,
		httpClient: &http.Client{},
	}
}

// FetchFiles lists the repository tree at HEAD and downloads the readable
// files, bounded to maxFiles. Any listing or network failure is wrapped in
// port.ErrRetrieval.
func (c *Client) FetchFiles(ctx context.Context, owner, name string) ([]domain.SourceFile, error) {
	treeURL := fmt.Sprintf("%s/repos/%s/%s/git/trees/HEAD?recursive=1", c.apiURL, owner, name)
	body, err := c.get(ctx, treeURL, "application/vnd.github+json")
	if err != nil {
		return nil, fmt.Errorf("%w: list tree %s/%s: %v", port.ErrRetrieval, owner, name, err)
	}

	var tree struct {
		Entries []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
		Truncated bool `json:"truncated"`
	}
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("%w: decode tree: %v", port.ErrRetrieval, err)
	}

	var paths []string
	for _, e := range tree.Entries {
		if e.Type != "blob" || !eligible(e.Path) {
			continue
		}
		paths = append(paths, e.Path)
		if len(paths) >= c.maxFiles {
			break
		}
	}

	files := make([]domain.SourceFile, 0, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)
	for _, p := range paths {
		g.Go(func() error {
			raw, err := c.get(gctx,
				fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.apiURL, owner, name, p),
				"application/vnd.github.raw+json")
			if err != nil {
				// One unreadable file is not fatal to retrieval.
				slog.Warn("skipping unreadable file", "repo", owner+"/"+name, "path", p, "error", err)
				return nil
			}
			mu.Lock()
			files = append(files, domain.SourceFile{Path: p, Text: string(raw)})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: fetch contents: %v", port.ErrRetrieval, err)
	}

	// Parallel fetch scrambles order; restore the tree listing order.
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return files, nil
}

// ListRepos lists the repositories the remote host reports for owner.
func (c *Client) ListRepos(ctx context.Context, owner string) ([]domain.RemoteRepo, error) {
	url := fmt.Sprintf("%s/users/%s/repos?sort=updated&per_page=100", c.apiURL, owner)
	body, err := c.get(ctx, url, "application/vnd.github+json")
	if err != nil {
		return nil, fmt.Errorf("%w: list repos for %s: %v", port.ErrRetrieval, owner, err)
	}

	var repos []domain.RemoteRepo
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, fmt.Errorf("%w: decode repo list: %v", port.ErrRetrieval, err)
	}
	return repos, nil
}

// eligible reports whether a tree path passes the extension allowlist and
// the ignored-directory filter.
func eligible(p string) bool {
	if !textExtensions[strings.ToLower(path.Ext(p))] {
		return false
	}
	for _, part := range strings.Split(path.Dir(p), "/") {
		if ignoredDirs[part] {
			return false
		}
	}
	return true
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("github API error (%d): %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}
