package service

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/domain"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/extract"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
	"github.com/panjf2000/ants/v2"
)

// Indexer orchestrates one ingestion pass: fetch files, extract candidate
// spans, summarize, and replace the stored generation of function records and
// embeddings for the repository's identity key.
type Indexer struct {
	source    port.SourceProvider
	records   port.RecordStore
	vectors   port.VectorIndex // nil when the vector path was never initialized
	ai        port.AIProvider
	summaries *SummaryGateway
	pool      *ants.Pool
	locks     *keyLock
}

// IndexReport is the outcome of one successful ingestion.
type IndexReport struct {
	Repository         *domain.Repository
	FunctionsProcessed int
}

// NewIndexer creates an indexer. vectors may be nil; ingestion then degrades
// to the structured path only. workers bounds concurrent summarization calls.
func NewIndexer(source port.SourceProvider, records port.RecordStore, vectors port.VectorIndex, ai port.AIProvider, summaries *SummaryGateway, workers int) (*Indexer, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create summary pool: %w", err)
	}
	return &Indexer{
		source:    source,
		records:   records,
		vectors:   vectors,
		ai:        ai,
		summaries: summaries,
		pool:      pool,
		locks:     newKeyLock(),
	}, nil
}

// Close releases the worker pool.
func (ix *Indexer) Close() {
	ix.pool.Release()
}

// candidate pairs an extracted span with the file it came from.
type candidate struct {
	filePath string
	span     extract.Span
}

// ProcessRepository ingests one repository identified by (owner, sourceURL),
// replacing any previously stored generation. Retrieval and repository-row
// failures abort the attempt and leave the prior generation untouched;
// failures local to a single function record are logged and skipped.
func (ix *Indexer) ProcessRepository(ctx context.Context, owner, name, sourceURL string) (*IndexReport, error) {
	slog.Info("processing repository", "owner", owner, "name", name, "source_url", sourceURL)

	files, err := ix.source.FetchFiles(ctx, owner, name)
	if err != nil {
		return nil, err
	}

	// 1. Extract candidate spans from every eligible file.
	var candidates []candidate
	spanNames := make(map[string][]string)
	for _, f := range files {
		kind := extract.KindForPath(f.Path)
		for _, span := range extract.Extract(f.Text, kind) {
			candidates = append(candidates, candidate{filePath: f.Path, span: span})
			spanNames[f.Path] = append(spanNames[f.Path], span.Name)
		}
	}

	// 2. Repository-level summary over the concatenated content. Emptiness is
	// judged on the file text itself; the file headers added here don't count.
	var concat strings.Builder
	hasContent := false
	for _, f := range files {
		if strings.TrimSpace(f.Text) != "" {
			hasContent = true
		}
		fmt.Fprintf(&concat, "// File: %s\n%s\n\n", f.Path, f.Text)
	}
	repoSummary := "This repository contains no readable content."
	if hasContent {
		repoSummary = ix.summaries.Summarize(ctx, concat.String(), owner+"/"+name)
	}

	// 3. Upsert the repository row. Failure here is fatal to the attempt.
	repo, err := ix.records.UpsertRepository(ctx, &domain.Repository{
		Owner:     owner,
		Name:      name,
		SourceURL: sourceURL,
		Summary:   repoSummary,
		Tree:      buildTree(name, files, spanNames),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert repository: %w", err)
	}

	// Summarize every candidate span, fanned out on the bounded pool.
	records := ix.summarizeCandidates(ctx, sourceURL, candidates)

	// Embedding computation is a long external call; do it before taking the
	// per-key lock so the lock covers only the delete+insert phase.
	embeddings := ix.buildEmbeddings(ctx, sourceURL, records)

	// Function records and embeddings are keyed by source URL alone, so the
	// replacement phase must serialize across owners too, not per (owner, URL).
	unlock := ix.locks.Lock(sourceURL)
	defer unlock()

	// 4. Vector path: delete the old generation fully before inserting the
	// new one. A reader may observe a transient empty window, never a mix.
	if ix.vectors != nil {
		if err := ix.vectors.DeleteBySource(ctx, sourceURL); err != nil {
			slog.Error("vector delete failed, skipping vector path", "source_url", sourceURL, "error", err)
		} else if err := ix.vectors.InsertBatch(ctx, embeddings); err != nil {
			slog.Error("vector insert failed", "source_url", sourceURL, "error", err)
		}
	}

	// 5. Structured path: same delete-then-insert discipline, transactional
	// in the store so readers see a whole generation or none.
	if err := ix.records.ReplaceFunctions(ctx, sourceURL, records); err != nil {
		return nil, fmt.Errorf("replace function records: %w", err)
	}

	slog.Info("repository processed", "source_url", sourceURL, "functions", len(records))
	return &IndexReport{Repository: repo, FunctionsProcessed: len(records)}, nil
}

// summarizeCandidates produces one FunctionRecord per candidate. Summaries
// run concurrently on the worker pool; the gateway resolves every failure to
// a marked fallback string, so no candidate is lost here.
func (ix *Indexer) summarizeCandidates(ctx context.Context, sourceURL string, candidates []candidate) []domain.FunctionRecord {
	records := make([]domain.FunctionRecord, len(candidates))

	var wg sync.WaitGroup
	for i, cand := range candidates {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			summary := ix.summaries.Summarize(ctx, cand.span.Code, cand.filePath+":"+cand.span.Name)
			records[i] = domain.FunctionRecord{
				SourceURL:    sourceURL,
				FilePath:     cand.filePath,
				FunctionName: cand.span.Name,
				Code:         cand.span.Code,
				Summary:      summary,
				Keywords:     domain.DeriveKeywords(cand.span.Name, summary),
			}
		}
		if err := ix.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	return records
}

// buildEmbeddings embeds each record's summary. A batch failure degrades to
// no embeddings for this generation; the structured path still proceeds.
func (ix *Indexer) buildEmbeddings(ctx context.Context, sourceURL string, records []domain.FunctionRecord) []domain.FunctionEmbedding {
	if ix.vectors == nil || ix.ai == nil || len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.FunctionName + ": " + r.Summary
	}

	vectors, err := ix.ai.EmbedBatch(ctx, texts)
	if err != nil {
		slog.Error("embedding batch failed, skipping vector path", "source_url", sourceURL, "error", err)
		return nil
	}
	if len(vectors) != len(records) {
		slog.Error("embedding count mismatch, skipping vector path",
			"source_url", sourceURL, "expected", len(records), "received", len(vectors))
		return nil
	}

	embeddings := make([]domain.FunctionEmbedding, len(records))
	for i, r := range records {
		embeddings[i] = domain.FunctionEmbedding{
			SourceURL:    r.SourceURL,
			FilePath:     r.FilePath,
			FunctionName: r.FunctionName,
			Content:      r.Summary,
			Vector:       vectors[i],
		}
	}
	return embeddings
}

// buildTree assembles the nested tree snapshot from the fetched file paths.
// File-node summaries are derived from the extracted span names; directories
// carry none.
func buildTree(repoName string, files []domain.SourceFile, spanNames map[string][]string) *domain.TreeNode {
	root := &domain.TreeNode{Name: repoName, Type: domain.TreeNodeDirectory, Path: "."}
	dirs := map[string]*domain.TreeNode{".": root}

	ensureDir := func(dir string) *domain.TreeNode {
		if n, ok := dirs[dir]; ok {
			return n
		}
		// Create missing ancestors top-down.
		parts := strings.Split(dir, "/")
		cur := root
		for i := range parts {
			p := strings.Join(parts[:i+1], "/")
			n, ok := dirs[p]
			if !ok {
				n = &domain.TreeNode{Name: parts[i], Type: domain.TreeNodeDirectory, Path: "./" + p}
				cur.Children = append(cur.Children, n)
				dirs[p] = n
			}
			cur = n
		}
		return cur
	}

	sorted := make([]domain.SourceFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	for _, f := range sorted {
		parent := root
		if dir := path.Dir(f.Path); dir != "." {
			parent = ensureDir(dir)
		}
		summary := ""
		if names := spanNames[f.Path]; len(names) > 0 {
			summary = fmt.Sprintf("defines %d function(s): %s", len(names), strings.Join(names, ", "))
		}
		parent.Children = append(parent.Children, &domain.TreeNode{
			Name:    path.Base(f.Path),
			Type:    domain.TreeNodeFile,
			Path:    "./" + f.Path,
			Summary: summary,
		})
	}
	return root
}

// sourceURLPatterns mirror the accepted GitHub URL shapes.
var sourceURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/(?:tree|blob)/`),
	regexp.MustCompile(`github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`),
	regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`),
}

// ParseSourceURL extracts the owner and repository name from a GitHub URL.
func ParseSourceURL(url string) (owner, name string, err error) {
	for _, p := range sourceURLPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1], strings.TrimSuffix(m[2], ".git"), nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", port.ErrInvalidRepoURL, url)
}
