package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/adapter/ai/mock"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSourceURL = "https://github.com/testuser/demo"

func newTestIndexer(t *testing.T, source *fakeSource, records *fakeRecordStore, vectors *fakeVectorIndex, provider *mock.Provider) *Indexer {
	t.Helper()
	summaries := NewSummaryGateway(provider, 8000)
	ix, err := NewIndexer(source, records, vectors, provider, summaries, 2)
	require.NoError(t, err)
	t.Cleanup(ix.Close)
	return ix
}

func pythonFixture() []domain.SourceFile {
	return []domain.SourceFile{
		{Path: "lib.py", Text: "def alpha(x):\n    return x + 1\n\ndef beta(y):\n    return y * 2\n"},
	}
}

func TestProcessRepository_AlphaBetaScenario(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{files: pythonFixture()}
	records := newFakeRecordStore()
	vectors := &fakeVectorIndex{}
	ix := newTestIndexer(t, source, records, vectors, mock.NewProvider())

	report, err := ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FunctionsProcessed)
	assert.Equal(t, "testuser", report.Repository.Owner)
	assert.NotEmpty(t, report.Repository.Summary)

	engine := NewKeywordSearch(records)
	matches, err := engine.SearchFunctions(ctx, testSourceURL, "alpha")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "alpha", matches[0].FunctionName)

	// Reprocessing must replace, not accumulate.
	report, err = ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FunctionsProcessed)

	matches, err = engine.SearchFunctions(ctx, testSourceURL, "alpha")
	require.NoError(t, err)
	assert.Len(t, matches, 1, "reprocessing must not duplicate records")

	all, err := records.ListFunctionsBySource(ctx, testSourceURL)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProcessRepository_IdempotentCounts(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{files: pythonFixture()}
	records := newFakeRecordStore()
	vectors := &fakeVectorIndex{}
	ix := newTestIndexer(t, source, records, vectors, mock.NewProvider())

	first, err := ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.NoError(t, err)
	second, err := ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.NoError(t, err)

	assert.Equal(t, first.FunctionsProcessed, second.FunctionsProcessed)
	assert.Equal(t, first.FunctionsProcessed, vectors.count(), "one embedding per record")

	// The repository row was updated in place, never duplicated.
	repos, err := records.ListRepositoriesByOwner(ctx, "testuser")
	require.NoError(t, err)
	assert.Len(t, repos, 1)
}

func TestProcessRepository_DeleteCompletesBeforeInsert(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{files: pythonFixture()}
	records := newFakeRecordStore()
	vectors := &fakeVectorIndex{}
	ix := newTestIndexer(t, source, records, vectors, mock.NewProvider())

	_, err := ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.NoError(t, err)
	_, err = ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.NoError(t, err)

	ops := vectors.opLog()
	require.Len(t, ops, 4)
	for i := 0; i < len(ops); i += 2 {
		assert.True(t, strings.HasPrefix(ops[i], "delete:"), "op %d: %s", i, ops[i])
		assert.True(t, strings.HasPrefix(ops[i+1], "insert:"), "op %d: %s", i+1, ops[i+1])
	}
}

func TestProcessRepository_ConcurrentSameKeySerialized(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{files: pythonFixture()}
	records := newFakeRecordStore()
	vectors := &fakeVectorIndex{}
	ix := newTestIndexer(t, source, records, vectors, mock.NewProvider())

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Every delete must be immediately followed by its own insert; an
	// interleaving like delete,delete,insert,insert would splice generations.
	ops := vectors.opLog()
	require.Len(t, ops, 8)
	for i := 0; i < len(ops); i += 2 {
		assert.True(t, strings.HasPrefix(ops[i], "delete:"), "op %d: %s", i, ops[i])
		assert.True(t, strings.HasPrefix(ops[i+1], "insert:"), "op %d: %s", i+1, ops[i+1])
	}
	assert.Equal(t, 2, vectors.count())
}

func TestProcessRepository_DifferentOwnersSameURLSerialized(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{files: pythonFixture()}
	records := newFakeRecordStore()
	// Embeddings are keyed by source URL with no owner column, so two owners
	// ingesting the same URL must still take turns on the replacement phase.
	vectors := &fakeVectorIndex{deleteDelay: 20 * time.Millisecond}
	ix := newTestIndexer(t, source, records, vectors, mock.NewProvider())

	var wg sync.WaitGroup
	for _, owner := range []string{"userA", "userB"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ix.ProcessRepository(ctx, owner, "demo", testSourceURL)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ops := vectors.opLog()
	require.Len(t, ops, 4)
	for i := 0; i < len(ops); i += 2 {
		assert.True(t, strings.HasPrefix(ops[i], "delete:"), "op %d: %s", i, ops[i])
		assert.True(t, strings.HasPrefix(ops[i+1], "insert:"), "op %d: %s", i+1, ops[i+1])
	}
	assert.Equal(t, 2, vectors.count(), "exactly one live generation for the URL")
}

func TestProcessRepository_RetrievalFailurePreservesGeneration(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{files: pythonFixture()}
	records := newFakeRecordStore()
	vectors := &fakeVectorIndex{}
	ix := newTestIndexer(t, source, records, vectors, mock.NewProvider())

	_, err := ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.NoError(t, err)
	before, err := records.ListFunctionsBySource(ctx, testSourceURL)
	require.NoError(t, err)

	source.setErr(errors.New("network down"))
	_, err = ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.Error(t, err)

	after, err := records.ListFunctionsBySource(ctx, testSourceURL)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed retrieval must leave the prior generation untouched")
	assert.Equal(t, 2, vectors.count())
}

func TestProcessRepository_UpsertFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{files: pythonFixture()}
	records := newFakeRecordStore()
	records.failUpsert = true
	ix := newTestIndexer(t, source, records, &fakeVectorIndex{}, mock.NewProvider())

	_, err := ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.Error(t, err)

	all, err := records.ListFunctionsBySource(ctx, testSourceURL)
	require.NoError(t, err)
	assert.Empty(t, all, "nothing may be written after a fatal repository-row failure")
}

func TestProcessRepository_SummaryFallbackIsDistinguishable(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewProvider()
	provider.ChatFunc = func(ctx context.Context, systemPrompt, userPrompt string, contextChunks []string) (string, error) {
		return "", errors.New("model offline")
	}

	source := &fakeSource{files: pythonFixture()}
	records := newFakeRecordStore()
	ix := newTestIndexer(t, source, records, &fakeVectorIndex{}, provider)

	report, err := ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.NoError(t, err, "summarization failure must not abort ingestion")
	assert.Equal(t, 2, report.FunctionsProcessed)

	all, err := records.ListFunctionsBySource(ctx, testSourceURL)
	require.NoError(t, err)
	for _, r := range all {
		assert.True(t, IsFallbackSummary(r.Summary), "summary %q must carry the fallback marker", r.Summary)
	}
}

func TestProcessRepository_EmbedFailureDegradesToStructuredPath(t *testing.T) {
	ctx := context.Background()
	provider := mock.NewProvider()
	provider.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedder offline")
	}

	source := &fakeSource{files: pythonFixture()}
	records := newFakeRecordStore()
	vectors := &fakeVectorIndex{}
	ix := newTestIndexer(t, source, records, vectors, provider)

	report, err := ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FunctionsProcessed)
	assert.Equal(t, 0, vectors.count())

	all, err := records.ListFunctionsBySource(ctx, testSourceURL)
	require.NoError(t, err)
	assert.Len(t, all, 2, "structured path proceeds without embeddings")
}

func TestProcessRepository_NilVectorIndex(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{files: pythonFixture()}
	records := newFakeRecordStore()
	provider := mock.NewProvider()
	summaries := NewSummaryGateway(provider, 8000)
	ix, err := NewIndexer(source, records, nil, provider, summaries, 2)
	require.NoError(t, err)
	defer ix.Close()

	report, err := ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FunctionsProcessed)
}

func TestProcessRepository_EmptyRepository(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{}
	records := newFakeRecordStore()
	ix := newTestIndexer(t, source, records, &fakeVectorIndex{}, mock.NewProvider())

	report, err := ix.ProcessRepository(ctx, "testuser", "empty", "https://github.com/testuser/empty")
	require.NoError(t, err)
	assert.Equal(t, 0, report.FunctionsProcessed)
	assert.Contains(t, report.Repository.Summary, "no readable content")
}

func TestProcessRepository_BlankFilesCountAsEmpty(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{files: []domain.SourceFile{
		{Path: "empty.py", Text: ""},
		{Path: "blank.py", Text: "  \n\t\n"},
	}}
	records := newFakeRecordStore()
	provider := mock.NewProvider()
	ix := newTestIndexer(t, source, records, &fakeVectorIndex{}, provider)

	report, err := ix.ProcessRepository(ctx, "testuser", "empty", "https://github.com/testuser/empty")
	require.NoError(t, err)
	assert.Equal(t, 0, report.FunctionsProcessed)
	assert.Contains(t, report.Repository.Summary, "no readable content")
	assert.Equal(t, 0, provider.ChatCalls(), "nothing to summarize when every file is blank")
}

func TestProcessRepository_TreeSnapshot(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{files: []domain.SourceFile{
		{Path: "src/app.py", Text: "def main():\n    pass\n"},
		{Path: "README.md", Text: "# demo\n"},
	}}
	records := newFakeRecordStore()
	ix := newTestIndexer(t, source, records, &fakeVectorIndex{}, mock.NewProvider())

	report, err := ix.ProcessRepository(ctx, "testuser", "demo", testSourceURL)
	require.NoError(t, err)

	tree := report.Repository.Tree
	require.NotNil(t, tree)
	assert.Equal(t, domain.TreeNodeDirectory, tree.Type)
	require.Len(t, tree.Children, 2)

	var srcDir, readme *domain.TreeNode
	for _, child := range tree.Children {
		switch child.Name {
		case "src":
			srcDir = child
		case "README.md":
			readme = child
		}
	}
	require.NotNil(t, srcDir)
	require.NotNil(t, readme)
	assert.Equal(t, domain.TreeNodeFile, readme.Type)
	require.Len(t, srcDir.Children, 1)
	assert.Contains(t, srcDir.Children[0].Summary, "main")
}

func TestParseSourceURL(t *testing.T) {
	cases := []struct {
		url   string
		owner string
		name  string
	}{
		{"https://github.com/testuser/demo", "testuser", "demo"},
		{"https://github.com/testuser/demo.git", "testuser", "demo"},
		{"https://github.com/testuser/demo/", "testuser", "demo"},
		{"https://github.com/testuser/demo/tree/main/src", "testuser", "demo"},
		{"https://github.com/testuser/demo/blob/main/app.py", "testuser", "demo"},
	}
	for _, tc := range cases {
		owner, name, err := ParseSourceURL(tc.url)
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.owner, owner, tc.url)
		assert.Equal(t, tc.name, name, tc.url)
	}

	_, _, err := ParseSourceURL("https://example.com/not/github")
	assert.Error(t, err)
}
