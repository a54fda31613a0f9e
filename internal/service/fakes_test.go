package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/domain"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
)

// fakeSource is an in-memory port.SourceProvider.
type fakeSource struct {
	mu    sync.Mutex
	files []domain.SourceFile
	repos []domain.RemoteRepo
	err   error
}

func (f *fakeSource) FetchFiles(ctx context.Context, owner, name string) ([]domain.SourceFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.SourceFile, len(f.files))
	copy(out, f.files)
	return out, nil
}

func (f *fakeSource) ListRepos(ctx context.Context, owner string) ([]domain.RemoteRepo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.repos, nil
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// fakeRecordStore is an in-memory port.RecordStore.
type fakeRecordStore struct {
	mu          sync.Mutex
	repos       map[string]*domain.Repository // keyed by source URL
	records     []domain.FunctionRecord
	nextID      int
	failUpsert  bool
	failReplace bool
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{repos: make(map[string]*domain.Repository)}
}

func (f *fakeRecordStore) UpsertRepository(ctx context.Context, r *domain.Repository) (*domain.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert {
		return nil, errors.New("upsert failed")
	}

	now := time.Now()
	if existing, ok := f.repos[r.SourceURL]; ok && existing.Owner == r.Owner {
		existing.Name = r.Name
		existing.Summary = r.Summary
		existing.Tree = r.Tree
		existing.UpdatedAt = now
		cp := *existing
		return &cp, nil
	}

	f.nextID++
	stored := *r
	stored.ID = strconv.Itoa(f.nextID)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	f.repos[r.SourceURL] = &stored
	cp := stored
	return &cp, nil
}

func (f *fakeRecordStore) GetRepositoryBySource(ctx context.Context, sourceURL string) (*domain.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.repos[sourceURL]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, port.ErrRepoNotFound
}

func (f *fakeRecordStore) ListRepositoriesByOwner(ctx context.Context, owner string) ([]domain.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Repository
	for _, r := range f.repos {
		if r.Owner == owner {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeRecordStore) SetFavorite(ctx context.Context, owner, name string, favorite bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.repos {
		if r.Owner == owner && r.Name == name {
			r.IsFavorite = favorite
			return nil
		}
	}
	return port.ErrRepoNotFound
}

func (f *fakeRecordStore) ReplaceFunctions(ctx context.Context, sourceURL string, records []domain.FunctionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReplace {
		return errors.New("replace failed")
	}

	kept := f.records[:0]
	for _, r := range f.records {
		if r.SourceURL != sourceURL {
			kept = append(kept, r)
		}
	}
	f.records = kept

	now := time.Now()
	for _, r := range records {
		f.nextID++
		r.ID = strconv.Itoa(f.nextID)
		r.CreatedAt = now
		f.records = append(f.records, r)
	}
	return nil
}

func (f *fakeRecordStore) ListFunctionsBySource(ctx context.Context, sourceURL string) ([]domain.FunctionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.FunctionRecord
	for _, r := range f.records {
		if r.SourceURL == sourceURL {
			out = append(out, r)
		}
	}
	// Most-recently-indexed first, stable id tiebreak, as the store contract requires.
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].ID)
		b, _ := strconv.Atoi(out[j].ID)
		return a > b
	})
	return out, nil
}

// fakeVectorIndex is an in-memory port.VectorIndex with a brute-force
// cosine-distance nearest-neighbor scan. It records the order of mutating
// operations so tests can assert the delete-then-insert discipline.
type fakeVectorIndex struct {
	mu          sync.Mutex
	embeddings  []domain.FunctionEmbedding
	ops         []string
	failDelete  bool
	deleteDelay time.Duration // widens the delete-to-insert window
}

func (f *fakeVectorIndex) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeVectorIndex) DeleteBySource(ctx context.Context, sourceURL string) error {
	if f.deleteDelay > 0 {
		time.Sleep(f.deleteDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("delete failed")
	}
	f.ops = append(f.ops, "delete:"+sourceURL)
	kept := f.embeddings[:0]
	for _, e := range f.embeddings {
		if e.SourceURL != sourceURL {
			kept = append(kept, e)
		}
	}
	f.embeddings = kept
	return nil
}

func (f *fakeVectorIndex) InsertBatch(ctx context.Context, embeddings []domain.FunctionEmbedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(embeddings) > 0 {
		f.ops = append(f.ops, "insert:"+embeddings[0].SourceURL)
	}
	f.embeddings = append(f.embeddings, embeddings...)
	return nil
}

func (f *fakeVectorIndex) SearchNearest(ctx context.Context, vector []float32, sourceURL string, limit int) ([]port.NearestHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var hits []port.NearestHit
	for _, e := range f.embeddings {
		if sourceURL != "" && e.SourceURL != sourceURL {
			continue
		}
		hits = append(hits, port.NearestHit{
			SourceURL:    e.SourceURL,
			FilePath:     e.FilePath,
			FunctionName: e.FunctionName,
			Content:      e.Content,
			Distance:     cosineDistance(vector, e.Vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeVectorIndex) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.embeddings)
}

func (f *fakeVectorIndex) opLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ops))
	copy(out, f.ops)
	return out
}

// cosineDistance assumes the mock provider's unit vectors, so 1 - dot.
func cosineDistance(a, b []float32) float64 {
	var dot float64
	for i := range a {
		if i < len(b) {
			dot += float64(a[i]) * float64(b[i])
		}
	}
	return 1 - dot
}
