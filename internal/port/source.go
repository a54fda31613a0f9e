package port

import (
	"context"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/domain"
)

// SourceProvider abstracts the remote host a repository's files are fetched
// from. Implementations filter to a bounded set of text extensions, skip a
// fixed set of ignored directories, and cap the number of files returned.
// Failures are reported wrapped in ErrRetrieval.
type SourceProvider interface {
	// FetchFiles returns the readable files of owner/name as (path, text) pairs.
	FetchFiles(ctx context.Context, owner, name string) ([]domain.SourceFile, error)

	// ListRepos lists the repositories the remote host reports for owner.
	ListRepos(ctx context.Context, owner string) ([]domain.RemoteRepo, error)
}
