package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/domain"
	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
)

// PostgresStore handles all relational database operations. It implements
// port.RecordStore.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by the vector index.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// EnsureSchema creates the relational tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS repositories (
			id          SERIAL PRIMARY KEY,
			owner       TEXT NOT NULL,
			name        TEXT NOT NULL,
			source_url  TEXT NOT NULL,
			summary     TEXT NOT NULL DEFAULT '',
			tree        JSONB NOT NULL DEFAULT '{}',
			is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (owner, source_url)
		)`,
		`CREATE TABLE IF NOT EXISTS function_records (
			id            SERIAL PRIMARY KEY,
			source_url    TEXT NOT NULL,
			file_path     TEXT NOT NULL,
			function_name TEXT NOT NULL,
			code          TEXT NOT NULL,
			summary       TEXT NOT NULL,
			keywords      TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_function_records_source ON function_records (source_url)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id         SERIAL PRIMARY KEY,
			actor      TEXT NOT NULL,
			action     TEXT NOT NULL,
			resource   TEXT NOT NULL,
			details    JSONB NOT NULL DEFAULT '{}',
			ip         TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- Repositories ---

// UpsertRepository inserts or updates a repository by (owner, source_url).
func (s *PostgresStore) UpsertRepository(ctx context.Context, r *domain.Repository) (*domain.Repository, error) {
	treeJSON, err := json.Marshal(r.Tree)
	if err != nil {
		return nil, fmt.Errorf("marshal tree: %w", err)
	}

	query := `
		INSERT INTO repositories (owner, name, source_url, summary, tree)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (owner, source_url) DO UPDATE SET
			name = EXCLUDED.name,
			summary = EXCLUDED.summary,
			tree = EXCLUDED.tree,
			updated_at = NOW()
		RETURNING id, owner, name, source_url, summary, tree::text, is_favorite, created_at, updated_at`

	row := s.db.QueryRowContext(ctx, query, r.Owner, r.Name, r.SourceURL, r.Summary, string(treeJSON))
	return scanRepository(row)
}

// GetRepositoryBySource retrieves a repository by its source URL.
func (s *PostgresStore) GetRepositoryBySource(ctx context.Context, sourceURL string) (*domain.Repository, error) {
	query := `SELECT id, owner, name, source_url, summary, tree::text, is_favorite, created_at, updated_at
	          FROM repositories WHERE source_url = $1`

	repo, err := scanRepository(s.db.QueryRowContext(ctx, query, sourceURL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrRepoNotFound
	}
	return repo, err
}

// ListRepositoriesByOwner returns all repositories for an owner, newest first.
func (s *PostgresStore) ListRepositoriesByOwner(ctx context.Context, owner string) ([]domain.Repository, error) {
	query := `SELECT id, owner, name, source_url, summary, tree::text, is_favorite, created_at, updated_at
	          FROM repositories WHERE owner = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []domain.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, *repo)
	}
	return repos, rows.Err()
}

// SetFavorite updates the favorite flag for owner/name.
func (s *PostgresStore) SetFavorite(ctx context.Context, owner, name string, favorite bool) error {
	query := `UPDATE repositories SET is_favorite = $1, updated_at = NOW() WHERE owner = $2 AND name = $3`
	res, err := s.db.ExecContext(ctx, query, favorite, owner, name)
	if err != nil {
		return fmt.Errorf("set favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set favorite: %w", err)
	}
	if n == 0 {
		return port.ErrRepoNotFound
	}
	return nil
}

// --- Function records ---

// ReplaceFunctions deletes the previous generation for sourceURL and inserts
// the new one inside a single transaction, so a concurrent reader sees either
// the full old set or the full new set. A record whose insert fails is rolled
// back to its savepoint, logged, and skipped; the rest of the generation
// still commits.
func (s *PostgresStore) ReplaceFunctions(ctx context.Context, sourceURL string, records []domain.FunctionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM function_records WHERE source_url = $1`, sourceURL); err != nil {
		return fmt.Errorf("delete function records: %w", err)
	}

	if err := insertFunctionRecords(ctx, tx, sourceURL, records); err != nil {
		return err
	}

	return tx.Commit()
}

// execer is the slice of *sql.Tx that insertFunctionRecords needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// insertFunctionRecords inserts each record under its own savepoint. Postgres
// aborts a transaction after any failed statement, so the savepoint is what
// lets one bad record be skipped without losing the rest of the generation.
func insertFunctionRecords(ctx context.Context, tx execer, sourceURL string, records []domain.FunctionRecord) error {
	const insert = `INSERT INTO function_records (source_url, file_path, function_name, code, summary, keywords)
	                VALUES ($1, $2, $3, $4, $5, $6)`

	for i, r := range records {
		sp := fmt.Sprintf("rec_%d", i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insert,
			sourceURL, r.FilePath, r.FunctionName, r.Code, r.Summary, r.Keywords,
		); err != nil {
			slog.Warn("skipping function record",
				"source_url", sourceURL, "function", r.FunctionName, "error", err)
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
				return fmt.Errorf("rollback to savepoint: %w", rbErr)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
			return fmt.Errorf("release savepoint: %w", err)
		}
	}
	return nil
}

// ListFunctionsBySource returns all function records for a repository,
// most-recently-indexed first with a stable id tiebreak.
func (s *PostgresStore) ListFunctionsBySource(ctx context.Context, sourceURL string) ([]domain.FunctionRecord, error) {
	query := `SELECT id, source_url, file_path, function_name, code, summary, keywords, created_at
	          FROM function_records WHERE source_url = $1 ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("list function records: %w", err)
	}
	defer rows.Close()

	var records []domain.FunctionRecord
	for rows.Next() {
		var r domain.FunctionRecord
		if err := rows.Scan(
			&r.ID, &r.SourceURL, &r.FilePath, &r.FunctionName,
			&r.Code, &r.Summary, &r.Keywords, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan function record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// --- Audit logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(actor, action, resource, details, ip, userAgent string) error {
	if !json.Valid([]byte(details)) {
		wrapped, _ := json.Marshal(map[string]string{"raw": details})
		details = string(wrapped)
	}
	query := `INSERT INTO audit_logs (actor, action, resource, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4::jsonb, $5, $6)`
	_, err := s.db.ExecContext(context.Background(), query, actor, action, resource, details, ip, userAgent)
	return err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRepository(row scanner) (*domain.Repository, error) {
	var (
		repo     domain.Repository
		treeText string
	)
	err := row.Scan(
		&repo.ID, &repo.Owner, &repo.Name, &repo.SourceURL, &repo.Summary,
		&treeText, &repo.IsFavorite, &repo.CreatedAt, &repo.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan repository: %w", err)
	}
	if treeText != "" && treeText != "{}" {
		var tree domain.TreeNode
		if err := json.Unmarshal([]byte(treeText), &tree); err == nil {
			repo.Tree = &tree
		}
	}
	return &repo, nil
}
