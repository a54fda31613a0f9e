package domain

import "time"

// Repository represents one indexed source repository. The pair
// (Owner, SourceURL) is the identity key: re-processing the same pair
// updates the existing row, it never creates a second one.
type Repository struct {
	ID         string    `json:"id"          db:"id"`
	Owner      string    `json:"owner"       db:"owner"`
	Name       string    `json:"name"        db:"name"`
	SourceURL  string    `json:"source_url"  db:"source_url"`
	Summary    string    `json:"summary"     db:"summary"`
	Tree       *TreeNode `json:"tree"        db:"tree"`
	IsFavorite bool      `json:"is_favorite" db:"is_favorite"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"  db:"updated_at"`
}

// TreeNode is one node of a repository's tree snapshot.
type TreeNode struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"` // directory, file
	Path     string      `json:"path"`
	Summary  string      `json:"summary,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Tree node type constants.
const (
	TreeNodeDirectory = "directory"
	TreeNodeFile      = "file"
)

// RemoteRepo is a repository listing entry as returned by the remote host.
type RemoteRepo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
	CloneURL    string `json:"clone_url"`
	Language    string `json:"language"`
	Stars       int    `json:"stargazers_count"`
	Forks       int    `json:"forks_count"`
	UpdatedAt   string `json:"updated_at"`
	Private     bool   `json:"private"`
}
