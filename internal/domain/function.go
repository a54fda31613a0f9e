package domain

import (
	"strings"
	"time"
)

// FunctionRecord is one extracted function span with its generated summary.
// Records belong to a repository via SourceURL and are replaced as a whole
// generation whenever that repository is re-processed.
type FunctionRecord struct {
	ID           string    `json:"id"               db:"id"`
	SourceURL    string    `json:"source_url"       db:"source_url"`
	FilePath     string    `json:"file_path"        db:"file_path"`
	FunctionName string    `json:"function_name"    db:"function_name"`
	Code         string    `json:"function_code"    db:"code"`
	Summary      string    `json:"function_summary" db:"summary"`
	Keywords     string    `json:"-"                db:"keywords"`
	CreatedAt    time.Time `json:"created_at"       db:"created_at"`
}

// DeriveKeywords builds the lowercased keyword text used by keyword search:
// the function name plus its summary, lowercased and whitespace-normalized.
func DeriveKeywords(name, summary string) string {
	return strings.Join(strings.Fields(strings.ToLower(name+" "+summary)), " ")
}

// SourceFile is one fetched file: a relative path and its text content.
type SourceFile struct {
	Path string `json:"path"`
	Text string `json:"text"`
}
