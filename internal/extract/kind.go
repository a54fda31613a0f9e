package extract

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Kind identifies the content kind of a file, inferred from its extension.
// Each kind carries its own ordered pattern table; new kinds can be added
// through Register without touching the extractor itself.
type Kind string

// Built-in content kinds.
const (
	KindPython     Kind = "python"
	KindJavaScript Kind = "javascript"
	KindTypeScript Kind = "typescript"
	KindGo         Kind = "go"
	KindJava       Kind = "java"
	KindRuby       Kind = "ruby"
	KindUnknown    Kind = "unknown"
)

// Pattern is one structural declaration pattern. The expression must capture
// the declared identifier in group 1.
type Pattern struct {
	Label string
	Expr  *regexp.Regexp
}

var (
	registryMu sync.RWMutex
	registry   = map[Kind][]Pattern{}
)

// Register installs the ordered pattern table for a kind, replacing any
// previous table. Safe for concurrent use.
func Register(kind Kind, patterns []Pattern) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = patterns
}

// patternsFor returns the table for kind. Unknown kinds fall back to the
// JavaScript table, the most permissive of the built-ins.
func patternsFor(kind Kind) []Pattern {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if p, ok := registry[kind]; ok {
		return p
	}
	return registry[KindJavaScript]
}

// KindForPath infers the content kind from a file path's extension.
func KindForPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return KindPython
	case ".js", ".jsx", ".mjs":
		return KindJavaScript
	case ".ts", ".tsx":
		return KindTypeScript
	case ".go":
		return KindGo
	case ".java":
		return KindJava
	case ".rb":
		return KindRuby
	default:
		return KindUnknown
	}
}

func init() {
	Register(KindPython, []Pattern{
		{"function", regexp.MustCompile(`^\s*def\s+([A-Za-z_]\w*)\s*\(`)},
		{"class", regexp.MustCompile(`^\s*class\s+([A-Za-z_]\w*)`)},
		{"async function", regexp.MustCompile(`^\s*async\s+def\s+([A-Za-z_]\w*)\s*\(`)},
	})

	jsPatterns := []Pattern{
		{"function", regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`)},
		{"class", regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?class\s+([A-Za-z_$][\w$]*)`)},
		{"async function", regexp.MustCompile(`^\s*(?:export\s+)?async\s+function\s*\*?\s*([A-Za-z_$][\w$]*)\s*\(`)},
		{"method", regexp.MustCompile(`^\s*([A-Za-z_$][\w$]*)\s*\([^)]*\)\s*\{\s*$`)},
		{"arrow", regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s+)?(?:\([^)]*\)|[A-Za-z_$][\w$]*)\s*=>`)},
	}
	Register(KindJavaScript, jsPatterns)
	Register(KindTypeScript, jsPatterns)

	Register(KindGo, []Pattern{
		{"function", regexp.MustCompile(`^\s*func\s+(?:\([^)]+\)\s*)?([A-Za-z_]\w*)\s*\(`)},
		{"type", regexp.MustCompile(`^\s*type\s+([A-Za-z_]\w*)\s+(?:struct|interface)\b`)},
	})

	Register(KindJava, []Pattern{
		{"method", regexp.MustCompile(`^\s*(?:public|protected|private)\s+(?:static\s+)?(?:final\s+)?[\w<>\[\],\s]+\s+(\w+)\s*\([^)]*\)\s*\{`)},
		{"class", regexp.MustCompile(`^\s*(?:public\s+)?(?:abstract\s+|final\s+)?(?:class|interface|enum)\s+(\w+)`)},
	})

	Register(KindRuby, []Pattern{
		{"function", regexp.MustCompile(`^\s*def\s+(?:self\.)?([A-Za-z_]\w*[?!]?)`)},
		{"class", regexp.MustCompile(`^\s*(?:class|module)\s+([A-Z]\w*)`)},
	})
}
