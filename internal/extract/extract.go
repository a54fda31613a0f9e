package extract

import "strings"

// MaxSpanLines caps how many lines of code one span carries, bounding both
// memory and downstream summarization cost.
const MaxSpanLines = 40

// Span is one candidate function-like declaration found in a file.
type Span struct {
	Name      string
	Code      string
	StartLine int // 1-based line of the matching declaration
}

// reserved holds identifiers the method-shorthand pattern would otherwise
// mistake for declarations (control-flow lines like "if (x) {").
var reserved = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "switch": true,
	"catch": true, "return": true, "function": true, "do": true, "with": true,
}

// Extract scans raw text with the pattern table for kind and returns every
// candidate span. For each physical line the patterns are tried in order and
// the first match wins; a line matching nothing simply yields no candidate.
// Overlapping spans across lines are allowed and are not merged; each span's
// code text is the window from the matching line up to MaxSpanLines or end of
// file. Extraction never fails.
func Extract(text string, kind Kind) []Span {
	if text == "" {
		return nil
	}

	patterns := patternsFor(kind)
	lines := strings.Split(text, "\n")

	var spans []Span
	for i, line := range lines {
		for _, p := range patterns {
			m := p.Expr.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[1]
			if reserved[name] {
				break
			}
			end := i + MaxSpanLines
			if end > len(lines) {
				end = len(lines)
			}
			spans = append(spans, Span{
				Name:      name,
				Code:      strings.Join(lines[i:end], "\n"),
				StartLine: i + 1,
			})
			break
		}
	}
	return spans
}
