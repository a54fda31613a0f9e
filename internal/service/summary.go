package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arturoeanton/go-repo-analyser-ollama/internal/port"
)

// FallbackMarker is the fixed phrase every fallback summary carries. Callers
// can distinguish a placeholder from genuine prose by looking for it.
const FallbackMarker = "[summary unavailable]"

// truncationMarker is appended when oversized input is cut before sending.
const truncationMarker = "\n... [truncated]"

const summarySystemPrompt = `You are a code documentation assistant. Summarize the provided source code in 1-3 plain sentences. Describe what it does, not how it is written. Do not use Markdown.`

// SummaryGateway wraps the summarization collaborator. It truncates oversized
// input and resolves every failure path to a deterministic fallback string;
// Summarize never returns an error.
type SummaryGateway struct {
	ai       port.AIProvider
	maxChars int
}

// NewSummaryGateway creates a gateway over the given provider. ai may be nil,
// in which case every call yields a fallback summary.
func NewSummaryGateway(ai port.AIProvider, maxChars int) *SummaryGateway {
	return &SummaryGateway{ai: ai, maxChars: maxChars}
}

// Summarize produces prose for text, labeled for logging and fallback output.
func (g *SummaryGateway) Summarize(ctx context.Context, text, label string) string {
	length := len(text)

	if g.ai == nil {
		return fallbackSummary(label, length, "no summarization backend configured")
	}

	input := text
	if length > g.maxChars {
		input = text[:g.maxChars] + truncationMarker
	}

	summary, err := g.ai.Chat(ctx, summarySystemPrompt, input, nil)
	if err != nil {
		slog.Warn("summarization failed", "label", label, "error", err)
		return fallbackSummary(label, length, err.Error())
	}
	if strings.TrimSpace(summary) == "" {
		return fallbackSummary(label, length, "empty response")
	}
	return strings.TrimSpace(summary)
}

// IsFallbackSummary reports whether s is a placeholder produced by this
// gateway rather than genuine prose.
func IsFallbackSummary(s string) bool {
	return strings.Contains(s, FallbackMarker)
}

func fallbackSummary(label string, length int, reason string) string {
	return fmt.Sprintf("%s %s: content length %d chars (%s)", FallbackMarker, label, length, reason)
}
