// Package mock provides a deterministic test double for port.AIProvider.
// Embeddings are derived from a hash of the input text, so identical input
// always yields the identical vector without any external service.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
)

// Dimension of the vectors the mock produces.
const Dimension = 8

// Provider is a test double for port.AIProvider. Behavior can be overridden
// per call via the function fields; the zero overrides give deterministic
// defaults. Safe for concurrent use.
type Provider struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
	ChatFunc  func(ctx context.Context, systemPrompt, userPrompt string, contextChunks []string) (string, error)

	mu         sync.Mutex
	embedCalls int
	chatCalls  int
}

// NewProvider creates a mock provider with default deterministic behavior.
func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) ModelName() string { return "mock" }

// Embed returns a deterministic unit vector derived from the text's words.
// Texts sharing words produce nearby vectors, which makes similarity
// ordering in tests meaningful.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.embedCalls++
	fn := p.EmbedFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return DeterministicVector(text), nil
}

// EmbedBatch embeds each text in order.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Chat returns a canned response unless ChatFunc is set.
func (p *Provider) Chat(ctx context.Context, systemPrompt, userPrompt string, contextChunks []string) (string, error) {
	p.mu.Lock()
	p.chatCalls++
	fn := p.ChatFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, systemPrompt, userPrompt, contextChunks)
	}
	return "mock summary of: " + firstWords(userPrompt, 8), nil
}

// EmbedCalls reports how many times Embed was invoked.
func (p *Provider) EmbedCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.embedCalls
}

// ChatCalls reports how many times Chat was invoked.
func (p *Provider) ChatCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chatCalls
}

// DeterministicVector maps text to a normalized Dimension-length vector by
// hashing each word into a bucket.
func DeterministicVector(text string) []float32 {
	v := make([]float64, Dimension)
	for _, word := range splitWords(text) {
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%Dimension]++
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	out := make([]float32, Dimension)
	if norm == 0 {
		out[0] = 1
		return out
	}
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

func splitWords(text string) []string {
	var words []string
	start := -1
	for i, r := range text {
		alnum := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if alnum && start < 0 {
			start = i
		}
		if !alnum && start >= 0 {
			words = append(words, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		words = append(words, text[start:])
	}
	return words
}

func firstWords(s string, n int) string {
	words := splitWords(s)
	if len(words) > n {
		words = words[:n]
	}
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}
