package llm

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Provider identifiers
const (
	Gemini   = "gemini"
	DeepSeek = "deepseek"
)

// Provider generates text for a single-turn prompt
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string) (string, error)
	Name() string
}

// ProviderConfig holds the fixed attributes of one provider. It is read once
// at start and not modified afterwards.
type ProviderConfig struct {
	Endpoint        string
	APIKey          string
	Model           string
	Timeout         time.Duration
	Temperature     float64
	MaxOutputTokens int
	TopP            float64
	TopK            int
}

// DefaultGeminiConfig returns the stock Gemini settings without a key
func DefaultGeminiConfig() ProviderConfig {
	return ProviderConfig{
		Endpoint:        "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent",
		Timeout:         30 * time.Second,
		Temperature:     0.2,
		MaxOutputTokens: 8192,
		TopP:            0.95,
		TopK:            40,
	}
}

// DefaultDeepSeekConfig returns the stock DeepSeek settings without a key
func DefaultDeepSeekConfig() ProviderConfig {
	return ProviderConfig{
		Endpoint:        "https://api.deepseek.com/v1/chat/completions",
		Model:           "deepseek-chat",
		Timeout:         60 * time.Second,
		Temperature:     0.1,
		MaxOutputTokens: 4096,
		TopP:            0.95,
	}
}

// Registry resolves providers by case-insensitive id
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[strings.ToLower(p.Name())] = p
	}
	return r
}

// Get returns the provider for id or an UnknownProviderError
func (r *Registry) Get(id string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, &UnknownProviderError{Provider: id}
	}
	return p, nil
}

// Names lists the registered provider ids
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
