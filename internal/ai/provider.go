package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderGemini   = "gemini"
	ProviderDeepSeek = "deepseek"
)

// RequestTimeout bounds a single model call for every provider.
const RequestTimeout = 90 * time.Second

// Article is the minimal description of a story sent to the model.
type Article struct {
	Title       string
	Source      string
	Description string
	URL         string
}

// Provider is the interface every model backend implements. Generate builds
// the provider-specific request for an article and returns the raw model text.
type Provider interface {
	Name() string  // "gemini" or "deepseek"
	Model() string // e.g. "gemini-2.0-flash"
	Generate(ctx context.Context, a Article) (string, error)
}

// Options carries credentials and overrides for all providers; only the
// fields of the selected provider are used.
type Options struct {
	GeminiAPIKey    string
	GeminiModel     string
	GeminiBaseURL   string
	DeepSeekAPIKey  string
	DeepSeekModel   string
	DeepSeekBaseURL string
}

// NewProvider returns the backend registered under name. The empty name
// selects Gemini.
func NewProvider(name string, opts Options) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderGemini:
		return NewGeminiProvider(opts.GeminiAPIKey, opts.GeminiModel, opts.GeminiBaseURL), nil
	case ProviderDeepSeek:
		return NewDeepSeekProvider(opts.DeepSeekAPIKey, opts.DeepSeekModel, opts.DeepSeekBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (want %q or %q)", name, ProviderGemini, ProviderDeepSeek)
	}
}
