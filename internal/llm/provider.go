// Package llm provides the pluggable text-generation backends and the
// narrative generation machinery built on top of them.
package llm

import (
	"context"
	"fmt"

	"github.com/edualytics/student-intel/pkg/config"
	appErrors "github.com/edualytics/student-intel/pkg/errors"
)

// Supported backend names.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderOllama   = "ollama"
)

// Request is one text-generation call: a system prompt, a user prompt, and
// the sampling temperature for the call site.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
}

// Generator is a single interchangeable text-generation backend. Calls are
// blocking network operations; implementations must honor context
// cancellation. Backends are assumed idempotent but not deterministic.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// New resolves the backend named in the configuration. Selection is explicit
// and happens at construction time; an unknown or unconfigured provider fails
// fast before any network attempt.
func New(cfg config.LLMConfig) (Generator, error) {
	return NewNamed(cfg, cfg.Provider)
}

// NewNamed resolves a specific backend by name, ignoring cfg.Provider. Used
// by the live endpoint where callers choose the backend per request.
func NewNamed(cfg config.LLMConfig, provider string) (Generator, error) {
	switch provider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, appErrors.Clone(appErrors.ErrUnsupportedBackend, "openai backend requires OPENAI_API_KEY")
		}
		return newOpenAI(ProviderOpenAI, cfg.OpenAIAPIKey, "", cfg.OpenAIModel, cfg.MaxTokens), nil
	case ProviderDeepSeek:
		if cfg.DeepSeekAPIKey == "" {
			return nil, appErrors.Clone(appErrors.ErrUnsupportedBackend, "deepseek backend requires DEEPSEEK_API_KEY")
		}
		return newOpenAI(ProviderDeepSeek, cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL, cfg.DeepSeekModel, cfg.MaxTokens), nil
	case ProviderOllama:
		return newOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.RequestTimeout), nil
	default:
		return nil, appErrors.Clone(appErrors.ErrUnsupportedBackend,
			fmt.Sprintf("unsupported narrative backend: %q", provider))
	}
}
