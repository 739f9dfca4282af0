// Package llm abstracts language-model providers behind one interface.
//
// A Provider variant is resolved exactly once from configuration; call
// sites never branch on provider name strings. Chat generation itself
// is deliberately thin: the tutoring prompts live with the callers.
package llm

import (
	"context"
	"fmt"

	"github.com/tutorkit/tutorkit/internal/model"
)

// ChatMessage is one turn of a conversation sent to a provider.
type ChatMessage struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// ChatRequest carries one chat completion call.
type ChatRequest struct {
	System   string
	Messages []ChatMessage
}

// Provider is implemented once per endpoint variant.
type Provider interface {
	// Name identifies the variant for logs.
	Name() string

	// SendChat performs one blocking chat completion and returns the
	// assistant's reply text. Errors are returned, never dropped into a
	// detached task.
	SendChat(ctx context.Context, req ChatRequest) (string, error)
}

const (
	defaultMaxTokens   = 1024
	defaultTemperature = 0.7
)

// New resolves a Provider from configuration. This is the only place
// provider names are interpreted.
func New(cfg *model.ProviderConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("provider config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	switch cfg.Provider {
	case "anthropic":
		return newAnthropicProvider(cfg.APIKey, cfg.Model, maxTokens, temperature), nil
	case "openai-compatible":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("base_url is required for openai-compatible provider")
		}
		return newOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, maxTokens, temperature), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
