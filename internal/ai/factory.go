package ai

import "fmt"

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOpenAI    ProviderType = "openai"
	ProviderTypeAnthropic ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string
}

// NewProvider creates a provider based on configuration. Returns
// ErrNoCredential (wrapped) when the API key is missing, which callers
// treat as "run without AI" rather than a fatal error.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Type {
	case ProviderTypeOpenAI:
		return NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	case ProviderTypeAnthropic:
		return NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
