package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates a completion backend based on configuration
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "lmstudio", "openai-compatible":
		// local OpenAI-compatible servers accept any key
		if config.APIKey == "" {
			config.APIKey = "lm-studio"
		}
		if config.BaseURL == "" {
			config.BaseURL = DefaultConfig().BaseURL
		}
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, fmt.Errorf("no completion provider configured")

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, lmstudio, anthropic, ollama)", config.Provider)
	}
}
