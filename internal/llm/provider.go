package llm

import (
	"context"
	"time"

	"github.com/ppiankov/scimap/internal/util"
)

// Provider is a chat-style completion backend
type Provider interface {
	// Name returns the provider name
	Name() string

	// Model returns the model completions are requested from
	Model() string

	// Complete sends one system+user exchange and returns the reply text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable probes the backend. A nil error means it is reachable
	// and the configured credentials are accepted.
	IsAvailable(ctx context.Context) error
}

// CompletionRequest is a single system+user exchange
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// CompletionResponse contains the backend's reply
type CompletionResponse struct {
	// Text is the raw reply, untrimmed of fences or prose
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds completion backend configuration
type Config struct {
	// Provider name: "openai", "lmstudio", "anthropic", "ollama"
	Provider string `yaml:"provider" mapstructure:"provider"`

	// Model name (provider-specific)
	Model string `yaml:"model" mapstructure:"model"`

	// APIKey for OpenAI/Anthropic
	APIKey string `yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL for custom endpoints (LM Studio, Ollama, proxies)
	BaseURL string `yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Timeout per request in seconds
	Timeout int `yaml:"timeout" mapstructure:"timeout"`

	// Proxy is copied from the top-level proxy settings
	Proxy util.ProxyConfig `yaml:"-" mapstructure:"-"`
}

// DefaultConfig targets a local LM Studio server
func DefaultConfig() Config {
	return Config{
		Provider: "lmstudio",
		Model:    "local-model",
		BaseURL:  "http://localhost:1234/v1",
		Timeout:  120,
	}
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

func maxTokensOr(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}
