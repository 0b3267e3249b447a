package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/sleuth-ai/sleuth/internal/config"
)

// NewClient creates a new OpenAI-compatible client
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(clientCfg)
}

// NewClientWithKey builds a client for a caller-supplied API key, keeping the
// configured base URL. Used when the browser provides its own credential.
func NewClientWithKey(cfg config.LLMConfig, apiKey string) *openai.Client {
	cfg.APIKey = apiKey
	return NewClient(cfg)
}
