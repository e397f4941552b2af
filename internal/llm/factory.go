package llm

import (
	"fmt"
	"strings"
)

// NewClient creates an inference client for the configured provider, wrapped
// with rate limiting and response caching when those are enabled.
func NewClient(cfg Config) (Client, error) {
	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		client, err = newOpenAIClient(cfg)
	case "anthropic":
		client, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	if cfg.RateLimit > 0 {
		client = &throttledClient{
			inner:   client,
			limiter: newRateLimiter(cfg.RateLimit),
		}
	}
	if cfg.CacheTTL > 0 {
		client = &cachingClient{
			inner: client,
			cache: newResponseCache(cfg.CacheTTL),
		}
	}
	return client, nil
}
