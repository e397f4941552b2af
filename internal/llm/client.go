package llm

import (
	"context"
	"time"
)

// Client defines the interface for inference providers. Callers bound each
// call with a context deadline; a timed-out call is an ordinary error the
// pipeline absorbs through its fallback policy.
type Client interface {
	Infer(ctx context.Context, prompt string) (string, error)
}

// Config holds configuration for an inference client.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	RateLimit   int
	Temperature float64
	Timeout     time.Duration
	CacheTTL    time.Duration
}
