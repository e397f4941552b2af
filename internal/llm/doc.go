// Package llm provides language model clients for the analysis pipeline.
// It supports multiple inference providers including OpenAI and Anthropic,
// with rate limiting and response caching.
package llm
