// ABOUTME: Provider client interface and shared streaming types
// ABOUTME: Defines ChatRequest, StreamChunk, and the provider registry config

package llm

import (
	"context"
	"errors"
)

// ErrUnknownProvider is returned when a logical provider name has no
// registered configuration.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrChainExhausted is returned when the primary and every backup
// provider have failed for one turn.
var ErrChainExhausted = errors.New("all backup providers failed")

// ErrRateLimited marks a transient backend rejection. Calls failing with
// it are retried with bounded exponential backoff before the fallback
// chain is consulted.
var ErrRateLimited = errors.New("rate limited")

// StreamChunk is one unit of streamed provider output. A chunk with a
// non-nil Err terminates the stream; the channel is closed after the
// final chunk either way.
type StreamChunk struct {
	Content string
	Err     error
}

// ChatRequest is the provider-independent form of one streaming call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Client is a streaming chat backend. Implementations close the returned
// channel when the stream ends, and surface mid-stream failures as a
// final chunk carrying Err.
type Client interface {
	Name() string
	StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}

// ProviderConfig holds the resolved backend configuration for one
// logical provider name.
type ProviderConfig struct {
	Name        string
	Model       string
	Temperature float64
	MaxTokens   int

	// Cost per 1,000 tokens in USD, used as the config-level fallback
	// when the rate table has no entry for the model.
	CostPer1KInput  float64
	CostPer1KOutput float64
}
