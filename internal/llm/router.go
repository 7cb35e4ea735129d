// ABOUTME: Resolves logical provider names and drives one streaming turn
// ABOUTME: Falls forward through the configured backup chain on backend failure

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// TurnEventType discriminates events produced while driving one turn.
type TurnEventType int

const (
	// TurnChunk carries one piece of streamed text.
	TurnChunk TurnEventType = iota
	// TurnSwitch reports a fallback transition to a backup provider.
	TurnSwitch
	// TurnFailed is terminal: the chain is exhausted or the turn is
	// otherwise unrecoverable. No further events follow.
	TurnFailed
)

// TurnEvent is one ordered event from a streaming turn. Provider always
// names the backend that produced the event.
type TurnEvent struct {
	Type     TurnEventType
	Provider string

	// TurnChunk
	Chunk string

	// TurnSwitch
	From   string
	To     string
	Reason string

	// TurnFailed
	Err error
}

// Router maps logical provider names to backend clients and implements
// the forward-only backup chain. Registration happens at startup; after
// that the router is read-only and safe for concurrent turns.
type Router struct {
	mu      sync.RWMutex
	configs map[string]ProviderConfig
	clients map[string]Client
	chain   []string
	retry   RetryPolicy
	logger  *slog.Logger
}

// NewRouter creates a Router with the given backup chain. Pass nil
// logger for the default.
func NewRouter(chain []string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		configs: make(map[string]ProviderConfig),
		clients: make(map[string]Client),
		chain:   chain,
		retry:   DefaultRetryPolicy,
		logger:  logger.With("component", "router"),
	}
}

// Register adds a provider configuration and its backend client.
func (r *Router) Register(cfg ProviderConfig, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.clients[cfg.Name] = client
	r.logger.Info("provider registered", "provider", cfg.Name, "model", cfg.Model)
}

// SetRetryPolicy overrides the transient-error retry policy.
func (r *Router) SetRetryPolicy(p RetryPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retry = p
}

// Resolve returns the configuration for a logical provider name.
func (r *Router) Resolve(name string) (ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[name]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return cfg, nil
}

// Providers returns the registered provider names, sorted.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chain returns the configured backup chain order.
func (r *Router) Chain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.chain))
	copy(out, r.chain)
	return out
}

// NextBackup returns the provider after failed in the chain. The chain
// is consumed forward-only: a provider earlier in the chain is never
// revisited, and there is no wrap-around. A failed provider not present
// in the chain yields the chain's first entry.
func NextBackup(failed string, chain []string) (string, bool) {
	idx := -1
	for i, name := range chain {
		if name == failed {
			idx = i
			break
		}
	}
	if idx+1 >= len(chain) {
		return "", false
	}
	return chain[idx+1], true
}

// StreamTurn opens a streaming call against the named provider and
// returns an ordered event channel for the whole turn, including any
// fallback transitions. The returned error is non-nil only for failures
// detected before any network activity (unknown provider).
//
// Cancel ctx to abandon the turn; the channel is closed without a
// terminal event in that case.
func (r *Router) StreamTurn(ctx context.Context, provider string, msgs []Message) (<-chan TurnEvent, error) {
	if _, err := r.Resolve(provider); err != nil {
		return nil, err
	}

	out := make(chan TurnEvent, 16)
	go r.driveTurn(ctx, provider, msgs, out)
	return out, nil
}

// driveTurn runs the provider call loop: stream the current provider,
// and on failure fall forward through the backup chain with the same
// message set. Chunks already emitted by a failed provider are not
// retracted; the caller accumulates across the transition.
func (r *Router) driveTurn(ctx context.Context, provider string, msgs []Message, out chan<- TurnEvent) {
	defer close(out)

	current := provider
	for {
		stream, err := r.openStream(ctx, current, msgs)
		if err == nil {
			err = r.relay(ctx, current, stream, out)
			if err == nil {
				return // stream completed cleanly
			}
		}

		if ctx.Err() != nil {
			return // turn abandoned, no terminal event
		}

		next, ok := r.nextUsable(current)
		if !ok {
			r.logger.Error("provider chain exhausted",
				"provider", current,
				"error", err)
			r.emit(ctx, out, TurnEvent{
				Type:     TurnFailed,
				Provider: current,
				Err:      fmt.Errorf("%w: last error from %s: %v", ErrChainExhausted, current, err),
			})
			return
		}

		r.logger.Warn("provider failed, switching to backup",
			"failed", current,
			"backup", next,
			"error", err)
		r.emit(ctx, out, TurnEvent{
			Type:     TurnSwitch,
			Provider: next,
			From:     current,
			To:       next,
			Reason:   err.Error(),
		})
		current = next
	}
}

// nextUsable walks the chain forward from failed until it finds a
// registered provider.
func (r *Router) nextUsable(failed string) (string, bool) {
	chain := r.Chain()
	current := failed
	for {
		next, ok := NextBackup(current, chain)
		if !ok {
			return "", false
		}
		if _, err := r.Resolve(next); err == nil {
			return next, true
		}
		r.logger.Warn("skipping unregistered backup provider", "provider", next)
		current = next
	}
}

// openStream resolves the provider and opens the backend call, retrying
// transient errors per the retry policy.
func (r *Router) openStream(ctx context.Context, name string, msgs []Message) (<-chan StreamChunk, error) {
	cfg, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	client := r.clients[name]
	retry := r.retry
	r.mu.RUnlock()

	req := ChatRequest{
		Model:       cfg.Model,
		Messages:    msgs,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	var stream <-chan StreamChunk
	err = retry.Do(ctx, r.logger, func() error {
		var openErr error
		stream, openErr = client.StreamChat(ctx, req)
		return openErr
	})
	if err != nil {
		return nil, fmt.Errorf("opening stream to %s: %w", name, err)
	}
	return stream, nil
}

// relay forwards chunks from one provider stream to the turn channel.
// Returns nil when the stream closes cleanly, or the stream's error.
func (r *Router) relay(ctx context.Context, provider string, stream <-chan StreamChunk, out chan<- TurnEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-stream:
			if !ok {
				return nil
			}
			if chunk.Err != nil {
				return chunk.Err
			}
			if chunk.Content == "" {
				continue
			}
			r.emit(ctx, out, TurnEvent{
				Type:     TurnChunk,
				Provider: provider,
				Chunk:    chunk.Content,
			})
		}
	}
}

func (r *Router) emit(ctx context.Context, out chan<- TurnEvent, ev TurnEvent) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
