// ABOUTME: Streaming Anthropic Messages API client over net/http SSE
// ABOUTME: Serializes multimodal content as base64 image source blocks

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
)

// AnthropicClient talks to the Anthropic Messages API with streaming.
type AnthropicClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewAnthropicClient creates a client. Pass empty baseURL for the
// production endpoint; tests point it at a local server.
func NewAnthropicClient(apiKey, baseURL string, logger *slog.Logger) *AnthropicClient {
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnthropicClient{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Minute},
		logger:  logger.With("component", "anthropic"),
	}
}

// Name returns the backend identifier.
func (c *AnthropicClient) Name() string { return "anthropic" }

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicContentBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []anthropicContentBlock
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// StreamChat opens a streaming Messages call and relays text deltas.
func (c *AnthropicClient) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	messages, system := convertAnthropicMessages(req.Messages)

	body, err := json.Marshal(anthropicRequest{
		Model:       req.Model,
		Messages:    messages,
		System:      system,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: anthropic: %s", ErrRateLimited, strings.TrimSpace(string(errBody)))
		}
		return nil, fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")

			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				c.logger.Warn("skipping malformed stream event", "error", err)
				continue
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta.Text != "" {
					select {
					case out <- StreamChunk{Content: event.Delta.Text}:
					case <-ctx.Done():
						return
					}
				}
			case "error":
				out <- StreamChunk{Err: fmt.Errorf("anthropic stream error: %s: %s", event.Error.Type, event.Error.Message)}
				return
			case "message_stop":
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			out <- StreamChunk{Err: fmt.Errorf("reading stream: %w", err)}
		}
	}()

	return out, nil
}

// convertAnthropicMessages maps the shared message model to Anthropic's
// format. System messages are lifted into the top-level system field.
func convertAnthropicMessages(msgs []Message) ([]anthropicMessage, string) {
	var system string
	out := make([]anthropicMessage, 0, len(msgs))

	for _, msg := range msgs {
		if msg.Role == RoleSystem {
			system = msg.Content.PlainText()
			continue
		}

		switch content := msg.Content.(type) {
		case MultimodalContent:
			blocks := make([]anthropicContentBlock, 0, 1+len(content.Images))
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: content.Text})
			for _, img := range content.Images {
				blocks = append(blocks, anthropicContentBlock{
					Type: "image",
					Source: &anthropicImageSource{
						Type:      "base64",
						MediaType: img.MimeType,
						Data:      img.Data,
					},
				})
			}
			out = append(out, anthropicMessage{Role: string(msg.Role), Content: blocks})
		default:
			out = append(out, anthropicMessage{Role: string(msg.Role), Content: msg.Content.PlainText()})
		}
	}
	return out, system
}
