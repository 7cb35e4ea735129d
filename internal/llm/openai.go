// ABOUTME: Streaming OpenAI chat client built on sashabaranov/go-openai
// ABOUTME: Multimodal turns are sent as MultiContent parts with data URLs

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient streams chat completions from OpenAI (or any
// OpenAI-compatible endpoint via baseURL).
type OpenAIClient struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAIClient creates a client. Pass empty baseURL for the
// production endpoint.
func NewOpenAIClient(apiKey, baseURL string, logger *slog.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		logger: logger.With("component", "openai"),
	}
}

// Name returns the backend identifier.
func (c *OpenAIClient) Name() string { return "openai" }

// StreamChat opens a streaming chat completion and relays deltas.
func (c *OpenAIClient) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, convertOpenAIMessage(msg))
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: openai: %v", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("opening completion stream: %w", err)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					out <- StreamChunk{Err: fmt.Errorf("receiving stream: %w", err)}
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- StreamChunk{Content: delta}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// convertOpenAIMessage maps the shared message model to the OpenAI
// format, expanding multimodal content into MultiContent parts.
func convertOpenAIMessage(msg Message) openai.ChatCompletionMessage {
	role := string(msg.Role)

	content, ok := msg.Content.(MultimodalContent)
	if !ok {
		return openai.ChatCompletionMessage{Role: role, Content: msg.Content.PlainText()}
	}

	parts := make([]openai.ChatMessagePart, 0, 1+len(content.Images))
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: content.Text,
	})
	for _, img := range content.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Data),
			},
		})
	}
	return openai.ChatCompletionMessage{Role: role, MultiContent: parts}
}
