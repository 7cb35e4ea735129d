// ABOUTME: Streaming Gemini generateContent client over net/http SSE
// ABOUTME: Maps roles to user/model and inlines images as inline_data parts

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
	"net/url"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient streams responses from the Gemini generateContent API.
type GeminiClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewGeminiClient creates a client. Pass empty baseURL for the
// production endpoint.
func NewGeminiClient(apiKey, baseURL string, logger *slog.Logger) *GeminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Minute},
		logger:  logger.With("component", "gemini"),
	}
}

// Name returns the backend identifier.
func (c *GeminiClient) Name() string { return "gemini" }

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature,omitempty"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiStreamResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// StreamChat opens a streamGenerateContent call and relays text parts.
func (c *GeminiClient) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	gemReq := geminiRequest{Contents: convertGeminiContents(req.Messages)}
	if system := systemText(req.Messages); system != "" {
		gemReq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	gemReq.GenerationConfig.Temperature = req.Temperature
	gemReq.GenerationConfig.MaxOutputTokens = req.MaxTokens

	body, err := json.Marshal(gemReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s",
		c.baseURL, url.PathEscape(req.Model), url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: gemini: %s", ErrRateLimited, strings.TrimSpace(string(errBody)))
		}
		return nil, fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
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

			var chunk geminiStreamResponse
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
				c.logger.Warn("skipping malformed stream event", "error", err)
				continue
			}
			if chunk.Error != nil {
				out <- StreamChunk{Err: fmt.Errorf("gemini stream error: %s: %s", chunk.Error.Status, chunk.Error.Message)}
				return
			}
			for _, cand := range chunk.Candidates {
				for _, part := range cand.Content.Parts {
					if part.Text == "" {
						continue
					}
					select {
					case out <- StreamChunk{Content: part.Text}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			out <- StreamChunk{Err: fmt.Errorf("reading stream: %w", err)}
		}
	}()

	return out, nil
}

// convertGeminiContents maps the shared message model to Gemini's
// contents array. System messages are handled separately via
// systemInstruction; assistant turns use the "model" role.
func convertGeminiContents(msgs []Message) []geminiContent {
	out := make([]geminiContent, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == RoleSystem {
			continue
		}
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}

		var parts []geminiPart
		switch content := msg.Content.(type) {
		case MultimodalContent:
			parts = append(parts, geminiPart{Text: content.Text})
			for _, img := range content.Images {
				parts = append(parts, geminiPart{
					InlineData: &geminiInlineData{MimeType: img.MimeType, Data: img.Data},
				})
			}
		default:
			parts = append(parts, geminiPart{Text: msg.Content.PlainText()})
		}
		out = append(out, geminiContent{Role: role, Parts: parts})
	}
	return out
}

// systemText returns the first system message's text, if any.
func systemText(msgs []Message) string {
	for _, msg := range msgs {
		if msg.Role == RoleSystem {
			return msg.Content.PlainText()
		}
	}
	return ""
}
