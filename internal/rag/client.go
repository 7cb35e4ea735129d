// ABOUTME: HTTP client for the external vector search service
// ABOUTME: All failures produce an unsuccessful response, never a dead turn

package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Result is a single retrieved document.
type Result struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Response is the outcome of one retrieval.
type Response struct {
	Success          bool
	Results          []Result
	Query            string
	Collection       string
	ProcessingTimeMS float64
	Error            string
}

// Config controls retrieval behavior.
type Config struct {
	Enabled        bool
	SearchURL      string
	CollectionName string
	SearchLimit    int
	ScoreThreshold float64
}

// Client talks to the vector search service over HTTP.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a retrieval client.
func NewClient(config Config, logger *slog.Logger) *Client {
	if config.SearchLimit <= 0 {
		config.SearchLimit = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "rag"),
	}
}

// Enabled reports whether retrieval is configured on.
func (c *Client) Enabled() bool {
	return c.config.Enabled
}

type searchRequest struct {
	CollectionName string  `json:"collection_name"`
	QueryText      string  `json:"query_text"`
	Limit          int     `json:"limit"`
	ScoreThreshold float64 `json:"score_threshold"`
}

type searchItem struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type searchResponse struct {
	Success          bool         `json:"success"`
	Results          []searchItem `json:"results"`
	ProcessingTimeMS float64      `json:"processing_time_ms"`
	Error            string       `json:"error"`
}

// Search retrieves documents similar to the query. It never returns a
// Go error: failures come back as an unsuccessful Response so the turn
// proceeds without context.
func (c *Client) Search(ctx context.Context, query string) *Response {
	resp := &Response{
		Query:      query,
		Collection: c.config.CollectionName,
	}
	if !c.config.Enabled {
		resp.Error = "retrieval is disabled"
		return resp
	}

	body, err := json.Marshal(searchRequest{
		CollectionName: c.config.CollectionName,
		QueryText:      query,
		Limit:          c.config.SearchLimit,
		ScoreThreshold: c.config.ScoreThreshold,
	})
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.SearchURL+"/api/search", bytes.NewReader(body))
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("retrieval request failed", "query", truncate(query, 50), "error", err)
		resp.Error = err.Error()
		return resp
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		c.logger.Error("retrieval service returned error status",
			"query", truncate(query, 50),
			"status", httpResp.StatusCode)
		resp.Error = fmt.Sprintf("search API error: %d", httpResp.StatusCode)
		return resp
	}

	var payload searchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&payload); err != nil {
		c.logger.Error("retrieval response decode failed", "error", err)
		resp.Error = err.Error()
		return resp
	}
	if !payload.Success {
		if payload.Error == "" {
			payload.Error = "unknown error"
		}
		resp.Error = payload.Error
		return resp
	}

	for _, item := range payload.Results {
		resp.Results = append(resp.Results, Result{
			ID:       item.ID,
			Score:    item.Score,
			Content:  contentFromPayload(item.Payload),
			Metadata: item.Payload,
		})
	}

	resp.Success = true
	resp.ProcessingTimeMS = payload.ProcessingTimeMS
	c.logger.Info("retrieval completed",
		"query", truncate(query, 50),
		"collection", resp.Collection,
		"results", len(resp.Results))
	return resp
}

// contentFromPayload pulls document text out of the stored payload,
// trying the field names collections commonly use.
func contentFromPayload(payload map[string]any) string {
	for _, key := range []string{"content", "text", "chunk", "document"} {
		if value, ok := payload[key].(string); ok && value != "" {
			return value
		}
	}
	return fmt.Sprintf("%v", payload)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
