// ABOUTME: Tests for the retrieval client and context formatting.
// ABOUTME: Failures must degrade to unsuccessful responses, never errors.

package rag

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		Enabled:        true,
		SearchURL:      srv.URL,
		CollectionName: "docs",
		SearchLimit:    5,
		ScoreThreshold: 0.5,
	}, slog.Default())
}

func TestClient_Search_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "docs", req.CollectionName)
		assert.Equal(t, "how do goroutines work", req.QueryText)
		assert.Equal(t, 5, req.Limit)

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"results": []map[string]any{
				{"id": "doc-1", "score": 0.92, "payload": map[string]any{"content": "goroutines are lightweight"}},
				{"id": "doc-2", "score": 0.81, "payload": map[string]any{"text": "scheduled by the runtime"}},
			},
			"processing_time_ms": 12.5,
		})
	})

	resp := client.Search(context.Background(), "how do goroutines work")

	require.True(t, resp.Success)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "doc-1", resp.Results[0].ID)
	assert.Equal(t, "goroutines are lightweight", resp.Results[0].Content)
	// Content falls back through common payload field names.
	assert.Equal(t, "scheduled by the runtime", resp.Results[1].Content)
	assert.Equal(t, 12.5, resp.ProcessingTimeMS)
}

func TestClient_Search_Disabled(t *testing.T) {
	client := NewClient(Config{Enabled: false}, slog.Default())

	resp := client.Search(context.Background(), "query")
	assert.False(t, resp.Success)
	assert.Empty(t, resp.Results)
}

func TestClient_Search_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	resp := client.Search(context.Background(), "query")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "500")
}

func TestClient_Search_UnsuccessfulPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "collection missing"})
	})

	resp := client.Search(context.Background(), "query")
	assert.False(t, resp.Success)
	assert.Equal(t, "collection missing", resp.Error)
}

func TestClient_Search_Unreachable(t *testing.T) {
	client := NewClient(Config{
		Enabled:        true,
		SearchURL:      "http://127.0.0.1:1",
		CollectionName: "docs",
	}, slog.Default())

	resp := client.Search(context.Background(), "query")
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestFormatContext(t *testing.T) {
	results := []Result{
		{Score: 0.9, Content: "first document"},
		{Score: 0.7, Content: "second document"},
	}

	got := FormatContext(results, 4000)
	assert.Contains(t, got, "### Related documents")
	assert.Contains(t, got, "[Document 1] (score: 0.90)")
	assert.Contains(t, got, "first document")
	assert.Contains(t, got, "[Document 2] (score: 0.70)")
}

func TestFormatContext_RespectsBudget(t *testing.T) {
	results := []Result{
		{Score: 0.9, Content: strings.Repeat("a", 100)},
		{Score: 0.8, Content: strings.Repeat("b", 100)},
		{Score: 0.7, Content: strings.Repeat("c", 100)},
	}

	// The budget fits the first entry only; later entries drop whole.
	got := FormatContext(results, 150)
	assert.Contains(t, got, "aaa")
	assert.NotContains(t, got, "bbb")
	assert.NotContains(t, got, "ccc")
}

func TestFormatContext_Empty(t *testing.T) {
	assert.Empty(t, FormatContext(nil, 4000))
	assert.Empty(t, FormatContext([]Result{}, 4000))
}
