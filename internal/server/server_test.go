// ABOUTME: Tests for the REST surface: health, providers, export, conversations.
// ABOUTME: Uses a real in-memory store and scripted provider clients.

package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgaia/gaia-gateway/internal/chat"
	"github.com/agentgaia/gaia-gateway/internal/conversation"
	"github.com/agentgaia/gaia-gateway/internal/llm"
	"github.com/agentgaia/gaia-gateway/internal/store"
	"github.com/agentgaia/gaia-gateway/internal/usage"
)

// echoClient streams back a fixed response.
type echoClient struct {
	name     string
	response string
}

func (e *echoClient) Name() string { return e.name }

func (e *echoClient) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	out := make(chan llm.StreamChunk, 1)
	out <- llm.StreamChunk{Content: e.response}
	close(out)
	return out, nil
}

type flatRates struct{}

func (flatRates) Rate(ctx context.Context, model string) usage.Rate {
	return usage.DefaultRate
}

type testEnv struct {
	server   *Server
	pipeline *chat.Pipeline
	registry *chat.Registry
	repo     store.Store
	http     *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.Default()

	repo, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	router := llm.NewRouter([]string{"claude", "openai"}, logger)
	router.Register(llm.ProviderConfig{Name: "claude", Model: "claude-model"}, &echoClient{name: "claude", response: "hello from claude"})
	router.Register(llm.ProviderConfig{Name: "openai", Model: "openai-model"}, &echoClient{name: "openai", response: "hello from openai"})

	pipeline := chat.NewPipeline(chat.PipelineConfig{
		Router:    router,
		Assembler: chat.NewAssembler(chat.NewInMemoryAttachments(), logger),
		Tracker:   usage.NewTracker(flatRates{}, logger),
		Log:       conversation.NewLog(50),
		Repo:      repo,
		Logger:    logger,
	})
	registry := chat.NewRegistry(pipeline, logger)

	srv := New(Config{
		HTTPAddr: "127.0.0.1:0",
		Registry: registry,
		Pipeline: pipeline,
		Router:   router,
		Repo:     repo,
		Chain:    []string{"claude", "openai"},
		Models:   map[string]string{"claude": "claude-model", "openai": "openai-model"},
		Logger:   logger,
	})

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: srv, pipeline: pipeline, registry: registry, repo: repo, http: ts}
}

func getJSON(t *testing.T, url string, into any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t)

	var body struct {
		Status             string   `json:"status"`
		ConnectedProviders []string `json:"connected_providers"`
	}
	resp := getJSON(t, env.http.URL+"/api/v1/health", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body.Status)
	assert.Empty(t, body.ConnectedProviders)
}

func TestServer_Providers(t *testing.T) {
	env := newTestEnv(t)

	var body struct {
		Providers   []string          `json:"providers"`
		Models      map[string]string `json:"models"`
		BackupChain []string          `json:"backup_chain"`
	}
	resp := getJSON(t, env.http.URL+"/api/v1/providers", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"claude", "openai"}, body.Providers)
	assert.Equal(t, "claude-model", body.Models["claude"])
	assert.Equal(t, []string{"claude", "openai"}, body.BackupChain)
}

func TestServer_Export_EmptyConversation(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.http.URL + "/api/v1/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Export_Markdown(t *testing.T) {
	env := newTestEnv(t)

	// Drive one turn so the log has content.
	session := &chat.Session{ID: "claude_test", Provider: "claude", Conn: discardConn{}}
	env.pipeline.RunTurn(context.Background(), session, "say hello", 1, nil)

	resp, err := http.Get(env.http.URL + "/api/v1/export?format=markdown")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/markdown", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "## User")
	assert.Contains(t, string(body), "say hello")
	assert.Contains(t, string(body), "## Assistant")
	assert.Contains(t, string(body), "hello from claude")
}

func TestServer_Conversations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	conv := &store.Conversation{Title: "persisted"}
	require.NoError(t, env.repo.CreateConversation(ctx, conv))

	var list struct {
		Conversations []struct {
			ID    string
			Title string
		} `json:"conversations"`
	}
	resp := getJSON(t, env.http.URL+"/api/v1/conversations", &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, "persisted", list.Conversations[0].Title)

	resp, err := http.Get(env.http.URL + "/api/v1/conversations/" + conv.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.http.URL + "/api/v1/conversations/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, env.http.URL+"/api/v1/conversations/"+conv.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// discardConn swallows events; the connection never closes.
type discardConn struct{}

func (discardConn) Send(ctx context.Context, v any) error { return nil }
func (discardConn) IsOpen() bool                          { return true }
