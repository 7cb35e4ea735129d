// ABOUTME: Tests for session registration, eviction, and event dispatch.
// ABOUTME: Malformed and unknown events must be ignored without side effects.

package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *fixture) {
	t.Helper()
	a := &scriptedClient{name: "claude", chunks: []string{"a response"}}
	f := newFixture(t, []string{"claude"}, a)
	return NewRegistry(f.pipeline, nil), f
}

func TestRegistry_ConnectAssignsSessionID(t *testing.T) {
	r, _ := newTestRegistry(t)

	session := r.Connect("claude", newRecordingConn())
	assert.Contains(t, session.ID, "claude_")
	assert.Equal(t, "claude", session.Provider)
	assert.False(t, session.CreatedAt.IsZero())
}

func TestRegistry_LastConnectWins(t *testing.T) {
	r, _ := newTestRegistry(t)

	first := r.Connect("claude", newRecordingConn())
	second := r.Connect("claude", newRecordingConn())
	require.NotEqual(t, first.ID, second.ID)

	assert.Equal(t, []string{"claude"}, r.ConnectedProviders())

	// Disconnecting the evicted session must not remove the newer one.
	r.Disconnect(first)
	assert.Equal(t, []string{"claude"}, r.ConnectedProviders())

	r.Disconnect(second)
	assert.Empty(t, r.ConnectedProviders())
}

func TestRegistry_ConnectedProvidersSorted(t *testing.T) {
	r, _ := newTestRegistry(t)

	r.Connect("openai", newRecordingConn())
	r.Connect("claude", newRecordingConn())
	r.Connect("gemini", newRecordingConn())

	assert.Equal(t, []string{"claude", "gemini", "openai"}, r.ConnectedProviders())
}

func TestRegistry_DispatchMalformedEventIgnored(t *testing.T) {
	r, f := newTestRegistry(t)
	conn := newRecordingConn()
	session := r.Connect("claude", conn)

	r.Dispatch(context.Background(), session, []byte("{not json"))

	assert.Empty(t, conn.Events())
	assert.Zero(t, f.log.Len())
}

func TestRegistry_DispatchUnknownTypeIsNoOp(t *testing.T) {
	r, _ := newTestRegistry(t)
	conn := newRecordingConn()
	session := r.Connect("claude", conn)

	r.Dispatch(context.Background(), session, []byte(`{"type":"teleport"}`))

	assert.Empty(t, conn.Events())
}

func TestRegistry_DispatchClearHistory(t *testing.T) {
	r, f := newTestRegistry(t)
	conn := newRecordingConn()
	session := r.Connect("claude", conn)

	f.pipeline.RunTurn(context.Background(), session, "hello", 1, nil)
	require.NotZero(t, f.log.Len())

	r.Dispatch(context.Background(), session, []byte(`{"type":"clear_history"}`))

	assert.Zero(t, f.log.Len())

	cleared := eventsOfType[HistoryClearedEvent](conn.Events())
	require.Len(t, cleared, 1)
	assert.Zero(t, cleared[0].Session.TotalTokens)
}

func TestRegistry_DispatchChatRunsTurn(t *testing.T) {
	r, f := newTestRegistry(t)
	conn := newRecordingConn()
	session := r.Connect("claude", conn)

	r.Dispatch(context.Background(), session, []byte(`{"type":"chat","message":"hello","message_id":1}`))

	// The turn runs on its own goroutine; wait for completion.
	require.Eventually(t, func() bool {
		return len(eventsOfType[CompleteEvent](conn.Events())) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, f.log.Len())
}

func TestRegistry_DispatchRatingWithoutRepoIsLogged(t *testing.T) {
	r, _ := newTestRegistry(t)
	conn := newRecordingConn()
	session := r.Connect("claude", conn)

	// No repository is configured; the rating is accepted silently.
	r.Dispatch(context.Background(), session, []byte(`{"type":"rating","message_id":7,"rating":5}`))

	assert.Empty(t, conn.Events())
}

func TestRegistry_DisconnectReleasesUsage(t *testing.T) {
	r, f := newTestRegistry(t)
	conn := newRecordingConn()
	session := r.Connect("claude", conn)

	f.pipeline.RunTurn(context.Background(), session, "hello", 1, nil)
	require.NotZero(t, f.tracker.Session(session.ID).TotalTokens)

	r.Disconnect(session)

	// A fresh lookup starts from zero: the entry was removed.
	assert.Zero(t, f.tracker.Session(session.ID).TotalTokens)
}
