// ABOUTME: Tests for token counting, cost computation, and session totals.
// ABOUTME: Session totals must equal the sum of their turn records.

package usage

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentgaia/gaia-gateway/internal/llm"
)

// fixedRates returns the same rate for every model.
type fixedRates struct {
	rate Rate
}

func (f fixedRates) Rate(ctx context.Context, model string) Rate { return f.rate }

func newTestTracker(rate Rate) *Tracker {
	return NewTracker(fixedRates{rate: rate}, slog.Default())
}

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Equal(t, 1, CountTokens("abc"))
	assert.Equal(t, 3, CountTokens("hello world")) // 11 chars / 3
}

func TestCountMessages_AddsPerMessageOverhead(t *testing.T) {
	msgs := []llm.Message{
		llm.NewTextMessage(llm.RoleSystem, "abc"),    // 1 + 4
		llm.NewTextMessage(llm.RoleUser, "abcdef"),   // 2 + 4
		llm.NewTextMessage(llm.RoleAssistant, ""),    // 0 + 4
	}

	assert.Equal(t, 15, CountMessages(msgs))
}

func TestTracker_Track_ComputesCostFromRates(t *testing.T) {
	tracker := newTestTracker(Rate{InputPer1K: 0.01, OutputPer1K: 0.03})

	input := string(make([]byte, 3000))  // 1000 tokens
	output := string(make([]byte, 6000)) // 2000 tokens

	record := tracker.Track(context.Background(), "s1", "claude", "model-x", input, output, nil)

	assert.Equal(t, 1000, record.InputTokens)
	assert.Equal(t, 2000, record.OutputTokens)
	assert.Equal(t, 3000, record.TotalTokens)
	assert.InDelta(t, 0.01, record.InputCost, 1e-9)
	assert.InDelta(t, 0.06, record.OutputCost, 1e-9)
	assert.InDelta(t, 0.07, record.TotalCost, 1e-9)
}

func TestTracker_Track_PrefersMessageListForInput(t *testing.T) {
	tracker := newTestTracker(Rate{InputPer1K: 0.01, OutputPer1K: 0.03})

	msgs := []llm.Message{
		llm.NewTextMessage(llm.RoleSystem, "abc"),
		llm.NewTextMessage(llm.RoleUser, "abc"),
	}

	record := tracker.Track(context.Background(), "s1", "claude", "m", "ignored raw input", "out", msgs)

	// 2 messages: (1 + 4) * 2 = 10 tokens, not the raw input count.
	assert.Equal(t, 10, record.InputTokens)
}

func TestTracker_SessionTotalsAreSumOfRecords(t *testing.T) {
	tracker := newTestTracker(Rate{InputPer1K: 0.01, OutputPer1K: 0.03})
	ctx := context.Background()

	var wantTokens int
	var wantCost float64
	for i := 0; i < 5; i++ {
		record := tracker.Track(ctx, "s1", "claude", "m", "some input text", "some output text", nil)
		wantTokens += record.TotalTokens
		wantCost += record.TotalCost
	}

	session := tracker.Session("s1")
	assert.Equal(t, wantTokens, session.TotalTokens)
	assert.InDelta(t, wantCost, session.TotalCost, 1e-9)
	assert.Equal(t, 5, session.MessageCount)
}

func TestTracker_SessionsAreIsolated(t *testing.T) {
	tracker := newTestTracker(Rate{InputPer1K: 0.01, OutputPer1K: 0.03})
	ctx := context.Background()

	tracker.Track(ctx, "s1", "claude", "m", "input", "output", nil)
	tracker.Track(ctx, "s2", "openai", "m", "input", "output", nil)
	tracker.Track(ctx, "s2", "openai", "m", "input", "output", nil)

	assert.Equal(t, 1, tracker.Session("s1").MessageCount)
	assert.Equal(t, 2, tracker.Session("s2").MessageCount)
}

func TestTracker_ResetSessionZeroesWithoutRemoving(t *testing.T) {
	tracker := newTestTracker(Rate{InputPer1K: 0.01, OutputPer1K: 0.03})
	ctx := context.Background()

	tracker.Track(ctx, "s1", "claude", "m", "input", "output", nil)
	require.NotZero(t, tracker.Session("s1").TotalTokens)

	tracker.ResetSession("s1")

	session := tracker.Session("s1")
	assert.Zero(t, session.TotalTokens)
	assert.Zero(t, session.TotalCost)
	assert.Zero(t, session.MessageCount)

	_, ok := tracker.LastRecord("s1")
	assert.False(t, ok)
}

func TestTracker_RemoveSession(t *testing.T) {
	tracker := newTestTracker(Rate{InputPer1K: 0.01, OutputPer1K: 0.03})
	ctx := context.Background()

	tracker.Track(ctx, "s1", "claude", "m", "input", "output", nil)
	tracker.RemoveSession("s1")

	// A fresh entry appears on next access, starting from zero.
	assert.Zero(t, tracker.Session("s1").MessageCount)
}

func TestTracker_LastRecord(t *testing.T) {
	tracker := newTestTracker(Rate{InputPer1K: 0.01, OutputPer1K: 0.03})
	ctx := context.Background()

	_, ok := tracker.LastRecord("s1")
	assert.False(t, ok)

	tracker.Track(ctx, "s1", "claude", "m", "first", "out", nil)
	tracker.Track(ctx, "s1", "gemini", "m2", "second", "out", nil)

	record, ok := tracker.LastRecord("s1")
	require.True(t, ok)
	assert.Equal(t, "gemini", record.Provider)
	assert.Equal(t, "m2", record.Model)
}
