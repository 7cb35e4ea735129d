// ABOUTME: Token counting, cost calculation, and per-session usage totals
// ABOUTME: Sessions accumulate by addition only; reset zeroes, removal deletes

package usage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agentgaia/gaia-gateway/internal/llm"
)

// messageOverheadTokens approximates the per-message structural
// overhead added by chat-format framing.
const messageOverheadTokens = 4

// Record is the immutable accounting result of one completed turn.
type Record struct {
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	InputCost    float64
	OutputCost   float64
	TotalCost    float64
}

// SessionUsage is the running total for one session. Mutated by
// addition only.
type SessionUsage struct {
	TotalInputTokens  int
	TotalOutputTokens int
	TotalTokens       int
	TotalCost         float64
	MessageCount      int
}

func (s *SessionUsage) add(r *Record) {
	s.TotalInputTokens += r.InputTokens
	s.TotalOutputTokens += r.OutputTokens
	s.TotalTokens += r.TotalTokens
	s.TotalCost += r.TotalCost
	s.MessageCount++
}

// CountTokens approximates the token count of a text. Roughly 4 chars
// per token for English, 2 for CJK; 3 splits the difference.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(text) / 3
}

// CountMessages approximates the token count of a full outgoing message
// set, including per-message framing overhead.
func CountMessages(msgs []llm.Message) int {
	total := 0
	for _, msg := range msgs {
		total += CountTokens(msg.Content.PlainText())
		total += messageOverheadTokens
	}
	return total
}

// Tracker computes per-turn usage records and owns the per-session
// running totals.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*SessionUsage
	last     map[string]*Record
	rates    RateSource
	logger   *slog.Logger
}

// NewTracker creates a tracker backed by the given rate source.
func NewTracker(rates RateSource, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		sessions: make(map[string]*SessionUsage),
		last:     make(map[string]*Record),
		rates:    rates,
		logger:   logger.With("component", "usage"),
	}
}

// Track computes the usage record for one completed turn and adds it to
// the session's running totals. Input tokens are derived from the full
// outgoing message set when provided (covers conversational overhead),
// otherwise from the raw input text.
func (t *Tracker) Track(ctx context.Context, sessionID, provider, model, inputText, outputText string, msgs []llm.Message) *Record {
	var inputTokens int
	if len(msgs) > 0 {
		inputTokens = CountMessages(msgs)
	} else {
		inputTokens = CountTokens(inputText)
	}
	outputTokens := CountTokens(outputText)

	rate := t.rates.Rate(ctx, model)
	inputCost := float64(inputTokens) / 1000 * rate.InputPer1K
	outputCost := float64(outputTokens) / 1000 * rate.OutputPer1K

	record := &Record{
		Provider:     provider,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    inputCost + outputCost,
	}

	t.mu.Lock()
	session := t.sessions[sessionID]
	if session == nil {
		session = &SessionUsage{}
		t.sessions[sessionID] = session
	}
	session.add(record)
	t.last[sessionID] = record
	sessionCopy := *session
	t.mu.Unlock()

	t.logger.Info("turn usage tracked",
		"session_id", sessionID,
		"provider", provider,
		"model", model,
		"input_tokens", inputTokens,
		"output_tokens", outputTokens,
		"cost", record.TotalCost,
		"session_messages", sessionCopy.MessageCount,
		"session_cost", sessionCopy.TotalCost)

	return record
}

// Session returns a copy of the session's running totals, creating the
// entry if it does not exist yet.
func (t *Tracker) Session(sessionID string) SessionUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	session := t.sessions[sessionID]
	if session == nil {
		session = &SessionUsage{}
		t.sessions[sessionID] = session
	}
	return *session
}

// LastRecord returns the most recent turn record for a session, if any.
func (t *Tracker) LastRecord(sessionID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.last[sessionID]
	if !ok {
		return Record{}, false
	}
	return *record, true
}

// ResetSession zeroes a session's totals without removing the entry.
func (t *Tracker) ResetSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if session, ok := t.sessions[sessionID]; ok {
		*session = SessionUsage{}
	}
	delete(t.last, sessionID)
	t.logger.Info("session usage reset", "session_id", sessionID)
}

// RemoveSession deletes a session's usage state entirely. Called on
// disconnect.
func (t *Tracker) RemoveSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.sessions, sessionID)
	delete(t.last, sessionID)
	t.logger.Debug("session usage removed", "session_id", sessionID)
}
