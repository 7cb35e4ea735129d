// ABOUTME: Mutex-guarded conversation log shared by all provider sessions
// ABOUTME: Append-only with head truncation once the configured cap is exceeded

package conversation

import (
	"sync"

	"github.com/agentgaia/gaia-gateway/internal/llm"
)

// DefaultCap is the default maximum number of retained messages.
const DefaultCap = 50

// Log is the ordered message sequence for one logical conversation.
// All providers in the conversation share a single Log by reference;
// mutation is serialized by an internal mutex so concurrent turns from
// different provider sessions cannot corrupt ordering.
type Log struct {
	mu       sync.RWMutex
	messages []llm.Message
	cap      int
}

// NewLog creates a log bounded to the given cap. A cap of zero or less
// falls back to DefaultCap.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Log{cap: capacity}
}

// Append adds a message to the tail, then truncates from the head so
// the log never exceeds its cap.
func (l *Log) Append(msg llm.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = append(l.messages, msg)
	if len(l.messages) > l.cap {
		excess := len(l.messages) - l.cap
		l.messages = append([]llm.Message(nil), l.messages[excess:]...)
	}
}

// Snapshot returns a copy of the current ordered sequence for read-only
// use while building a provider request.
func (l *Log) Snapshot() []llm.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]llm.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Replace swaps the entire contents atomically. Used when rehydrating a
// stored conversation.
func (l *Log) Replace(msgs []llm.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(msgs) > l.cap {
		msgs = msgs[len(msgs)-l.cap:]
	}
	l.messages = append([]llm.Message(nil), msgs...)
}

// Clear empties the sequence atomically with respect to concurrent
// appends.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}

// Len returns the current number of retained messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}
