// ABOUTME: Session registry: one live session per provider key, last-connect-wins
// ABOUTME: Dispatches inbound control events and tracks in-flight turn goroutines

package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one live connection registered under a provider key.
type Session struct {
	ID        string
	Provider  string
	Conn      Conn
	CreatedAt time.Time

	mu    sync.Mutex
	turns map[string]context.CancelFunc
}

// addTurn registers a cancel handle for an in-flight turn.
func (s *Session) addTurn(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[id] = cancel
}

// removeTurn drops a finished turn's handle.
func (s *Session) removeTurn(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, id)
}

// cancelTurns cancels every in-flight turn on this session.
func (s *Session) cancelTurns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.turns {
		cancel()
		delete(s.turns, id)
	}
}

// inboundEvent is the superset of fields across all inbound types,
// discriminated by Type.
type inboundEvent struct {
	Type           string   `json:"type"`
	Message        string   `json:"message"`
	MessageID      int64    `json:"message_id"`
	Attachments    []string `json:"attachments"`
	Rating         int      `json:"rating"`
	ConversationID string   `json:"conversation_id"`
}

// Registry owns the live sessions and routes inbound control events to
// the pipeline. At most one session exists per provider key; a new
// connection under the same key evicts the prior mapping without
// closing its socket.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	pipeline *Pipeline
	logger   *slog.Logger
}

// NewRegistry creates a registry over the given pipeline.
func NewRegistry(pipeline *Pipeline, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		pipeline: pipeline,
		logger:   logger.With("component", "registry"),
	}
}

// Connect registers a connection under a provider key and returns its
// session. Any prior session under the same key is evicted.
func (r *Registry) Connect(provider string, conn Conn) *Session {
	session := &Session{
		ID:        provider + "_" + uuid.NewString(),
		Provider:  provider,
		Conn:      conn,
		CreatedAt: time.Now(),
		turns:     make(map[string]context.CancelFunc),
	}

	r.mu.Lock()
	if prior, ok := r.sessions[provider]; ok {
		r.logger.Info("evicting prior session", "provider", provider, "session_id", prior.ID)
	}
	r.sessions[provider] = session
	r.mu.Unlock()

	r.logger.Info("session connected", "provider", provider, "session_id", session.ID)
	return session
}

// Disconnect tears down a session: cancels its in-flight turns, removes
// the mapping, and releases its usage state. A session evicted by a
// newer connection is left alone.
func (r *Registry) Disconnect(session *Session) {
	session.cancelTurns()

	r.mu.Lock()
	if current, ok := r.sessions[session.Provider]; ok && current.ID == session.ID {
		delete(r.sessions, session.Provider)
	}
	r.mu.Unlock()

	r.pipeline.tracker.RemoveSession(session.ID)
	r.logger.Info("session disconnected", "provider", session.Provider, "session_id", session.ID)
}

// ConnectedProviders lists providers with a live session, sorted.
func (r *Registry) ConnectedProviders() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	providers := make([]string, 0, len(r.sessions))
	for provider := range r.sessions {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	return providers
}

// Dispatch routes one inbound event to its handler. Malformed events
// are logged and ignored; unknown types are no-ops. Chat events spawn
// an independently cancellable turn so control events on the same
// connection are serviced while a stream is in flight.
func (r *Registry) Dispatch(ctx context.Context, session *Session, raw []byte) {
	var event inboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		r.logger.Warn("malformed inbound event ignored",
			"provider", session.Provider,
			"error", err)
		return
	}

	switch event.Type {
	case "chat":
		r.startTurn(session, event)
	case "rating":
		r.pipeline.RecordRating(ctx, event.MessageID, session.Provider, event.Rating)
	case "clear_history":
		stats := r.pipeline.ClearHistory(session.ID)
		safeSend(ctx, session.Conn, HistoryClearedEvent{
			Type:     "history_cleared",
			Provider: session.Provider,
			Session:  stats,
		})
	case "load_conversation":
		title, count, err := r.pipeline.LoadConversation(ctx, event.ConversationID)
		if err != nil {
			r.logger.Error("conversation load failed",
				"conversation_id", event.ConversationID,
				"error", err)
			safeSend(ctx, session.Conn, ErrorEvent{
				Type:     "error",
				Provider: session.Provider,
				Error:    "failed to load conversation",
			})
			return
		}
		safeSend(ctx, session.Conn, ConversationLoadedEvent{
			Type:           "conversation_loaded",
			Provider:       session.Provider,
			ConversationID: event.ConversationID,
			Title:          title,
			MessageCount:   count,
		})
	default:
		r.logger.Debug("unknown event type ignored",
			"provider", session.Provider,
			"event_type", event.Type)
	}
}

// startTurn spawns the goroutine driving one turn. The turn's context
// is detached from the read loop so a slow stream never blocks dispatch,
// and its cancel handle is tracked for teardown on disconnect.
func (r *Registry) startTurn(session *Session, event inboundEvent) {
	turnID := uuid.NewString()
	turnCtx, cancel := context.WithCancel(context.Background())
	session.addTurn(turnID, cancel)

	go func() {
		defer cancel()
		defer session.removeTurn(turnID)
		r.pipeline.RunTurn(turnCtx, session, event.Message, event.MessageID, event.Attachments)
	}()
}
