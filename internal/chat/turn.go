// ABOUTME: The turn pipeline: context augmentation, streaming, failover, accounting
// ABOUTME: In-memory history is authoritative; persistence is best-effort

package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentgaia/gaia-gateway/internal/conversation"
	"github.com/agentgaia/gaia-gateway/internal/llm"
	"github.com/agentgaia/gaia-gateway/internal/rag"
	"github.com/agentgaia/gaia-gateway/internal/store"
	"github.com/agentgaia/gaia-gateway/internal/usage"
	"github.com/agentgaia/gaia-gateway/internal/websearch"
)

const titleMaxLen = 50

// PipelineConfig wires the pipeline's collaborators. Repo, RAG, and
// Search are optional; a nil collaborator disables its stage.
type PipelineConfig struct {
	Router       *llm.Router
	Assembler    *Assembler
	Tracker      *usage.Tracker
	Log          *conversation.Log
	Repo         store.Store
	RAG          *rag.Client
	Search       websearch.Service
	SearchMax    int
	SystemPrompt string
	Logger       *slog.Logger
}

// Pipeline drives one turn end to end: augment, append, stream, account.
// It owns the binding between the shared conversation log and its
// durable conversation row.
type Pipeline struct {
	router       *llm.Router
	assembler    *Assembler
	tracker      *usage.Tracker
	log          *conversation.Log
	repo         store.Store
	rag          *rag.Client
	search       websearch.Service
	searchMax    int
	systemPrompt string
	logger       *slog.Logger

	convMu sync.Mutex
	convID string
}

// NewPipeline creates a pipeline from its collaborators.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	searchMax := cfg.SearchMax
	if searchMax <= 0 {
		searchMax = 5
	}
	return &Pipeline{
		router:       cfg.Router,
		assembler:    cfg.Assembler,
		tracker:      cfg.Tracker,
		log:          cfg.Log,
		repo:         cfg.Repo,
		rag:          cfg.RAG,
		search:       cfg.Search,
		searchMax:    searchMax,
		systemPrompt: cfg.SystemPrompt,
		logger:       logger.With("component", "pipeline"),
	}
}

// RunTurn processes one chat event: augments the user text with search
// and retrieval context, appends it to the shared log, streams the
// provider's response back over the session connection, and accounts
// usage on completion. A connection that closes mid-stream abandons the
// turn silently with no assistant message appended.
func (p *Pipeline) RunTurn(ctx context.Context, session *Session, message string, messageID int64, attachments []string) {
	conn := session.Conn
	provider := session.Provider

	if strings.TrimSpace(message) == "" && len(attachments) == 0 {
		safeSend(ctx, conn, ErrorEvent{Type: "error", Provider: provider, Error: "Empty message"})
		return
	}

	// Reject unknown providers before any network or state mutation.
	if _, err := p.router.Resolve(provider); err != nil {
		p.logger.Error("turn rejected", "provider", provider, "error", err)
		safeSend(ctx, conn, ErrorEvent{Type: "error", Provider: provider, Error: err.Error()})
		return
	}

	searchContext := p.webSearchStage(ctx, session, message)
	ragContext := p.retrievalStage(ctx, session, message)

	textForHistory, multimodal := p.assembler.BuildContent(message, attachments)
	textForHistory = PrependContext(ragContext, searchContext, textForHistory)
	if multimodal != nil {
		multimodal.Text = textForHistory
	}

	// History stores the plain-text form only.
	p.log.Append(llm.NewTextMessage(llm.RoleUser, textForHistory))
	outgoing := p.buildOutgoing(multimodal)

	p.persistUserMessage(ctx, session, textForHistory)

	events, err := p.router.StreamTurn(ctx, provider, outgoing)
	if err != nil {
		p.logger.Error("turn failed to start", "provider", provider, "error", err)
		safeSend(ctx, conn, ErrorEvent{Type: "error", Provider: provider, Error: err.Error()})
		return
	}

	actualProvider := provider
	var response strings.Builder

	for event := range events {
		// Abandonment is inferred from connection closure between
		// chunks; nothing from an abandoned turn reaches history.
		if !conn.IsOpen() {
			p.logger.Info("connection closed mid-stream, abandoning turn",
				"provider", provider,
				"session_id", session.ID)
			return
		}

		switch event.Type {
		case llm.TurnChunk:
			actualProvider = event.Provider
			response.WriteString(event.Chunk)
			safeSend(ctx, conn, StreamingEvent{Type: "streaming", Provider: actualProvider, Chunk: event.Chunk})
		case llm.TurnSwitch:
			actualProvider = event.To
			p.logger.Warn("provider failover",
				"from", event.From,
				"to", event.To,
				"reason", event.Reason)
			safeSend(ctx, conn, BackupSwitchEvent{
				Type:             "backup_switch",
				OriginalProvider: event.From,
				BackupProvider:   event.To,
				Reason:           event.Reason,
			})
		case llm.TurnFailed:
			p.logger.Error("turn failed", "provider", actualProvider, "error", event.Err)
			safeSend(ctx, conn, ErrorEvent{Type: "error", Provider: provider, Error: event.Err.Error()})
			return
		}
	}

	full := response.String()
	if full != "" {
		p.log.Append(llm.NewTextMessage(llm.RoleAssistant, full))

		cfg, _ := p.router.Resolve(actualProvider)
		record := p.tracker.Track(ctx, session.ID, actualProvider, cfg.Model, message, full, outgoing)
		p.persistAssistantMessage(ctx, actualProvider, cfg.Model, full, record)

		safeSend(ctx, conn, UsageEvent{
			Type:     "usage",
			Provider: actualProvider,
			Model:    cfg.Model,
			Message:  messageStats(record),
			Session:  sessionStats(p.tracker.Session(session.ID)),
		})
	}

	safeSend(ctx, conn, CompleteEvent{Type: "complete", Provider: actualProvider})
}

// webSearchStage runs search intent detection and, when triggered, the
// search itself. Failures are logged and produce no context; this stage
// is never fatal to the turn.
func (p *Pipeline) webSearchStage(ctx context.Context, session *Session, message string) string {
	if p.search == nil {
		return ""
	}
	intent, query := websearch.DetectIntent(message)
	if !intent || query == "" {
		return ""
	}

	safeSend(ctx, session.Conn, SearchingEvent{Type: "searching", Provider: session.Provider, Query: query})

	resp, err := p.search.Search(ctx, query)
	if err != nil {
		p.logger.Warn("web search failed, continuing without context", "query", query, "error", err)
	}
	if resp == nil {
		resp = &websearch.Response{Query: query}
	}

	safeSend(ctx, session.Conn, SearchResultsEvent{
		Type:       "search_results",
		Provider:   session.Provider,
		Query:      query,
		Results:    resp.Results,
		HasResults: resp.HasResults(),
	})

	if !resp.HasResults() {
		return ""
	}
	context := resp.ToContext(p.searchMax)
	p.logger.Info("web search context added", "chars", len(context))
	return context
}

// retrievalStage queries the vector search collaborator. Like web
// search, failure only costs the turn its context.
func (p *Pipeline) retrievalStage(ctx context.Context, session *Session, message string) string {
	if p.rag == nil || !p.rag.Enabled() {
		return ""
	}

	safeSend(ctx, session.Conn, RAGSearchingEvent{Type: "rag_searching", Provider: session.Provider, Query: message})

	resp := p.rag.Search(ctx, message)
	safeSend(ctx, session.Conn, RAGResultsEvent{
		Type:             "rag_results",
		Provider:         session.Provider,
		ResultsCount:     len(resp.Results),
		ProcessingTimeMS: resp.ProcessingTimeMS,
	})

	if !resp.Success {
		p.logger.Warn("retrieval failed, continuing without context", "error", resp.Error)
		return ""
	}
	return rag.FormatContext(resp.Results, rag.DefaultContextChars)
}

// buildOutgoing assembles the provider request: the system prompt, then
// the shared history. A multimodal form, when present, replaces the
// just-appended user message for this call only.
func (p *Pipeline) buildOutgoing(multimodal *llm.MultimodalContent) []llm.Message {
	snapshot := p.log.Snapshot()

	outgoing := make([]llm.Message, 0, len(snapshot)+1)
	if p.systemPrompt != "" {
		outgoing = append(outgoing, llm.NewTextMessage(llm.RoleSystem, p.systemPrompt))
	}
	if multimodal != nil && len(snapshot) > 0 {
		outgoing = append(outgoing, snapshot[:len(snapshot)-1]...)
		outgoing = append(outgoing, llm.Message{Role: llm.RoleUser, Content: *multimodal})
	} else {
		outgoing = append(outgoing, snapshot...)
	}
	return outgoing
}

// ClearHistory empties the shared log, resets the session's usage
// totals, and unbinds the durable conversation so the next turn starts
// a fresh one.
func (p *Pipeline) ClearHistory(sessionID string) SessionStats {
	p.log.Clear()
	p.tracker.ResetSession(sessionID)

	p.convMu.Lock()
	p.convID = ""
	p.convMu.Unlock()

	p.logger.Info("history and session usage cleared", "session_id", sessionID)
	return sessionStats(p.tracker.Session(sessionID))
}

// LoadConversation rehydrates the shared log from durable storage,
// replacing its contents atomically. Usage totals are untouched.
func (p *Pipeline) LoadConversation(ctx context.Context, conversationID string) (string, int, error) {
	if p.repo == nil {
		return "", 0, store.ErrNotFound
	}

	conv, err := p.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return "", 0, err
	}

	msgs := make([]llm.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		msgs = append(msgs, llm.NewTextMessage(llm.Role(m.Role), m.Content))
	}
	p.log.Replace(msgs)

	p.convMu.Lock()
	p.convID = conv.ID
	p.convMu.Unlock()

	p.logger.Info("conversation loaded",
		"conversation_id", conv.ID,
		"messages", len(msgs))
	return conv.Title, len(msgs), nil
}

// RecordRating persists a 1..5 rating for a message. Best-effort: a
// repository failure is logged, nothing is surfaced to the client.
func (p *Pipeline) RecordRating(ctx context.Context, messageID int64, provider string, rating int) {
	p.logger.Info("rating received", "provider", provider, "rating", rating, "message_id", messageID)
	if p.repo == nil {
		return
	}
	err := p.repo.SaveRating(ctx, &store.Rating{
		MessageID: messageID,
		Provider:  provider,
		Rating:    rating,
		CreatedAt: time.Now(),
	})
	if err != nil {
		p.logger.Error("rating persist failed", "message_id", messageID, "error", err)
	}
}

// persistUserMessage writes the user turn to durable storage, creating
// the conversation row on first use. In-memory history stays
// authoritative when storage fails.
func (p *Pipeline) persistUserMessage(ctx context.Context, session *Session, content string) {
	if p.repo == nil {
		return
	}

	p.convMu.Lock()
	needsCreate := p.convID == ""
	p.convMu.Unlock()

	if needsCreate {
		conv := &store.Conversation{
			ID:    uuid.NewString(),
			Title: store.TitleFromContent(content, titleMaxLen),
		}
		if err := p.repo.CreateConversation(ctx, conv); err != nil {
			p.logger.Error("conversation create failed", "error", err)
			return
		}

		p.convMu.Lock()
		// A concurrent turn may have bound a conversation first; keep
		// the first binding and orphan the extra row.
		if p.convID == "" {
			p.convID = conv.ID
		}
		p.convMu.Unlock()

		safeSend(ctx, session.Conn, ConversationCreatedEvent{
			Type:           "conversation_created",
			Provider:       session.Provider,
			ConversationID: conv.ID,
			Title:          conv.Title,
		})
	}

	p.appendStored(ctx, &store.Message{
		Role:    string(llm.RoleUser),
		Content: content,
	})
}

// persistAssistantMessage writes the completed assistant turn with its
// usage breakdown.
func (p *Pipeline) persistAssistantMessage(ctx context.Context, provider, model, content string, record *usage.Record) {
	if p.repo == nil {
		return
	}
	p.appendStored(ctx, &store.Message{
		Role:         string(llm.RoleAssistant),
		Content:      content,
		Provider:     provider,
		Model:        model,
		InputTokens:  record.InputTokens,
		OutputTokens: record.OutputTokens,
		Cost:         record.TotalCost,
	})
}

func (p *Pipeline) appendStored(ctx context.Context, msg *store.Message) {
	p.convMu.Lock()
	convID := p.convID
	p.convMu.Unlock()
	if convID == "" {
		return
	}

	msg.ConversationID = convID
	if err := p.repo.AddMessage(ctx, msg); err != nil {
		p.logger.Error("message persist failed", "conversation_id", convID, "error", err)
	}
}
