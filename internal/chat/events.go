// ABOUTME: Outbound wire events sent to chat clients
// ABOUTME: Every event carries the provider key and a type discriminator

package chat

import (
	"github.com/agentgaia/gaia-gateway/internal/usage"
	"github.com/agentgaia/gaia-gateway/internal/websearch"
)

// ConnectedEvent confirms a registered connection.
type ConnectedEvent struct {
	Type     string `json:"type"`
	Provider string `json:"provider"`
	Status   string `json:"status"`
}

// StreamingEvent carries one response chunk.
type StreamingEvent struct {
	Type     string `json:"type"`
	Provider string `json:"provider"`
	Chunk    string `json:"chunk"`
}

// CompleteEvent marks the end of a successful turn.
type CompleteEvent struct {
	Type     string `json:"type"`
	Provider string `json:"provider"`
}

// ErrorEvent reports a fatal turn failure.
type ErrorEvent struct {
	Type     string `json:"type"`
	Provider string `json:"provider"`
	Error    string `json:"error"`
}

// SearchingEvent tells the client a web search is running.
type SearchingEvent struct {
	Type     string `json:"type"`
	Provider string `json:"provider"`
	Query    string `json:"query"`
}

// SearchResultsEvent carries web search hits back to the client.
type SearchResultsEvent struct {
	Type       string             `json:"type"`
	Provider   string             `json:"provider"`
	Query      string             `json:"query"`
	Results    []websearch.Result `json:"results"`
	HasResults bool               `json:"has_results"`
}

// RAGSearchingEvent tells the client document retrieval is running.
type RAGSearchingEvent struct {
	Type     string `json:"type"`
	Provider string `json:"provider"`
	Query    string `json:"query"`
}

// RAGResultsEvent summarizes a completed retrieval.
type RAGResultsEvent struct {
	Type             string  `json:"type"`
	Provider         string  `json:"provider"`
	ResultsCount     int     `json:"results_count"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
}

// BackupSwitchEvent reports a mid-turn provider failover.
type BackupSwitchEvent struct {
	Type             string `json:"type"`
	OriginalProvider string `json:"original_provider"`
	BackupProvider   string `json:"backup_provider"`
	Reason           string `json:"reason"`
}

// HistoryClearedEvent acknowledges a clear_history request and reports
// the zeroed session totals.
type HistoryClearedEvent struct {
	Type     string       `json:"type"`
	Provider string       `json:"provider"`
	Session  SessionStats `json:"session"`
}

// ConversationCreatedEvent reports that durable storage allocated a new
// conversation for this session's history.
type ConversationCreatedEvent struct {
	Type           string `json:"type"`
	Provider       string `json:"provider"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}

// ConversationLoadedEvent acknowledges a load_conversation request.
type ConversationLoadedEvent struct {
	Type           string `json:"type"`
	Provider       string `json:"provider"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
	MessageCount   int    `json:"message_count"`
}

// MessageStats is the usage breakdown for one completed turn.
type MessageStats struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

// SessionStats is the running usage total for one session.
type SessionStats struct {
	TotalInputTokens  int     `json:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens"`
	TotalTokens       int     `json:"total_tokens"`
	TotalCost         float64 `json:"total_cost"`
	MessageCount      int     `json:"message_count"`
}

// UsageEvent reports per-turn and per-session usage after a completed
// turn.
type UsageEvent struct {
	Type     string       `json:"type"`
	Provider string       `json:"provider"`
	Model    string       `json:"model"`
	Message  MessageStats `json:"message"`
	Session  SessionStats `json:"session"`
}

func sessionStats(s usage.SessionUsage) SessionStats {
	return SessionStats{
		TotalInputTokens:  s.TotalInputTokens,
		TotalOutputTokens: s.TotalOutputTokens,
		TotalTokens:       s.TotalTokens,
		TotalCost:         roundCost(s.TotalCost),
		MessageCount:      s.MessageCount,
	}
}

func messageStats(r *usage.Record) MessageStats {
	return MessageStats{
		InputTokens:  r.InputTokens,
		OutputTokens: r.OutputTokens,
		TotalTokens:  r.TotalTokens,
		Cost:         roundCost(r.TotalCost),
	}
}

// roundCost trims cost values to micro-dollar precision for the wire.
func roundCost(cost float64) float64 {
	return float64(int64(cost*1e6+0.5)) / 1e6
}
