// ABOUTME: Store interface and data types for gaia-gateway persistence
// ABOUTME: Defines Conversation, Message, Rating, ModelCost and the Store interface

package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Conversation is the durable unit of dialogue. One conversation spans
// multiple provider sessions.
type Conversation struct {
	ID        string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []*Message
}

// Message is one persisted conversation entry. Content is always the
// plain-text history form; image payloads are never stored.
type Message struct {
	ID             string
	ConversationID string
	Role           string // "system", "user", "assistant"
	Content        string
	Provider       string
	Model          string
	InputTokens    int
	OutputTokens   int
	Cost           float64
	CreatedAt      time.Time
}

// Rating is a user's 1-5 star rating of one assistant response from one
// provider.
type Rating struct {
	MessageID int64
	Provider  string
	Rating    int
	CreatedAt time.Time
}

// ModelCost is one row of the model rate table. Rates are stored per
// million tokens; the per-1K accessors convert for cost math.
type ModelCost struct {
	Model             string
	Provider          string
	InputCostPerMTok  float64
	OutputCostPerMTok float64
	Active            bool
}

// InputCostPer1K returns the input rate per 1,000 tokens.
func (m *ModelCost) InputCostPer1K() float64 { return m.InputCostPerMTok / 1000 }

// OutputCostPer1K returns the output rate per 1,000 tokens.
func (m *ModelCost) OutputCostPer1K() float64 { return m.OutputCostPerMTok / 1000 }

// Store is the conversation repository plus the rate table.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, limit, offset int) ([]*Conversation, error)
	RenameConversation(ctx context.Context, id, title string) error
	DeleteConversation(ctx context.Context, id string) error

	// Messages
	AddMessage(ctx context.Context, msg *Message) error

	// Ratings
	SaveRating(ctx context.Context, rating *Rating) error

	// Model costs
	GetModelCost(ctx context.Context, model string) (*ModelCost, error)
	UpsertModelCost(ctx context.Context, cost *ModelCost) error

	// Close releases any resources held by the store.
	Close() error
}

// TitleFromContent derives a conversation title from the first message:
// the first line, truncated to maxLen with an ellipsis.
func TitleFromContent(content string, maxLen int) string {
	title, _, _ := strings.Cut(content, "\n")
	title = strings.TrimSpace(title)
	if len(title) > maxLen {
		title = title[:maxLen-3] + "..."
	}
	if title == "" {
		return "New Conversation"
	}
	return title
}
