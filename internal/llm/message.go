// ABOUTME: Chat message model shared by all provider clients
// ABOUTME: Content is a tagged variant: plain text or text plus inline images

package llm

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content is the tagged content variant carried by a Message.
// It is either TextContent or MultimodalContent; provider clients
// switch on the concrete type when serializing requests.
type Content interface {
	// PlainText returns the text-only form of the content. For
	// multimodal content this is the text part without image payloads.
	PlainText() string

	isContent()
}

// TextContent is plain text message content.
type TextContent struct {
	Text string
}

func (t TextContent) PlainText() string { return t.Text }
func (TextContent) isContent()          {}

// ImagePart is one inline image carried by multimodal content.
type ImagePart struct {
	MimeType string // e.g. "image/png"
	Data     string // base64-encoded payload
}

// MultimodalContent is text plus one or more inline images. It is used
// only for the in-flight request to a backend; stored history always
// keeps the plain-text form.
type MultimodalContent struct {
	Text   string
	Images []ImagePart
}

func (m MultimodalContent) PlainText() string { return m.Text }
func (MultimodalContent) isContent()          {}

// Message is a single entry in a conversation. Messages are immutable
// once appended to a conversation log.
type Message struct {
	Role    Role
	Content Content
}

// NewTextMessage builds a message with plain text content.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: TextContent{Text: text}}
}

// NewMultimodalMessage builds a message carrying text plus inline images.
func NewMultimodalMessage(role Role, text string, images []ImagePart) Message {
	return Message{Role: role, Content: MultimodalContent{Text: text, Images: images}}
}
