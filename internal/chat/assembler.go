// ABOUTME: Builds a turn's outgoing content from user text, attachments, and context
// ABOUTME: History stores plain text only; image payloads live in the in-flight form

package chat

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/agentgaia/gaia-gateway/internal/llm"
)

// contextDelimiter separates context blocks from the user's text.
const contextDelimiter = "\n\n---\n\n"

// Attachment is one uploaded file available for inclusion in a turn.
// Exactly one of Text and ImageBase64 is set.
type Attachment struct {
	Name        string
	MimeType    string
	Text        string
	ImageBase64 string
}

// HasImage reports whether the attachment carries image data.
func (a Attachment) HasImage() bool { return a.ImageBase64 != "" }

// HasText reports whether the attachment carries text content.
func (a Attachment) HasText() bool { return a.Text != "" }

// AttachmentSource resolves attachment names to their content.
type AttachmentSource interface {
	Get(name string) (Attachment, bool)
}

// InMemoryAttachments holds uploaded files keyed by name.
type InMemoryAttachments struct {
	mu    sync.RWMutex
	files map[string]Attachment
}

// NewInMemoryAttachments creates an empty attachment store.
func NewInMemoryAttachments() *InMemoryAttachments {
	return &InMemoryAttachments{files: make(map[string]Attachment)}
}

// Put stores an attachment, replacing any prior one under the same name.
func (s *InMemoryAttachments) Put(a Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[a.Name] = a
}

// Get returns the attachment by name.
func (s *InMemoryAttachments) Get(name string) (Attachment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.files[name]
	return a, ok
}

// Delete removes an attachment by name.
func (s *InMemoryAttachments) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, name)
}

// Assembler merges attachments and retrieved context into a turn's
// outgoing content.
type Assembler struct {
	attachments AttachmentSource
	logger      *slog.Logger
}

// NewAssembler creates an assembler over the given attachment source.
func NewAssembler(attachments AttachmentSource, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		attachments: attachments,
		logger:      logger.With("component", "assembler"),
	}
}

// BuildContent resolves attachments into two forms: a plain-text form
// for permanent history, and an optional multimodal form used only for
// the outgoing call when image attachments are present. Text files are
// inlined as labeled blocks; images become a placeholder label in the
// text form and an encoded part in the multimodal form. Missing
// attachment names are logged and skipped.
func (a *Assembler) BuildContent(message string, names []string) (string, *llm.MultimodalContent) {
	if len(names) == 0 {
		return message, nil
	}

	var textBlocks []string
	var images []llm.ImagePart

	for _, name := range names {
		att, ok := a.attachments.Get(name)
		if !ok {
			a.logger.Warn("attachment not found", "name", name)
			continue
		}

		switch {
		case att.HasImage():
			images = append(images, llm.ImagePart{MimeType: att.MimeType, Data: att.ImageBase64})
			textBlocks = append(textBlocks, "[Image: "+att.Name+"]")
			a.logger.Info("image attachment added", "name", att.Name)
		case att.HasText():
			textBlocks = append(textBlocks, "[File: "+att.Name+"]\n"+att.Text)
			a.logger.Info("text attachment added", "name", att.Name, "chars", len(att.Text))
		}
	}

	textForHistory := message
	if len(textBlocks) > 0 {
		textForHistory = strings.Join(textBlocks, "\n\n") + contextDelimiter + message
	}

	if len(images) > 0 {
		return textForHistory, &llm.MultimodalContent{Text: textForHistory, Images: images}
	}
	return textForHistory, nil
}

// PrependContext layers optional retrieval and search context in front
// of the turn text, in the fixed order retrieved passages, then search
// results, then the user's text. Empty blocks are skipped.
func PrependContext(ragContext, searchContext, text string) string {
	var blocks []string
	if ragContext != "" {
		blocks = append(blocks, ragContext)
	}
	if searchContext != "" {
		blocks = append(blocks, searchContext)
	}
	if len(blocks) == 0 {
		return text
	}
	blocks = append(blocks, "User question: "+text)
	return strings.Join(blocks, contextDelimiter)
}
