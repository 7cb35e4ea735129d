// ABOUTME: Tests for turn content assembly: attachments and context layering.
// ABOUTME: History form stays plain text; images ride only the in-flight form.

package chat

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAssembler(attachments ...Attachment) *Assembler {
	store := NewInMemoryAttachments()
	for _, a := range attachments {
		store.Put(a)
	}
	return NewAssembler(store, slog.Default())
}

func TestAssembler_NoAttachments(t *testing.T) {
	a := newTestAssembler()

	text, multimodal := a.BuildContent("plain question", nil)
	assert.Equal(t, "plain question", text)
	assert.Nil(t, multimodal)
}

func TestAssembler_TextAttachmentInlinedAsLabeledBlock(t *testing.T) {
	a := newTestAssembler(Attachment{Name: "notes.txt", Text: "some file content"})

	text, multimodal := a.BuildContent("summarize this", []string{"notes.txt"})
	assert.Equal(t, "[File: notes.txt]\nsome file content\n\n---\n\nsummarize this", text)
	assert.Nil(t, multimodal)
}

func TestAssembler_ImageAttachmentBecomesMultimodal(t *testing.T) {
	a := newTestAssembler(Attachment{Name: "photo.png", MimeType: "image/png", ImageBase64: "aGVsbG8="})

	text, multimodal := a.BuildContent("what is in this image?", []string{"photo.png"})

	// History form carries only the placeholder, never the payload.
	assert.Equal(t, "[Image: photo.png]\n\n---\n\nwhat is in this image?", text)
	assert.NotContains(t, text, "aGVsbG8=")

	require.NotNil(t, multimodal)
	assert.Equal(t, text, multimodal.Text)
	require.Len(t, multimodal.Images, 1)
	assert.Equal(t, "image/png", multimodal.Images[0].MimeType)
	assert.Equal(t, "aGVsbG8=", multimodal.Images[0].Data)
}

func TestAssembler_MixedAttachments(t *testing.T) {
	a := newTestAssembler(
		Attachment{Name: "doc.md", Text: "doc body"},
		Attachment{Name: "pic.jpg", MimeType: "image/jpeg", ImageBase64: "data"},
	)

	text, multimodal := a.BuildContent("compare these", []string{"doc.md", "pic.jpg"})

	assert.Contains(t, text, "[File: doc.md]\ndoc body")
	assert.Contains(t, text, "[Image: pic.jpg]")
	require.NotNil(t, multimodal)
	assert.Len(t, multimodal.Images, 1)
}

func TestAssembler_MissingAttachmentSkipped(t *testing.T) {
	a := newTestAssembler()

	text, multimodal := a.BuildContent("question", []string{"ghost.txt"})
	assert.Equal(t, "question", text)
	assert.Nil(t, multimodal)
}

func TestPrependContext_Order(t *testing.T) {
	got := PrependContext("RETRIEVED", "SEARCHED", "user text")

	// Fixed layering: retrieved passages, then search results, then the
	// user's question.
	assert.Equal(t, "RETRIEVED\n\n---\n\nSEARCHED\n\n---\n\nUser question: user text", got)
}

func TestPrependContext_SkipsEmptyBlocks(t *testing.T) {
	assert.Equal(t, "user text", PrependContext("", "", "user text"))
	assert.Equal(t, "SEARCHED\n\n---\n\nUser question: user text", PrependContext("", "SEARCHED", "user text"))
	assert.Equal(t, "RETRIEVED\n\n---\n\nUser question: user text", PrependContext("RETRIEVED", "", "user text"))
}
