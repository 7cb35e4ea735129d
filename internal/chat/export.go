// ABOUTME: Renders the shared conversation log as markdown or plain text
// ABOUTME: Backs the export endpoint; system messages are never included

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentgaia/gaia-gateway/internal/llm"
)

// ExportFormat selects the export rendering.
type ExportFormat string

const (
	ExportMarkdown ExportFormat = "markdown"
	ExportText     ExportFormat = "text"
)

// Export renders the current conversation log. Returns the rendered
// content, a suggested filename, and whether there was anything to
// export.
func (p *Pipeline) Export(format ExportFormat, now time.Time) (string, string, bool) {
	msgs := p.log.Snapshot()
	if len(msgs) == 0 {
		return "", "", false
	}

	stamp := now.Format("2006-01-02 15:04:05")
	fileStamp := now.Format("20060102_150405")

	if format == ExportMarkdown {
		return renderMarkdown(msgs, stamp), "conversation_" + fileStamp + ".md", true
	}
	return renderText(msgs, stamp), "conversation_" + fileStamp + ".txt", true
}

func renderMarkdown(msgs []llm.Message, stamp string) string {
	var b strings.Builder
	b.WriteString("# Conversation Export\n")
	fmt.Fprintf(&b, "\n**Exported:** %s\n\n---\n\n", stamp)

	for _, msg := range msgs {
		switch msg.Role {
		case llm.RoleUser:
			b.WriteString("## User\n\n")
		case llm.RoleAssistant:
			b.WriteString("## Assistant\n\n")
		default:
			continue
		}
		b.WriteString(msg.Content.PlainText())
		b.WriteString("\n\n")
	}
	return b.String()
}

func renderText(msgs []llm.Message, stamp string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation Export - %s\n", stamp)
	b.WriteString(strings.Repeat("=", 50))
	b.WriteString("\n\n")

	for _, msg := range msgs {
		switch msg.Role {
		case llm.RoleUser:
			b.WriteString("[User]\n")
		case llm.RoleAssistant:
			b.WriteString("[Assistant]\n")
		default:
			continue
		}
		b.WriteString(msg.Content.PlainText())
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", 30))
		b.WriteString("\n")
	}
	return b.String()
}
