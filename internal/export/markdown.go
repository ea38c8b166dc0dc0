package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iksnae/agentos-chat/internal"
)

// MarkdownExporter exports sessions in Markdown format
type MarkdownExporter struct{}

// Export exports a session to Markdown format
func (e *MarkdownExporter) Export(session *internal.SessionData, w io.Writer) error {
	// Header
	_, _ = fmt.Fprintf(w, "# Session %s\n\n", session.ID)

	if session.Metadata.LastTarget != "" {
		_, _ = fmt.Fprintf(w, "**Target:** %s  \n", session.Metadata.LastTarget)
	}
	if !session.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Created:** %s  \n", session.CreatedAt.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(session.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")
	_, _ = fmt.Fprintf(w, "## Messages\n\n")

	// Messages
	for i, item := range session.Messages {
		timestamp := ""
		if !item.Timestamp.IsZero() {
			timestamp = fmt.Sprintf(" (%s)", item.Timestamp.Format(time.RFC3339))
		}

		switch item.Type {
		case internal.ItemUser, internal.ItemAssistant:
			content := escapeMarkdown(item.Text)
			_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", item.Type.Label(), timestamp, content)
		case internal.ItemError:
			_, _ = fmt.Fprintf(w, "> ⚠ **%s:**%s %s\n\n", item.Type.Label(), timestamp, quoteLines(item.Text))
		default:
			// Event items (thinking, tool activity, hand-offs) render as
			// quoted asides so the conversation stays readable
			_, _ = fmt.Fprintf(w, "> _%s_%s: %s\n\n", item.Type.Label(), timestamp, quoteLines(item.Text))
		}

		// Add horizontal rule after each message (except the last one)
		if i < len(session.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

// escapeMarkdown escapes markdown special characters
func escapeMarkdown(text string) string {
	// Basic escaping - preserve code blocks
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			// Escape markdown syntax outside code blocks
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// quoteLines keeps multi-line event text inside its blockquote
func quoteLines(text string) string {
	return strings.ReplaceAll(text, "\n", "\n> ")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
