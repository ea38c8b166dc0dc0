package format

import (
	"fmt"
	"io"
	"time"

	"github.com/iksnae/agentos-chat/internal"
)

// MarkdownFormatter renders the result as a small Markdown document with
// the target as the heading and a stats section when stats exist
type MarkdownFormatter struct{}

// Format writes the result as Markdown
func (f *MarkdownFormatter) Format(w io.Writer, result *internal.RunResult) error {
	if !result.Success {
		_, _ = fmt.Fprintf(w, "# Run failed\n\n")
		_, err := fmt.Fprintf(w, "%s\n", result.Error)
		return err
	}

	heading := "Run"
	if result.Target != nil {
		heading = result.Target.Describe()
	}
	_, _ = fmt.Fprintf(w, "# %s\n\n", heading)
	_, _ = fmt.Fprintf(w, "%s\n", result.Content)

	if result.Stats != nil {
		_, _ = fmt.Fprintf(w, "\n## Stats\n\n")
		_, _ = fmt.Fprintf(w, "- elapsed: %s\n", result.Stats.Elapsed.Round(time.Millisecond))
		if result.Stats.InputTokens > 0 {
			_, _ = fmt.Fprintf(w, "- input tokens: %d\n", result.Stats.InputTokens)
		}
		if result.Stats.OutputTokens > 0 {
			_, _ = fmt.Fprintf(w, "- output tokens: %d\n", result.Stats.OutputTokens)
		}
	}
	if result.SessionID != "" {
		_, _ = fmt.Fprintf(w, "\n---\nsession: `%s`\n", result.SessionID)
	}
	return nil
}

// Name returns the format name
func (f *MarkdownFormatter) Name() string {
	return "markdown"
}
