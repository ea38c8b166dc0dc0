package format

import (
	"fmt"
	"io"
	"time"

	"github.com/iksnae/agentos-chat/internal"
)

// TextFormatter renders the result as plain text: the content, then a
// one-line stats footer. Failures render the guidance text alone.
type TextFormatter struct{}

// Format writes the result as text
func (f *TextFormatter) Format(w io.Writer, result *internal.RunResult) error {
	if !result.Success {
		_, err := fmt.Fprintln(w, result.Error)
		return err
	}

	if _, err := fmt.Fprintln(w, result.Content); err != nil {
		return err
	}
	if result.Stats != nil {
		if _, err := fmt.Fprintf(w, "\n[%s]\n", statsLine(result.Stats)); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the format name
func (f *TextFormatter) Name() string {
	return "text"
}

// statsLine renders run stats on one line, leaving token counts out when
// the server reported none
func statsLine(stats *internal.RunStats) string {
	line := fmt.Sprintf("elapsed %s", stats.Elapsed.Round(time.Millisecond))
	if stats.InputTokens > 0 || stats.OutputTokens > 0 {
		line += fmt.Sprintf(" · tokens %d in / %d out", stats.InputTokens, stats.OutputTokens)
	}
	return line
}
