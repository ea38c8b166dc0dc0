package format

import (
	"fmt"
	"io"

	"github.com/iksnae/agentos-chat/internal"
)

// Formatter renders a one-shot run result to stdout
type Formatter interface {
	Format(w io.Writer, result *internal.RunResult) error
	Name() string
}

// New creates a formatter for the given kind. An empty kind means text.
func New(kind string) (Formatter, error) {
	switch kind {
	case "json":
		return &JSONFormatter{}, nil
	case "", "text":
		return &TextFormatter{}, nil
	case "md", "markdown":
		return &MarkdownFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: json, text, markdown)", kind)
	}
}
