package format

import (
	"encoding/json"
	"io"

	"github.com/iksnae/agentos-chat/internal"
)

// JSONFormatter renders the result as pretty-printed JSON. Failures render
// too: success=false plus the error text, so scripts can parse either
// outcome the same way.
type JSONFormatter struct{}

// Format writes the result as JSON
func (f *JSONFormatter) Format(w io.Writer, result *internal.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

// Name returns the format name
func (f *JSONFormatter) Name() string {
	return "json"
}
