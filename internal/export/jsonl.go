package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/iksnae/agentos-chat/internal"
)

// JSONLExporter exports sessions in JSONL format (one item per line)
type JSONLExporter struct{}

// Export exports a session to JSONL format
func (e *JSONLExporter) Export(session *internal.SessionData, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, item := range session.Messages {
		obj := map[string]interface{}{
			"id":   item.ID,
			"type": string(item.Type),
			"text": item.Text,
		}

		if !item.Timestamp.IsZero() {
			obj["timestamp"] = item.Timestamp.Format(time.RFC3339)
		}
		if item.Metadata != nil && item.Metadata.Target != nil {
			obj["target"] = item.Metadata.Target.Describe()
		}

		// Encode to single line
		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode item: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
