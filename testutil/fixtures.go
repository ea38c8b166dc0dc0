package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// WriteSessionFixture writes a stored-session file the way the session
// store lays it out and returns its path. Messages alternate user and
// assistant, timestamped one second apart from createdAt.
func WriteSessionFixture(t *testing.T, dir, id string, messageCount int, createdAt time.Time) string {
	t.Helper()

	var messages []string
	for i := 0; i < messageCount; i++ {
		itemType := "user"
		text := fmt.Sprintf("question %d", i/2+1)
		if i%2 == 1 {
			itemType = "assistant"
			text = fmt.Sprintf("answer %d", i/2+1)
		}
		ts := createdAt.Add(time.Duration(i) * time.Second).Format(time.RFC3339Nano)
		messages = append(messages, fmt.Sprintf(
			`{"id":%d,"type":%q,"text":%q,"timestamp":%q,"session_id":%q}`,
			i+1, itemType, text, ts, id))
	}

	doc := fmt.Sprintf(
		`{"id":%q,"messages":[%s],"created_at":%q,"updated_at":%q,"metadata":{"message_count":%d,"last_target":"agent:test-agent (Test Agent)"}}`,
		id,
		strings.Join(messages, ","),
		createdAt.Format(time.RFC3339Nano),
		createdAt.Add(time.Duration(messageCount)*time.Second).Format(time.RFC3339Nano),
		messageCount)

	path := filepath.Join(dir, fmt.Sprintf("session_%s.json", id))
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write session fixture %s: %v", id, err)
	}
	return path
}

// WriteIndexFixture writes a sessions.yaml index covering the given ids
func WriteIndexFixture(t *testing.T, dir string, ids ...string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("sessions:\n")
	for i, id := range ids {
		updated := time.Now().UTC().Add(time.Duration(i) * time.Minute).Format(time.RFC3339)
		b.WriteString(fmt.Sprintf("    - id: %s\n", id))
		b.WriteString(fmt.Sprintf("      message_count: %d\n", 2+i))
		b.WriteString("      last_target: agent:test-agent (Test Agent)\n")
		b.WriteString(fmt.Sprintf("      updated_at: %s\n", updated))
	}

	path := filepath.Join(dir, "sessions.yaml")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("Failed to write index fixture: %v", err)
	}
	return path
}

// CatalogEntryJSON renders one catalog listing row the way the server
// returns it
func CatalogEntryJSON(id, name string) string {
	return fmt.Sprintf(`{"id":%q,"name":%q}`, id, name)
}

// CatalogListJSON renders a catalog listing body from entry JSON fragments
func CatalogListJSON(entries ...string) string {
	return "[" + strings.Join(entries, ",") + "]"
}
