package internal

import (
	"strings"
	"testing"
	"time"
)

func TestNewSessionID(t *testing.T) {
	id := NewSessionID()

	parts := strings.SplitN(id, "-", 2)
	if len(parts) != 2 {
		t.Fatalf("NewSessionID() = %q, want timestamp-suffix form", id)
	}
	if _, err := time.Parse("20060102T150405", parts[0]); err != nil {
		t.Errorf("NewSessionID() prefix %q is not a timestamp: %v", parts[0], err)
	}
	if len(parts[1]) != 8 {
		t.Errorf("NewSessionID() suffix %q length = %d, want 8", parts[1], len(parts[1]))
	}
}

func TestNewSessionID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		if seen[id] {
			t.Fatalf("NewSessionID() produced duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestNewSessionID_SortsChronologically(t *testing.T) {
	first := NewSessionID()
	time.Sleep(1100 * time.Millisecond)
	second := NewSessionID()

	if !(first < second) {
		t.Errorf("session ids not in chronological lexical order: %q then %q", first, second)
	}
}

func TestNewSessionData(t *testing.T) {
	session := NewSessionData("")
	if session.ID == "" {
		t.Error("NewSessionData(\"\") did not mint an id")
	}
	if session.Messages == nil || len(session.Messages) != 0 {
		t.Errorf("NewSessionData() Messages = %v, want empty slice", session.Messages)
	}
	if session.CreatedAt.IsZero() || session.UpdatedAt.IsZero() {
		t.Error("NewSessionData() timestamps not set")
	}

	named := NewSessionData("my-session")
	if named.ID != "my-session" {
		t.Errorf("NewSessionData(\"my-session\") ID = %q", named.ID)
	}
}
