package internal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionData is a persisted conversation: every finalized history item for
// one session, in append order.
type SessionData struct {
	ID        string        `json:"id"`
	Messages  []HistoryItem `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Metadata  SessionMeta   `json:"metadata"`
}

// SessionMeta contains summary information kept alongside the messages
type SessionMeta struct {
	MessageCount int    `json:"message_count"`
	LastTarget   string `json:"last_target,omitempty"`
}

// NewSessionID mints a session identifier. The UTC timestamp prefix makes
// lexical filename order match chronological order; the uuid suffix keeps
// ids unique within a second.
func NewSessionID() string {
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405"), uuid.New().String()[:8])
}

// NewSessionData creates an empty session. An empty id mints a fresh one.
func NewSessionData(id string) *SessionData {
	if id == "" {
		id = NewSessionID()
	}
	now := time.Now().UTC()
	return &SessionData{
		ID:        id,
		Messages:  make([]HistoryItem, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
