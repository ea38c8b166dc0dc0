package internal

import (
	"time"
)

// CreateTestSessionData creates a test session with sample data
func CreateTestSessionData(id string) *SessionData {
	now := time.Now().UTC()
	return &SessionData{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Messages: []HistoryItem{
			{
				ID:        1,
				Type:      ItemUser,
				Text:      "Hello, how are you?",
				Timestamp: now,
				SessionID: id,
			},
			{
				ID:        2,
				Type:      ItemAssistant,
				Text:      "I'm doing well, thank you!",
				Timestamp: now.Add(time.Second),
				SessionID: id,
			},
		},
		Metadata: SessionMeta{
			MessageCount: 2,
			LastTarget:   "agent:test-agent (Test Agent)",
		},
	}
}

// CreateTestSessionDataWithItems creates a test session with custom items
func CreateTestSessionDataWithItems(id string, items []HistoryItem) *SessionData {
	now := time.Now().UTC()
	return &SessionData{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  items,
		Metadata: SessionMeta{
			MessageCount: len(items),
		},
	}
}

// CreateTestCatalog creates a catalog with one target of each kind
func CreateTestCatalog() Catalog {
	return Catalog{
		Agents:    []Target{{ID: "payments-agent", Name: "Payments Agent", Kind: TargetAgent}},
		Teams:     []Target{{ID: "research-team", Name: "Research Team", Kind: TargetTeam}},
		Workflows: []Target{{ID: "etl-workflow", Name: "ETL Workflow", Kind: TargetWorkflow}},
	}
}

// CreateTestFrame creates a stream frame; an empty eventType means a plain
// content frame
func CreateTestFrame(content, eventType string, done bool) RunFrame {
	frame := RunFrame{
		Content: content,
		Done:    done,
	}
	if eventType != "" {
		frame.Metadata = &FrameMetadata{Type: eventType}
	}
	return frame
}
