package internal

import "time"

// ItemType identifies what a history item records. Streamed responses only
// ever finalize as ItemAssistant; the event types around them (thinking,
// tool activity, member hand-offs) are appended as their own items the
// moment they arrive.
type ItemType string

const (
	ItemUser         ItemType = "user"
	ItemAssistant    ItemType = "assistant"
	ItemThinking     ItemType = "thinking"
	ItemToolStart    ItemType = "tool_start"
	ItemToolComplete ItemType = "tool_complete"
	ItemAgentStart   ItemType = "agent_start"
	ItemTeamStart    ItemType = "team_start"
	ItemMemoryUpdate ItemType = "memory_update"
	ItemInfo         ItemType = "info"
	ItemError        ItemType = "error"
)

// HistoryItem is one entry in a conversation transcript
type HistoryItem struct {
	ID        int64         `json:"id"`
	Type      ItemType      `json:"type"`
	Text      string        `json:"text"`
	Timestamp time.Time     `json:"timestamp"`
	SessionID string        `json:"session_id,omitempty"`
	Metadata  *ItemMetadata `json:"metadata,omitempty"`
}

// ItemMetadata carries the optional context attached to an item
type ItemMetadata struct {
	Target   *Target                `json:"target,omitempty"`
	EventID  string                 `json:"event_id,omitempty"`
	Detail   map[string]interface{} `json:"detail,omitempty"`
	Stats    *RunStats              `json:"stats,omitempty"`
	Canceled bool                   `json:"canceled,omitempty"`
}

// RunStats summarizes one completed run. Elapsed is always measured on this
// side of the wire, from submit to final item; server-reported timings are
// not trusted for it.
type RunStats struct {
	Elapsed      time.Duration `json:"elapsed"`
	InputTokens  int           `json:"input_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
}

// NewItem builds an unsaved history item with the timestamp set. The store
// assigns the ID when the item is appended.
func NewItem(itemType ItemType, text string) HistoryItem {
	return HistoryItem{
		Type:      itemType,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// ItemTypeForEvent maps a stream frame's metadata type to the history item
// type it produces. ok is false for content frames, which accumulate into
// the pending response instead of producing an item.
func ItemTypeForEvent(eventType string) (ItemType, bool) {
	switch eventType {
	case "", "content":
		return "", false
	case "thinking":
		return ItemThinking, true
	case "tool_start":
		return ItemToolStart, true
	case "tool_complete":
		return ItemToolComplete, true
	case "agent_start":
		return ItemAgentStart, true
	case "team_start":
		return ItemTeamStart, true
	case "memory_update":
		return ItemMemoryUpdate, true
	case "rag_query":
		// Retrieval lookups are surfaced as plain informational items
		return ItemInfo, true
	default:
		// Unknown event types still show up rather than vanish
		return ItemInfo, true
	}
}

// Label returns the display name for an item type
func (t ItemType) Label() string {
	switch t {
	case ItemUser:
		return "You"
	case ItemAssistant:
		return "Assistant"
	case ItemThinking:
		return "Thinking"
	case ItemToolStart:
		return "Tool"
	case ItemToolComplete:
		return "Tool done"
	case ItemAgentStart:
		return "Agent"
	case ItemTeamStart:
		return "Team"
	case ItemMemoryUpdate:
		return "Memory"
	case ItemInfo:
		return "Info"
	case ItemError:
		return "Error"
	default:
		return string(t)
	}
}
