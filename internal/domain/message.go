package domain

// MessageRole classifies a transcript entry after consolidation.
type MessageRole string

const (
	RoleUser       MessageRole = "user"
	RoleAssistant  MessageRole = "assistant"
	RoleToolUse    MessageRole = "tool_use"
	RoleToolResult MessageRole = "tool_result"
)

// TranscriptMessage is a consolidated, renderable transcript entry.
// ToolName is set only for tool_use entries.
type TranscriptMessage struct {
	Role     MessageRole `json:"role"`
	Content  string      `json:"content"`
	ToolName *string     `json:"tool_name,omitempty"`
}

// MessageContext carries optional UI context attached to an incoming message.
// It is forwarded to the engine so the agent knows what the user is looking at.
type MessageContext struct {
	View       string   `json:"view,omitempty"`
	EntityType string   `json:"entity_type,omitempty"`
	EntityID   string   `json:"entity_id,omitempty"`
	SourceIDs  []string `json:"source_ids,omitempty"`
}

// PendingMessage is a queued user message awaiting its processing turn.
type PendingMessage struct {
	ID      string
	Content string
	Context *MessageContext
}
