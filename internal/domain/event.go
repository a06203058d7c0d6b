package domain

import "time"

// EventType represents the semantic type of a stream event published to
// session subscribers and forwarded verbatim onto the NDJSON wire.
type EventType string

const (
	EventTypeConnected        EventType = "connected"
	EventTypeHistory          EventType = "history"
	EventTypeUserMessage      EventType = "user_message"
	EventTypeProcessingStart  EventType = "processing_start"
	EventTypeTextDelta        EventType = "text_delta"
	EventTypeToolUse          EventType = "tool_use"
	EventTypeAssistantMessage EventType = "assistant_message"
	EventTypeError            EventType = "error"
	EventTypeDone             EventType = "done"
	EventTypeKeepalive        EventType = "keepalive"
)

// Tool use status values carried on tool_use events.
const (
	ToolStatusStart = "start"
	ToolStatusStop  = "stop"
)

// Event is the tagged union published on a session's event feed.
// Type determines which of the remaining fields are populated; unset
// fields are omitted from the wire encoding.
type Event struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Text      string    `json:"text,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Status    string    `json:"status,omitempty"`
	Content   string    `json:"content,omitempty"`
	Error     string    `json:"error,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Stamped returns a copy of the event with Timestamp set to the current time
// if it has not been set already.
func (e Event) Stamped() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}
