package transcript

import (
	"encoding/json"
	"time"
)

// Entry is one line of a session transcript. The shape matches what the
// upstream agent SDKs write so history stays parseable regardless of
// which producer appended it.
type Entry struct {
	Type      string        `json:"type"`
	Subtype   string        `json:"subtype,omitempty"`
	IsMeta    bool          `json:"isMeta,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
	Cwd       string        `json:"cwd,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Message   *EntryMessage `json:"message,omitempty"`
}

// EntryMessage carries the conversational payload of an entry. Content
// is either a bare string or a list of ContentBlock values.
type EntryMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentBlock is one element of a structured message content list.
type ContentBlock struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Text      string          `json:"text,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   any             `json:"content,omitempty"`
}

// NewInitEntry marks the start of a session. History readers treat it
// as meta and skip it.
func NewInitEntry(sessionID, cwd string) Entry {
	return Entry{
		Type:      "system",
		Subtype:   "init",
		IsMeta:    true,
		SessionID: sessionID,
		Cwd:       cwd,
		Timestamp: time.Now().UTC(),
	}
}

func NewUserEntry(sessionID, text string) Entry {
	return Entry{
		Type:      "user",
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Message:   &EntryMessage{Role: "user", Content: text},
	}
}

func NewAssistantEntry(sessionID string, blocks ...ContentBlock) Entry {
	return Entry{
		Type:      "assistant",
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Message:   &EntryMessage{Role: "assistant", Content: blocks},
	}
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// ToolUseBlock records a tool invocation. Arguments must be a JSON
// object; empty input is normalized to {}.
func ToolUseBlock(id, name, arguments string) ContentBlock {
	input := json.RawMessage(arguments)
	if len(arguments) == 0 {
		input = json.RawMessage("{}")
	}
	return ContentBlock{Type: "tool_use", ID: id, Name: name, Input: input}
}

func ToolResultBlock(toolUseID, content string) ContentBlock {
	return ContentBlock{Type: "tool_result", ToolUseID: toolUseID, Content: content}
}
