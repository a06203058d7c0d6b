// Package engine runs agent conversations against a workspace. An
// invocation streams typed events while the model call is in flight and
// records every turn in the session transcript.
package engine

import (
	"context"

	"parley.app/switchboard/internal/domain"
)

// EventKind tags events emitted by a running invocation.
type EventKind string

const (
	// EventTextDelta carries an incremental chunk of assistant text.
	EventTextDelta EventKind = "text_delta"
	// EventAssistantText carries the cumulative assistant text after a
	// completed turn. The concatenation of all deltas emitted so far
	// always equals the latest cumulative text.
	EventAssistantText EventKind = "assistant_text"
	// EventToolUseStart and EventToolUseStop bracket a tool invocation
	// as the model streams it.
	EventToolUseStart EventKind = "tool_use_start"
	EventToolUseStop  EventKind = "tool_use_stop"
	// EventResult is the final event of an invocation. Exactly one is
	// emitted before the channel closes.
	EventResult EventKind = "result"
)

// Event is one progress update from a running invocation.
type Event struct {
	Kind EventKind
	// Text is the delta chunk for text_delta events and the cumulative
	// assistant text for assistant_text events.
	Text string
	// Tool names the tool for tool_use_start and tool_use_stop events.
	Tool string
	// SessionID is set on result events and names the transcript the
	// invocation wrote to.
	SessionID string
	// IsError marks the result of a failed invocation.
	IsError bool
	// ResultText is the final assistant text, or the failure message
	// when IsError is set.
	ResultText string
}

// InvokeRequest describes one user message to process.
type InvokeRequest struct {
	Message       string
	WorkspacePath string
	// ResumeID names an existing session to continue. A blank ID, or
	// one without a transcript on disk, starts a fresh session.
	ResumeID string
	Context  *domain.MessageContext
}

// Engine processes user messages and streams progress events. The
// returned channel closes after the result event.
type Engine interface {
	Invoke(ctx context.Context, req InvokeRequest) (<-chan Event, error)
}
