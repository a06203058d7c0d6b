package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"parley.app/switchboard/common/logger"
	"parley.app/switchboard/internal/domain"
	"parley.app/switchboard/internal/engine"
	"parley.app/switchboard/internal/model"
)

// runWorker drains the session's pending queue one message at a time,
// then exits. A failed message never takes the worker down; the error
// is published and the next message is processed.
func (o *Orchestrator) runWorker(sessionID string) {
	defer o.wg.Done()
	ctx := o.rootCtx

	for {
		msg, resumeID, ok := o.nextMessage(sessionID)
		if !ok {
			return
		}
		o.processMessage(ctx, sessionID, msg, resumeID)
	}
}

// nextMessage pops the next pending message together with the resume id
// to process it under. When the queue is empty it publishes done and
// clears the processing flag in the same critical section, so a message
// enqueued at that moment either gets picked up by this worker or
// starts a new one, never neither.
func (o *Orchestrator) nextMessage(sessionID string) (domain.PendingMessage, string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.stateLocked(sessionID)
	if len(st.pending) == 0 {
		st.processing = false
		o.publishLocked(st, domain.Event{Type: domain.EventTypeDone, SessionID: sessionID})
		return domain.PendingMessage{}, "", false
	}
	msg := st.pending[0]
	st.pending = st.pending[1:]
	return msg, st.resumeID, true
}

// processMessage runs one queued message through the engine and
// republishes its events in wire form.
func (o *Orchestrator) processMessage(ctx context.Context, sessionID string, msg domain.PendingMessage, resumeID string) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "switchboard.orchestrator",
		SessionID: logger.Ptr(sessionID),
		MessageID: logger.Ptr(msg.ID),
	})
	sc := logger.StartSpan(ctx, "orchestrator.process_message", trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	slog.InfoContext(ctx, "processing message", "content", logger.Truncate(msg.Content, 100))

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "message processing panicked", "panic", r)
			o.publish(sessionID, domain.Event{
				Type:  domain.EventTypeError,
				Error: fmt.Sprintf("internal error: %v", r),
			})
		}
	}()

	o.publish(sessionID, domain.Event{Type: domain.EventTypeProcessingStart, Message: msg.Content})

	if msg.Context != nil && len(msg.Context.SourceIDs) > 0 {
		if _, err := o.sessions.Update(ctx, sessionID, model.SessionPatch{SourceIDs: msg.Context.SourceIDs}); err != nil {
			slog.WarnContext(ctx, "failed to persist source constraint", "error", err)
		}
	}

	events, err := o.engine.Invoke(ctx, engine.InvokeRequest{
		Message:       msg.Content,
		WorkspacePath: o.workspacePath,
		ResumeID:      resumeID,
		Context:       msg.Context,
	})
	if err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "engine invocation failed", "error", err)
		o.publish(sessionID, domain.Event{Type: domain.EventTypeError, Error: err.Error()})
		return
	}

	var emitted string
	var result engine.Event
	var finished bool
	for ev := range events {
		switch ev.Kind {
		case engine.EventTextDelta:
			emitted += ev.Text
			o.publish(sessionID, domain.Event{Type: domain.EventTypeTextDelta, Text: ev.Text})
		case engine.EventAssistantText:
			// The deltas already cover the cumulative text; publish
			// whatever suffix is still missing, if any.
			if suffix, ok := strings.CutPrefix(ev.Text, emitted); ok && suffix != "" {
				o.publish(sessionID, domain.Event{Type: domain.EventTypeTextDelta, Text: suffix})
			}
			emitted = ev.Text
		case engine.EventToolUseStart:
			o.publish(sessionID, domain.Event{
				Type:   domain.EventTypeToolUse,
				Tool:   ev.Tool,
				Status: domain.ToolStatusStart,
			})
		case engine.EventToolUseStop:
			o.publish(sessionID, domain.Event{
				Type:   domain.EventTypeToolUse,
				Tool:   ev.Tool,
				Status: domain.ToolStatusStop,
			})
		case engine.EventResult:
			result = ev
			finished = true
		}
	}

	if !finished {
		slog.ErrorContext(ctx, "engine stream ended without a result")
		o.publish(sessionID, domain.Event{Type: domain.EventTypeError, Error: "processing interrupted"})
		return
	}

	// Reconcile even on failed runs: the engine may already have
	// created the canonical transcript this session must resume.
	if result.SessionID != "" && result.SessionID != sessionID {
		o.reconcile(ctx, sessionID, result.SessionID)
	}

	if result.IsError {
		o.publish(sessionID, domain.Event{Type: domain.EventTypeError, Error: result.ResultText})
		return
	}

	if emitted != "" {
		o.publish(sessionID, domain.Event{Type: domain.EventTypeAssistantMessage, Content: emitted})
	}

	if err := o.committer.Commit(ctx, o.workspacePath, "Chat: "+sessionID); err != nil {
		slog.WarnContext(ctx, "failed to commit chat turn", "error", err)
	}
	if err := o.sessions.Touch(ctx, sessionID); err != nil {
		slog.WarnContext(ctx, "failed to touch session", "error", err)
	}
}

// reconcile makes the canonical id the engine minted durable: the
// registry learns it, the client-visible id becomes an alias of it, and
// subsequent invocations resume under it. Tolerates being called again
// with the same pair.
func (o *Orchestrator) reconcile(ctx context.Context, sessionID, canonicalID string) {
	o.mu.Lock()
	st := o.stateLocked(sessionID)
	if st.resumeID == canonicalID {
		o.mu.Unlock()
		return
	}
	st.resumeID = canonicalID
	o.mu.Unlock()

	if err := o.sessions.RecordCanonical(ctx, sessionID, canonicalID); err != nil {
		slog.ErrorContext(ctx, "session id reconciliation failed",
			"canonical_id", canonicalID, "error", err)
	}
	if err := o.transcripts.Link(o.workspacePath, sessionID, canonicalID); err != nil {
		slog.ErrorContext(ctx, "failed to link transcript alias",
			"canonical_id", canonicalID, "error", err)
	}

	slog.InfoContext(ctx, "session id reconciled", "canonical_id", canonicalID)
}
