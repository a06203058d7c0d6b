package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"parley.app/switchboard/common/llm"
	"parley.app/switchboard/common/logger"
	"parley.app/switchboard/internal/domain"
	"parley.app/switchboard/internal/transcript"
)

const (
	defaultMaxTurns   = 30
	defaultMaxTokens  = 8192
	eventBuffer       = 64
	maxStreamAttempts = 3
	turnSeparator     = "\n\n"
)

// Agent drives multi-turn conversations against an LLM with workspace
// tools, recording every turn in the session transcript.
type Agent struct {
	client      llm.AgentClient
	transcripts *transcript.Store
	reader      *transcript.Reader
	maxTurns    int
	maxTokens   int
}

// Config configures an Agent.
type Config struct {
	Client      llm.AgentClient
	Transcripts *transcript.Store
	// MaxTurns caps model calls per invocation. Defaults to 30.
	MaxTurns int
	// MaxTokens caps output tokens per model call. Defaults to 8192.
	MaxTokens int
}

func New(cfg Config) (*Agent, error) {
	if cfg.Client == nil {
		return nil, errors.New("llm client is required")
	}
	if cfg.Transcripts == nil {
		return nil, errors.New("transcript store is required")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Agent{
		client:      cfg.Client,
		transcripts: cfg.Transcripts,
		reader:      transcript.NewReader(cfg.Transcripts),
		maxTurns:    cfg.MaxTurns,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Invoke starts processing one user message. Events stream on the
// returned channel until the result event closes it. A ResumeID with an
// existing transcript continues that session; otherwise a new session
// ID is minted and reported on the result event.
func (a *Agent) Invoke(ctx context.Context, req InvokeRequest) (<-chan Event, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.New("message is empty")
	}
	workspace := req.WorkspacePath
	if workspace == "" {
		workspace = "."
	}

	sessionID := req.ResumeID
	resuming := sessionID != "" && a.transcripts.Exists(workspace, sessionID)
	if !resuming {
		sessionID = uuid.NewString()
	}

	conversation, err := a.buildConversation(workspace, sessionID, resuming, req)
	if err != nil {
		return nil, err
	}

	if !resuming {
		if err := a.transcripts.Append(workspace, sessionID, transcript.NewInitEntry(sessionID, workspace)); err != nil {
			return nil, fmt.Errorf("initializing transcript: %w", err)
		}
	}
	if err := a.transcripts.Append(workspace, sessionID, transcript.NewUserEntry(sessionID, req.Message)); err != nil {
		return nil, fmt.Errorf("recording user message: %w", err)
	}

	events := make(chan Event, eventBuffer)
	go a.run(ctx, events, sessionID, workspace, conversation, NewWorkspaceTools(workspace))
	return events, nil
}

// buildConversation assembles the model conversation: system prompt,
// prior user and assistant text when resuming, then the new message.
// Tool activity from earlier turns stays in the transcript and is not
// replayed.
func (a *Agent) buildConversation(workspace, sessionID string, resuming bool, req InvokeRequest) ([]llm.Message, error) {
	conversation := []llm.Message{{Role: "system", Content: buildSystemPrompt(workspace, req.Context)}}

	if resuming {
		history, err := a.reader.History(workspace, sessionID)
		if err != nil {
			return nil, fmt.Errorf("loading session history: %w", err)
		}
		for _, msg := range history {
			switch msg.Role {
			case domain.RoleUser:
				conversation = append(conversation, llm.Message{Role: "user", Content: msg.Content})
			case domain.RoleAssistant:
				conversation = append(conversation, llm.Message{Role: "assistant", Content: msg.Content})
			}
		}
	}

	return append(conversation, llm.Message{Role: "user", Content: req.Message}), nil
}

func (a *Agent) run(ctx context.Context, events chan<- Event, sessionID, workspace string, conversation []llm.Message, tools *WorkspaceTools) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:     "switchboard.engine",
		SessionID:     logger.Ptr(sessionID),
		WorkspacePath: logger.Ptr(workspace),
	})

	emit := func(ev Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	defer close(events)
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "agent run panicked", "panic", r)
			emit(Event{Kind: EventResult, SessionID: sessionID, IsError: true, ResultText: fmt.Sprintf("internal error: %v", r)})
		}
	}()

	var completed []string

	for turn := 0; turn < a.maxTurns; turn++ {
		var textEmitted, anyEmitted bool
		handler := llm.StreamHandler{
			OnTextDelta: func(delta string) {
				if delta == "" {
					return
				}
				// Separate turns so concatenated deltas always equal
				// the cumulative assistant text.
				if !textEmitted && len(completed) > 0 {
					emit(Event{Kind: EventTextDelta, Text: turnSeparator})
				}
				textEmitted = true
				anyEmitted = true
				emit(Event{Kind: EventTextDelta, Text: delta})
			},
			OnToolUseStart: func(name string) {
				anyEmitted = true
				emit(Event{Kind: EventToolUseStart, Tool: name})
			},
			OnToolUseStop: func(name string) {
				anyEmitted = true
				emit(Event{Kind: EventToolUseStop, Tool: name})
			},
		}

		request := llm.AgentRequest{
			Messages:  conversation,
			Tools:     tools.Definitions(),
			MaxTokens: a.maxTokens,
		}

		// Retry transient failures, but only while nothing has been
		// streamed to subscribers yet.
		var resp *llm.AgentResponse
		var err error
		for attempt := 0; attempt < maxStreamAttempts; attempt++ {
			resp, err = a.client.StreamWithTools(ctx, request, handler)
			if err == nil {
				break
			}
			if anyEmitted || !llm.IsRetryable(ctx, err) {
				break
			}
			slog.WarnContext(ctx, "model stream retry", "attempt", attempt+1, "error", err)
			time.Sleep(time.Duration(1<<attempt) * time.Second)
		}
		if err != nil {
			emit(Event{Kind: EventResult, SessionID: sessionID, IsError: true, ResultText: err.Error()})
			return
		}

		a.recordTurn(ctx, workspace, sessionID, resp)

		if resp.Content != "" {
			completed = append(completed, resp.Content)
			emit(Event{Kind: EventAssistantText, Text: strings.Join(completed, turnSeparator)})
		}

		conversation = append(conversation, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			emit(Event{Kind: EventResult, SessionID: sessionID, ResultText: strings.Join(completed, turnSeparator)})
			return
		}

		for _, call := range resp.ToolCalls {
			slog.DebugContext(ctx, "executing tool",
				"tool", call.Name,
				"arguments", logger.Truncate(call.Arguments, 200))
			output, err := tools.Execute(ctx, call.Name, call.Arguments)
			if err != nil {
				output = "Error: " + err.Error()
			}
			a.recordToolResult(ctx, workspace, sessionID, call.ID, output)
			conversation = append(conversation, llm.Message{
				Role:       "tool",
				Content:    output,
				ToolCallID: call.ID,
			})
		}
	}

	slog.WarnContext(ctx, "run reached max turns", "max_turns", a.maxTurns)
	emit(Event{Kind: EventResult, SessionID: sessionID, ResultText: strings.Join(completed, turnSeparator)})
}

// recordTurn appends the assistant's turn to the transcript. Append
// failures are logged and the run continues.
func (a *Agent) recordTurn(ctx context.Context, workspace, sessionID string, resp *llm.AgentResponse) {
	blocks := make([]transcript.ContentBlock, 0, 1+len(resp.ToolCalls))
	if resp.Content != "" {
		blocks = append(blocks, transcript.TextBlock(resp.Content))
	}
	for _, call := range resp.ToolCalls {
		blocks = append(blocks, transcript.ToolUseBlock(call.ID, call.Name, call.Arguments))
	}
	if len(blocks) == 0 {
		return
	}
	if err := a.transcripts.Append(workspace, sessionID, transcript.NewAssistantEntry(sessionID, blocks...)); err != nil {
		slog.WarnContext(ctx, "failed to record assistant turn", "error", err)
	}
}

func (a *Agent) recordToolResult(ctx context.Context, workspace, sessionID, toolUseID, output string) {
	entry := transcript.NewAssistantEntry(sessionID, transcript.ToolResultBlock(toolUseID, output))
	if err := a.transcripts.Append(workspace, sessionID, entry); err != nil {
		slog.WarnContext(ctx, "failed to record tool result", "error", err)
	}
}
