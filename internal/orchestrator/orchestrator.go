package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"parley.app/switchboard/common/id"
	"parley.app/switchboard/internal/domain"
	"parley.app/switchboard/internal/engine"
	"parley.app/switchboard/internal/service"
	"parley.app/switchboard/internal/transcript"
	"parley.app/switchboard/internal/vcs"
)

// Subscriber channels buffer this many events. A subscriber that falls
// further behind misses events rather than stalling the worker.
const subscriberBuffer = 256

// Orchestrator serializes message processing per session. Each session
// has a FIFO queue of pending messages drained by at most one worker at
// a time, and a set of subscribers that receive every event the session
// produces while they are attached.
type Orchestrator struct {
	engine        engine.Engine
	sessions      service.SessionService
	transcripts   *transcript.Store
	committer     vcs.Committer
	workspacePath string

	mu     sync.Mutex
	states map[string]*sessionState

	// Workers run on rootCtx so processing survives client disconnects.
	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// sessionState is the per-session bookkeeping. All fields are guarded
// by Orchestrator.mu.
type sessionState struct {
	pending     []domain.PendingMessage
	processing  bool
	subscribers []chan domain.Event
	// resumeID is the engine identifier used for the next invocation.
	// It starts as the client-visible session id and switches to the
	// engine's canonical id after reconciliation.
	resumeID string
}

// Config configures an Orchestrator.
type Config struct {
	Engine        engine.Engine
	Sessions      service.SessionService
	Transcripts   *transcript.Store
	Committer     vcs.Committer
	WorkspacePath string
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session service is required")
	}
	if cfg.Transcripts == nil {
		return nil, errors.New("transcript store is required")
	}
	if cfg.Committer == nil {
		cfg.Committer = vcs.NopCommitter{}
	}
	if cfg.WorkspacePath == "" {
		cfg.WorkspacePath = "."
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		engine:        cfg.Engine,
		sessions:      cfg.Sessions,
		transcripts:   cfg.Transcripts,
		committer:     cfg.Committer,
		workspacePath: cfg.WorkspacePath,
		states:        make(map[string]*sessionState),
		rootCtx:       rootCtx,
		cancel:        cancel,
	}, nil
}

// Enqueue queues a user message for processing and returns its message
// id. The user_message event reaches current subscribers immediately,
// before processing begins. If no worker is draining the session's
// queue, one is started; otherwise the running worker picks the message
// up when it loops back.
func (o *Orchestrator) Enqueue(ctx context.Context, sessionID, content string, msgCtx *domain.MessageContext) (string, error) {
	if err := o.sessions.EnsureSession(ctx, sessionID); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("msg-%d", id.New())

	o.mu.Lock()
	st := o.stateLocked(sessionID)
	st.pending = append(st.pending, domain.PendingMessage{
		ID:      messageID,
		Content: content,
		Context: msgCtx,
	})
	o.publishLocked(st, domain.Event{
		Type:      domain.EventTypeUserMessage,
		Message:   content,
		MessageID: messageID,
	})
	if !st.processing {
		st.processing = true
		o.wg.Add(1)
		go o.runWorker(sessionID)
	}
	o.mu.Unlock()

	slog.InfoContext(ctx, "message queued", "session_id", sessionID, "message_id", messageID)
	return messageID, nil
}

// Subscribe registers a live event feed for a session. Registration
// takes effect before Subscribe returns, so a caller that subscribes
// first and reads history second cannot miss an event in between.
func (o *Orchestrator) Subscribe(sessionID string) chan domain.Event {
	ch := make(chan domain.Event, subscriberBuffer)
	o.mu.Lock()
	st := o.stateLocked(sessionID)
	st.subscribers = append(st.subscribers, ch)
	o.mu.Unlock()
	return ch
}

// Unsubscribe removes a previously registered channel. No-op if the
// channel is not subscribed. The channel is left open; readers stop on
// their own context.
func (o *Orchestrator) Unsubscribe(sessionID string, ch chan domain.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.states[sessionID]
	if !ok {
		return
	}
	for i, sub := range st.subscribers {
		if sub == ch {
			st.subscribers = append(st.subscribers[:i], st.subscribers[i+1:]...)
			return
		}
	}
}

// Processing reports whether a worker is currently draining the
// session's queue.
func (o *Orchestrator) Processing(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.states[sessionID]
	return ok && st.processing
}

// Close stops in-flight workers and waits for them to wind down, or
// until ctx expires.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stateLocked returns the session's bookkeeping, creating it on first
// use. The resume id starts as the session id itself: the engine
// resumes it when its transcript exists and mints a fresh canonical id
// otherwise. Callers must hold mu.
func (o *Orchestrator) stateLocked(sessionID string) *sessionState {
	st, ok := o.states[sessionID]
	if !ok {
		st = &sessionState{resumeID: sessionID}
		o.states[sessionID] = st
	}
	return st
}

func (o *Orchestrator) publish(sessionID string, ev domain.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.states[sessionID]
	if !ok {
		return
	}
	o.publishLocked(st, ev)
}

// publishLocked stamps the event and delivers it to every subscriber
// without blocking. Callers must hold mu.
func (o *Orchestrator) publishLocked(st *sessionState, ev domain.Event) {
	ev = ev.Stamped()
	for _, sub := range st.subscribers {
		select {
		case sub <- ev:
		default:
		}
	}
}
