package orchestrator_test

import (
	"context"
	"sync"

	"parley.app/switchboard/internal/domain"
	"parley.app/switchboard/internal/engine"
	"parley.app/switchboard/internal/model"
	"parley.app/switchboard/internal/service"
	"parley.app/switchboard/internal/store"
)

type fakeEngine struct {
	mu       sync.Mutex
	requests []engine.InvokeRequest
	invokeFn func(call int, req engine.InvokeRequest) (<-chan engine.Event, error)
}

var _ engine.Engine = (*fakeEngine)(nil)

func (f *fakeEngine) Invoke(_ context.Context, req engine.InvokeRequest) (<-chan engine.Event, error) {
	f.mu.Lock()
	call := len(f.requests)
	f.requests = append(f.requests, req)
	fn := f.invokeFn
	f.mu.Unlock()

	if fn != nil {
		return fn(call, req)
	}
	return eventChan(engine.Event{
		Kind:       engine.EventResult,
		SessionID:  req.ResumeID,
		ResultText: "ok",
	}), nil
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeEngine) request(i int) engine.InvokeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

// eventChan returns a closed channel preloaded with the given events,
// the shape a completed engine run leaves behind.
func eventChan(evs ...engine.Event) <-chan engine.Event {
	ch := make(chan engine.Event, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}

type mockSessions struct {
	mu         sync.Mutex
	ensured    []string
	updates    []model.SessionPatch
	touched    []string
	reconciled [][2]string

	updateFn          func(ctx context.Context, id string, patch model.SessionPatch) (*model.Session, error)
	ensureFn          func(ctx context.Context, id string) error
	recordCanonicalFn func(ctx context.Context, provisionalID, canonicalID string) error
	touchFn           func(ctx context.Context, id string) error
}

var _ service.SessionService = (*mockSessions)(nil)

func (m *mockSessions) List(_ context.Context, _ service.ListOptions) ([]model.Session, error) {
	return nil, nil
}

func (m *mockSessions) Get(_ context.Context, _ string) (*model.Session, error) {
	return nil, store.ErrNotFound
}

func (m *mockSessions) Create(_ context.Context, title *string) (*model.Session, error) {
	return &model.Session{Title: title}, nil
}

func (m *mockSessions) Update(ctx context.Context, id string, patch model.SessionPatch) (*model.Session, error) {
	m.mu.Lock()
	m.updates = append(m.updates, patch)
	m.mu.Unlock()
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return &model.Session{ID: id}, nil
}

func (m *mockSessions) Delete(_ context.Context, _ string) error {
	return nil
}

func (m *mockSessions) History(_ context.Context, _ string) ([]domain.TranscriptMessage, error) {
	return nil, nil
}

func (m *mockSessions) Resolve(_ context.Context, id string) (string, error) {
	return id, nil
}

func (m *mockSessions) EnsureSession(ctx context.Context, id string) error {
	m.mu.Lock()
	m.ensured = append(m.ensured, id)
	m.mu.Unlock()
	if m.ensureFn != nil {
		return m.ensureFn(ctx, id)
	}
	return nil
}

func (m *mockSessions) RecordCanonical(ctx context.Context, provisionalID, canonicalID string) error {
	m.mu.Lock()
	m.reconciled = append(m.reconciled, [2]string{provisionalID, canonicalID})
	m.mu.Unlock()
	if m.recordCanonicalFn != nil {
		return m.recordCanonicalFn(ctx, provisionalID, canonicalID)
	}
	return nil
}

func (m *mockSessions) Touch(ctx context.Context, id string) error {
	m.mu.Lock()
	m.touched = append(m.touched, id)
	m.mu.Unlock()
	if m.touchFn != nil {
		return m.touchFn(ctx, id)
	}
	return nil
}

func (m *mockSessions) ensuredIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ensured...)
}

func (m *mockSessions) appliedPatches() []model.SessionPatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SessionPatch(nil), m.updates...)
}

func (m *mockSessions) touchedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.touched...)
}

func (m *mockSessions) reconciledPairs() [][2]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]string(nil), m.reconciled...)
}

type mockCommitter struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockCommitter) Commit(_ context.Context, _ string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *mockCommitter) committed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}
