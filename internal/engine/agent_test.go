package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"parley.app/switchboard/common/llm"
	"parley.app/switchboard/internal/domain"
	"parley.app/switchboard/internal/engine"
	"parley.app/switchboard/internal/transcript"
)

type fakeLLM struct {
	mu       sync.Mutex
	requests []llm.AgentRequest
	stream   func(call int, req llm.AgentRequest, handler llm.StreamHandler) (*llm.AgentResponse, error)
}

func (f *fakeLLM) StreamWithTools(ctx context.Context, req llm.AgentRequest, handler llm.StreamHandler) (*llm.AgentResponse, error) {
	f.mu.Lock()
	call := len(f.requests)
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.stream(call, req, handler)
}

func (f *fakeLLM) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	return f.StreamWithTools(ctx, req, llm.StreamHandler{})
}

func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) request(call int) llm.AgentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[call]
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func collect(ch <-chan engine.Event) []engine.Event {
	var events []engine.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func deltaText(events []engine.Event) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Kind == engine.EventTextDelta {
			b.WriteString(ev.Text)
		}
	}
	return b.String()
}

func kinds(events []engine.Event) []engine.EventKind {
	out := make([]engine.EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

var _ = Describe("Agent", func() {
	var (
		ctx       context.Context
		client    *fakeLLM
		store     *transcript.Store
		agent     *engine.Agent
		workspace string
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &fakeLLM{}
		store = transcript.NewStore(GinkgoT().TempDir())
		workspace = GinkgoT().TempDir()

		var err error
		agent, err = engine.New(engine.Config{Client: client, Transcripts: store})
		Expect(err).NotTo(HaveOccurred())
	})

	invoke := func(req engine.InvokeRequest) []engine.Event {
		if req.WorkspacePath == "" {
			req.WorkspacePath = workspace
		}
		ch, err := agent.Invoke(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		return collect(ch)
	}

	Describe("New", func() {
		It("requires an llm client", func() {
			_, err := engine.New(engine.Config{Transcripts: store})
			Expect(err).To(MatchError(ContainSubstring("llm client")))
		})

		It("requires a transcript store", func() {
			_, err := engine.New(engine.Config{Client: client})
			Expect(err).To(MatchError(ContainSubstring("transcript store")))
		})
	})

	Describe("Invoke", func() {
		It("rejects blank messages", func() {
			_, err := agent.Invoke(ctx, engine.InvokeRequest{Message: "   ", WorkspacePath: workspace})
			Expect(err).To(MatchError(ContainSubstring("message is empty")))
		})

		It("streams deltas and finishes with a result", func() {
			client.stream = func(call int, req llm.AgentRequest, handler llm.StreamHandler) (*llm.AgentResponse, error) {
				handler.OnTextDelta("Hel")
				handler.OnTextDelta("lo")
				return &llm.AgentResponse{Content: "Hello", FinishReason: "stop"}, nil
			}

			events := invoke(engine.InvokeRequest{Message: "Hi"})

			Expect(kinds(events)).To(Equal([]engine.EventKind{
				engine.EventTextDelta,
				engine.EventTextDelta,
				engine.EventAssistantText,
				engine.EventResult,
			}))

			final := events[len(events)-1]
			Expect(final.IsError).To(BeFalse())
			Expect(final.SessionID).NotTo(BeEmpty())
			Expect(final.ResultText).To(Equal("Hello"))
			Expect(deltaText(events)).To(Equal("Hello"))
		})

		It("keeps concatenated deltas equal to the cumulative text across turns", func() {
			client.stream = func(call int, req llm.AgentRequest, handler llm.StreamHandler) (*llm.AgentResponse, error) {
				if call == 0 {
					handler.OnTextDelta("One")
					return &llm.AgentResponse{
						Content:      "One",
						ToolCalls:    []llm.ToolCall{{ID: "call-1", Name: "list_dir", Arguments: "{}"}},
						FinishReason: "tool_calls",
					}, nil
				}
				handler.OnTextDelta("Two")
				return &llm.AgentResponse{Content: "Two", FinishReason: "stop"}, nil
			}

			events := invoke(engine.InvokeRequest{Message: "Go"})

			var cumulative []string
			for _, ev := range events {
				if ev.Kind == engine.EventAssistantText {
					cumulative = append(cumulative, ev.Text)
				}
			}
			Expect(cumulative).To(Equal([]string{"One", "One\n\nTwo"}))
			Expect(deltaText(events)).To(Equal("One\n\nTwo"))
			Expect(events[len(events)-1].ResultText).To(Equal("One\n\nTwo"))
		})

		It("forwards tool lifecycle events and feeds tool output back to the model", func() {
			Expect(os.WriteFile(filepath.Join(workspace, "notes.md"), []byte("meeting notes\n"), 0o644)).To(Succeed())

			client.stream = func(call int, req llm.AgentRequest, handler llm.StreamHandler) (*llm.AgentResponse, error) {
				if call == 0 {
					handler.OnToolUseStart("read_file")
					handler.OnToolUseStop("read_file")
					return &llm.AgentResponse{
						ToolCalls:    []llm.ToolCall{{ID: "call-1", Name: "read_file", Arguments: `{"path":"notes.md"}`}},
						FinishReason: "tool_calls",
					}, nil
				}
				handler.OnTextDelta("done")
				return &llm.AgentResponse{Content: "done", FinishReason: "stop"}, nil
			}

			events := invoke(engine.InvokeRequest{Message: "Read my notes"})

			Expect(kinds(events)).To(Equal([]engine.EventKind{
				engine.EventToolUseStart,
				engine.EventToolUseStop,
				engine.EventTextDelta,
				engine.EventAssistantText,
				engine.EventResult,
			}))
			Expect(events[0].Tool).To(Equal("read_file"))

			followup := client.request(1)
			last := followup.Messages[len(followup.Messages)-1]
			Expect(last.Role).To(Equal("tool"))
			Expect(last.ToolCallID).To(Equal("call-1"))
			Expect(last.Content).To(ContainSubstring("meeting notes"))
		})

		It("records the conversation in the transcript", func() {
			Expect(os.WriteFile(filepath.Join(workspace, "notes.md"), []byte("meeting notes\n"), 0o644)).To(Succeed())

			client.stream = func(call int, req llm.AgentRequest, handler llm.StreamHandler) (*llm.AgentResponse, error) {
				if call == 0 {
					return &llm.AgentResponse{
						ToolCalls:    []llm.ToolCall{{ID: "call-1", Name: "read_file", Arguments: `{"path":"notes.md"}`}},
						FinishReason: "tool_calls",
					}, nil
				}
				return &llm.AgentResponse{Content: "done", FinishReason: "stop"}, nil
			}

			events := invoke(engine.InvokeRequest{Message: "Read my notes"})
			sessionID := events[len(events)-1].SessionID

			history, err := transcript.NewReader(store).History(workspace, sessionID)
			Expect(err).NotTo(HaveOccurred())

			roles := make([]domain.MessageRole, len(history))
			for i, msg := range history {
				roles[i] = msg.Role
			}
			Expect(roles).To(Equal([]domain.MessageRole{
				domain.RoleUser,
				domain.RoleToolUse,
				domain.RoleToolResult,
				domain.RoleAssistant,
			}))
			Expect(history[0].Content).To(Equal("Read my notes"))
			Expect(*history[1].ToolName).To(Equal("read_file"))
			Expect(history[2].Content).To(ContainSubstring("meeting notes"))
			Expect(history[3].Content).To(Equal("done"))
		})

		It("resumes an existing session with its prior text", func() {
			client.stream = func(call int, req llm.AgentRequest, handler llm.StreamHandler) (*llm.AgentResponse, error) {
				return &llm.AgentResponse{Content: "Hello", FinishReason: "stop"}, nil
			}

			first := invoke(engine.InvokeRequest{Message: "First"})
			sessionID := first[len(first)-1].SessionID

			second := invoke(engine.InvokeRequest{Message: "Second", ResumeID: sessionID})
			Expect(second[len(second)-1].SessionID).To(Equal(sessionID))

			resumed := client.request(1)
			Expect(resumed.Messages).To(HaveLen(4))
			Expect(resumed.Messages[0].Role).To(Equal("system"))
			Expect(resumed.Messages[1]).To(Equal(llm.Message{Role: "user", Content: "First"}))
			Expect(resumed.Messages[2]).To(Equal(llm.Message{Role: "assistant", Content: "Hello"}))
			Expect(resumed.Messages[3]).To(Equal(llm.Message{Role: "user", Content: "Second"}))
		})

		It("starts a fresh session when the resume id has no transcript", func() {
			client.stream = func(call int, req llm.AgentRequest, handler llm.StreamHandler) (*llm.AgentResponse, error) {
				return &llm.AgentResponse{Content: "Hello", FinishReason: "stop"}, nil
			}

			events := invoke(engine.InvokeRequest{Message: "Hi", ResumeID: "never-seen"})
			Expect(events[len(events)-1].SessionID).NotTo(Equal("never-seen"))
		})

		It("attaches the entity the user is viewing to the system prompt", func() {
			Expect(os.MkdirAll(filepath.Join(workspace, "tasks"), 0o755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(workspace, "tasks", "t-1.md"), []byte("# Plan Q3\n"), 0o644)).To(Succeed())

			client.stream = func(call int, req llm.AgentRequest, handler llm.StreamHandler) (*llm.AgentResponse, error) {
				return &llm.AgentResponse{Content: "ok", FinishReason: "stop"}, nil
			}

			invoke(engine.InvokeRequest{
				Message: "What is this?",
				Context: &domain.MessageContext{EntityType: "tasks", EntityID: "t-1"},
			})

			system := client.request(0).Messages[0]
			Expect(system.Role).To(Equal("system"))
			Expect(system.Content).To(ContainSubstring("tasks/t-1.md"))
			Expect(system.Content).To(ContainSubstring("# Plan Q3"))
		})

		It("reports a mid-stream failure as an error result", func() {
			client.stream = func(call int, req llm.AgentRequest, handler llm.StreamHandler) (*llm.AgentResponse, error) {
				handler.OnTextDelta("partial")
				return nil, errors.New("stream broke")
			}

			events := invoke(engine.InvokeRequest{Message: "Hi"})

			Expect(client.callCount()).To(Equal(1))
			final := events[len(events)-1]
			Expect(final.Kind).To(Equal(engine.EventResult))
			Expect(final.IsError).To(BeTrue())
			Expect(final.ResultText).To(Equal("stream broke"))
		})

		It("retries a transient failure when nothing was streamed yet", func() {
			client.stream = func(call int, req llm.AgentRequest, handler llm.StreamHandler) (*llm.AgentResponse, error) {
				if call == 0 {
					return nil, errors.New("connection reset")
				}
				return &llm.AgentResponse{Content: "recovered", FinishReason: "stop"}, nil
			}

			events := invoke(engine.InvokeRequest{Message: "Hi"})

			Expect(client.callCount()).To(Equal(2))
			final := events[len(events)-1]
			Expect(final.IsError).To(BeFalse())
			Expect(final.ResultText).To(Equal("recovered"))
		})

		It("stops at the turn limit", func() {
			limited, err := engine.New(engine.Config{Client: client, Transcripts: store, MaxTurns: 2})
			Expect(err).NotTo(HaveOccurred())

			client.stream = func(call int, req llm.AgentRequest, handler llm.StreamHandler) (*llm.AgentResponse, error) {
				return &llm.AgentResponse{
					Content:      "more",
					ToolCalls:    []llm.ToolCall{{ID: "x", Name: "list_dir", Arguments: "{}"}},
					FinishReason: "tool_calls",
				}, nil
			}

			ch, err := limited.Invoke(ctx, engine.InvokeRequest{Message: "Hi", WorkspacePath: workspace})
			Expect(err).NotTo(HaveOccurred())
			events := collect(ch)

			Expect(client.callCount()).To(Equal(2))
			final := events[len(events)-1]
			Expect(final.Kind).To(Equal(engine.EventResult))
			Expect(final.IsError).To(BeFalse())
			Expect(final.ResultText).To(Equal("more\n\nmore"))
		})
	})
})
