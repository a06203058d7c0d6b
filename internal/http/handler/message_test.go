package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"parley.app/switchboard/internal/domain"
	"parley.app/switchboard/internal/http/handler"
)

var _ = Describe("MessageHandler", func() {
	var (
		router *gin.Engine
		svc    *mockSessionService
		queue  *mockQueue
	)

	newRouter := func(keepalive time.Duration) {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		h := handler.NewMessageHandler(queue, svc, keepalive)
		router.POST("/sessions/:id/messages", h.Send)
		router.GET("/sessions/:id/events", h.Events)
	}

	BeforeEach(func() {
		svc = &mockSessionService{}
		queue = newMockQueue()
		newRouter(25 * time.Millisecond)
	})

	Describe("Send", func() {
		It("returns 202 with the queued message id", func() {
			var gotSession, gotContent string
			queue.enqueueFn = func(_ context.Context, sessionID, content string, _ *domain.MessageContext) (string, error) {
				gotSession, gotContent = sessionID, content
				return "msg-42", nil
			}

			body, _ := json.Marshal(map[string]string{"message": "Summarize my notes"})
			req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/messages", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(gotSession).To(Equal("sess-1"))
			Expect(gotContent).To(Equal("Summarize my notes"))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["status"]).To(Equal("queued"))
			Expect(resp["message_id"]).To(Equal("msg-42"))
		})

		It("forwards the client context", func() {
			var got *domain.MessageContext
			queue.enqueueFn = func(_ context.Context, _, _ string, msgCtx *domain.MessageContext) (string, error) {
				got = msgCtx
				return "msg-1", nil
			}

			body, _ := json.Marshal(map[string]any{
				"message": "What does this entity link to?",
				"context": map[string]any{
					"view":        "graph",
					"entity_type": "note",
					"entity_id":   "note-7",
					"source_ids":  []string{"doc-1", "doc-2"},
				},
			})
			req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/messages", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(got).NotTo(BeNil())
			Expect(got.View).To(Equal("graph"))
			Expect(got.EntityType).To(Equal("note"))
			Expect(got.EntityID).To(Equal("note-7"))
			Expect(got.SourceIDs).To(Equal([]string{"doc-1", "doc-2"}))
		})

		It("passes a nil context when the client sends none", func() {
			called := false
			queue.enqueueFn = func(_ context.Context, _, _ string, msgCtx *domain.MessageContext) (string, error) {
				called = true
				Expect(msgCtx).To(BeNil())
				return "msg-1", nil
			}

			body, _ := json.Marshal(map[string]string{"message": "hello"})
			req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/messages", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(called).To(BeTrue())
		})

		It("returns 400 when the message is missing", func() {
			body, _ := json.Marshal(map[string]string{})
			req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/messages", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 500 when enqueueing fails", func() {
			queue.enqueueFn = func(_ context.Context, _, _ string, _ *domain.MessageContext) (string, error) {
				return "", errors.New("boom")
			}

			body, _ := json.Marshal(map[string]string{"message": "hello"})
			req := httptest.NewRequest(http.MethodPost, "/sessions/sess-1/messages", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	Describe("Events", func() {
		decodeFrames := func(body string) []map[string]any {
			var frames []map[string]any
			for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
				if line == "" {
					continue
				}
				var frame map[string]any
				Expect(json.Unmarshal([]byte(line), &frame)).To(Succeed(), "line: %s", line)
				frames = append(frames, frame)
			}
			return frames
		}

		serve := func(timeout time.Duration) *httptest.ResponseRecorder {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			req := httptest.NewRequest(http.MethodGet, "/sessions/sess-1/events", nil).WithContext(ctx)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			return w
		}

		It("streams connected, history, live events, then keepalives", func() {
			svc.historyFn = func(_ context.Context, _ string) ([]domain.TranscriptMessage, error) {
				return []domain.TranscriptMessage{
					{Role: domain.RoleUser, Content: "Earlier question"},
					{Role: domain.RoleAssistant, Content: "Earlier answer"},
				}, nil
			}
			// Published between subscribe and snapshot; must not be lost.
			queue.events <- domain.Event{
				Type:      domain.EventTypeUserMessage,
				SessionID: "sess-1",
				Message:   "Summarize my notes",
				MessageID: "msg-7",
			}.Stamped()

			w := serve(120 * time.Millisecond)

			Expect(w.Header().Get("Content-Type")).To(Equal("application/x-ndjson"))
			Expect(w.Header().Get("Cache-Control")).To(Equal("no-cache"))
			Expect(w.Header().Get("X-Accel-Buffering")).To(Equal("no"))

			frames := decodeFrames(w.Body.String())
			Expect(len(frames)).To(BeNumerically(">=", 4))

			Expect(frames[0]["type"]).To(Equal("connected"))
			Expect(frames[0]["session_id"]).To(Equal("sess-1"))

			Expect(frames[1]["type"]).To(Equal("history"))
			messages, ok := frames[1]["messages"].([]any)
			Expect(ok).To(BeTrue())
			Expect(messages).To(HaveLen(2))

			Expect(frames[2]["type"]).To(Equal("user_message"))
			Expect(frames[2]["message"]).To(Equal("Summarize my notes"))
			Expect(frames[2]["message_id"]).To(Equal("msg-7"))

			keepalives := 0
			for _, frame := range frames[3:] {
				Expect(frame["type"]).To(Equal("keepalive"))
				keepalives++
			}
			Expect(keepalives).To(BeNumerically(">=", 1))

			for _, frame := range frames {
				ts, ok := frame["timestamp"].(string)
				Expect(ok).To(BeTrue(), "frame %v has no timestamp", frame["type"])
				Expect(ts).NotTo(HavePrefix("0001-01-01"))
			}
		})

		It("streams an empty history when the snapshot fails", func() {
			svc.historyFn = func(_ context.Context, _ string) ([]domain.TranscriptMessage, error) {
				return nil, errors.New("corrupt transcript")
			}

			w := serve(40 * time.Millisecond)

			frames := decodeFrames(w.Body.String())
			Expect(len(frames)).To(BeNumerically(">=", 2))
			Expect(frames[1]["type"]).To(Equal("history"))
			messages, ok := frames[1]["messages"].([]any)
			Expect(ok).To(BeTrue())
			Expect(messages).To(BeEmpty())
		})

		It("keeps an idle stream alive with keepalive frames", func() {
			w := serve(90 * time.Millisecond)

			frames := decodeFrames(w.Body.String())
			keepalives := 0
			for _, frame := range frames {
				if frame["type"] == "keepalive" {
					keepalives++
				}
			}
			Expect(keepalives).To(BeNumerically(">=", 2))
		})

		It("unsubscribes when the client disconnects", func() {
			serve(40 * time.Millisecond)

			Expect(queue.unsubscribedIDs()).To(Equal([]string{"sess-1"}))
		})
	})
})
