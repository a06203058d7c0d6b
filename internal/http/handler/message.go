package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parley.app/switchboard/internal/domain"
	"parley.app/switchboard/internal/http/dto"
	"parley.app/switchboard/internal/service"
)

const defaultKeepalive = 15 * time.Second

// MessageQueue is the orchestrator surface the HTTP layer depends on.
type MessageQueue interface {
	Enqueue(ctx context.Context, sessionID, content string, msgCtx *domain.MessageContext) (string, error)
	Subscribe(sessionID string) chan domain.Event
	Unsubscribe(sessionID string, ch chan domain.Event)
}

type MessageHandler struct {
	queue          MessageQueue
	sessionService service.SessionService
	keepalive      time.Duration
}

func NewMessageHandler(queue MessageQueue, sessionService service.SessionService, keepalive time.Duration) *MessageHandler {
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}
	return &MessageHandler{
		queue:          queue,
		sessionService: sessionService,
		keepalive:      keepalive,
	}
}

func (h *MessageHandler) Send(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messageID, err := h.queue.Enqueue(ctx, sessionID, req.Message, req.Context.Domain())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue message"})
		return
	}

	c.JSON(http.StatusAccepted, dto.SendMessageResponse{Status: "queued", MessageID: messageID})
}

// Events streams session activity as newline-delimited JSON. The client
// gets a connected frame, a history snapshot, then live events as they
// happen, with keepalive frames whenever the stream sits idle.
func (h *MessageHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sub := h.queue.Subscribe(sessionID)
	defer h.queue.Unsubscribe(sessionID, sub)

	write := func(frame any) bool {
		data, err := json.Marshal(frame)
		if err != nil {
			slog.ErrorContext(ctx, "failed to encode stream frame", "error", err)
			return false
		}
		if _, err := c.Writer.Write(append(data, '\n')); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}

	if !write(domain.Event{Type: domain.EventTypeConnected, SessionID: sessionID}.Stamped()) {
		return
	}

	// The subscription is already live, so anything published while the
	// snapshot is being read waits in the channel buffer instead of
	// being lost.
	messages, err := h.sessionService.History(ctx, sessionID)
	if err != nil {
		slog.WarnContext(ctx, "failed to load history for stream", "session_id", sessionID, "error", err)
		messages = nil
	}
	if !write(dto.NewHistoryFrame(messages)) {
		return
	}

	idle := time.NewTimer(h.keepalive)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub:
			if !write(ev) {
				return
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(h.keepalive)
		case <-idle.C:
			if !write(domain.Event{Type: domain.EventTypeKeepalive}.Stamped()) {
				return
			}
			idle.Reset(h.keepalive)
		}
	}
}
