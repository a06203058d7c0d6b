package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"parley.app/switchboard/internal/http/dto"
	"parley.app/switchboard/internal/service"
	"parley.app/switchboard/internal/store"
)

type SessionHandler struct {
	sessionService service.SessionService
}

func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func (h *SessionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	includeArchived, _ := strconv.ParseBool(c.DefaultQuery("include_archived", "false"))
	opts := service.ListOptions{
		IncludeArchived: includeArchived,
		EntityType:      c.Query("entity_type"),
	}

	sessions, err := h.sessionService.List(ctx, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}

	out := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, *dto.ToSessionResponse(&sessions[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *SessionHandler) GetByID(c *gin.Context) {
	ctx := c.Request.Context()

	session, err := h.sessionService.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get session"})
		return
	}

	c.JSON(http.StatusOK, dto.ToSessionResponse(session))
}

func (h *SessionHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	// An empty body is a valid request for an untitled session.
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionService.Create(ctx, req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, dto.ToSessionResponse(session))
}

func (h *SessionHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionService.Update(ctx, c.Param("id"), req.Patch())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update session"})
		return
	}

	c.JSON(http.StatusOK, dto.ToSessionResponse(session))
}

func (h *SessionHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if err := h.sessionService.Delete(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "session_id": id})
}

func (h *SessionHandler) History(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	messages, err := h.sessionService.History(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	c.JSON(http.StatusOK, dto.HistoryResponse{
		SessionID: id,
		Messages:  dto.ToMessageResponses(messages),
	})
}
