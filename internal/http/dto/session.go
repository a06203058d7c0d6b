package dto

import (
	"time"

	"parley.app/switchboard/internal/domain"
	"parley.app/switchboard/internal/model"
)

type CreateSessionRequest struct {
	Title *string `json:"title,omitempty" binding:"omitempty,max=255"`
}

type UpdateSessionRequest struct {
	Title      *string  `json:"title,omitempty" binding:"omitempty,max=255"`
	Archived   *bool    `json:"archived,omitempty"`
	ProjectID  *string  `json:"project_id,omitempty"`
	EntityType *string  `json:"entity_type,omitempty"`
	EntityID   *string  `json:"entity_id,omitempty"`
	SourceIDs  []string `json:"source_ids,omitempty"`
}

func (r UpdateSessionRequest) Patch() model.SessionPatch {
	return model.SessionPatch{
		Title:      r.Title,
		Archived:   r.Archived,
		ProjectID:  r.ProjectID,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		SourceIDs:  r.SourceIDs,
	}
}

type SessionResponse struct {
	ID         string    `json:"id"`
	Title      *string   `json:"title"`
	Archived   bool      `json:"archived"`
	ProjectID  *string   `json:"project_id,omitempty"`
	EntityType *string   `json:"entity_type,omitempty"`
	EntityID   *string   `json:"entity_id,omitempty"`
	SourceIDs  []string  `json:"source_ids,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func ToSessionResponse(s *model.Session) *SessionResponse {
	return &SessionResponse{
		ID:         s.ID,
		Title:      s.Title,
		Archived:   s.Archived,
		ProjectID:  s.ProjectID,
		EntityType: s.EntityType,
		EntityID:   s.EntityID,
		SourceIDs:  s.SourceIDs,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

type MessageResponse struct {
	Role     string  `json:"role"`
	Content  string  `json:"content"`
	ToolName *string `json:"tool_name,omitempty"`
}

// ToMessageResponses never returns nil so the messages field encodes as
// an empty array rather than null.
func ToMessageResponses(messages []domain.TranscriptMessage) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageResponse{
			Role:     string(m.Role),
			Content:  m.Content,
			ToolName: m.ToolName,
		})
	}
	return out
}

type HistoryResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []MessageResponse `json:"messages"`
}

type SendMessageRequest struct {
	Message string          `json:"message" binding:"required,min=1"`
	Context *MessageContext `json:"context,omitempty"`
}

type MessageContext struct {
	View       string   `json:"view,omitempty"`
	EntityType string   `json:"entity_type,omitempty"`
	EntityID   string   `json:"entity_id,omitempty"`
	SourceIDs  []string `json:"source_ids,omitempty"`
}

func (m *MessageContext) Domain() *domain.MessageContext {
	if m == nil {
		return nil
	}
	return &domain.MessageContext{
		View:       m.View,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		SourceIDs:  m.SourceIDs,
	}
}

type SendMessageResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
}
