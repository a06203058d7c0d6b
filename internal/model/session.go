package model

import "time"

// Session is a registry entry describing one conversation.
// ID is canonical once the engine has reported its own session id;
// provisional ids issued before that point are tracked as aliases.
type Session struct {
	ID            string    `json:"id"`
	WorkspacePath string    `json:"workspace_path"`
	Title         *string   `json:"title,omitempty"`
	Archived      bool      `json:"archived"`
	ProjectID     *string   `json:"project_id,omitempty"`
	EntityType    *string   `json:"entity_type,omitempty"`
	EntityID      *string   `json:"entity_id,omitempty"`
	SourceIDs     []string  `json:"source_ids,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SessionAlias maps a superseded session id to its canonical id.
type SessionAlias struct {
	AliasID     string    `json:"alias_id"`
	CanonicalID string    `json:"canonical_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionPatch carries partial updates for a session. Nil fields are
// left untouched.
type SessionPatch struct {
	Title      *string
	Archived   *bool
	ProjectID  *string
	EntityType *string
	EntityID   *string
	SourceIDs  []string
}
