package store

import (
	"context"
	"errors"

	"parley.app/switchboard/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// SessionStore defines the contract for session registry data access
type SessionStore interface {
	GetByID(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context) ([]model.Session, error)
	Upsert(ctx context.Context, session *model.Session) error
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	GetAlias(ctx context.Context, aliasID string) (*model.SessionAlias, error)
	CreateAlias(ctx context.Context, aliasID, canonicalID string) error
	ListAliases(ctx context.Context, canonicalID string) ([]model.SessionAlias, error)
}
