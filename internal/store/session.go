package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"parley.app/switchboard/core/db/sqlc"
	"parley.app/switchboard/internal/model"
)

type sessionStore struct {
	queries *sqlc.Queries
}

func newSessionStore(queries *sqlc.Queries) SessionStore {
	return &sessionStore{queries: queries}
}

func (s *sessionStore) GetByID(ctx context.Context, id string) (*model.Session, error) {
	row, err := s.queries.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toSessionModel(row), nil
}

func (s *sessionStore) List(ctx context.Context) ([]model.Session, error) {
	rows, err := s.queries.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	sessions := make([]model.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, *toSessionModel(row))
	}
	return sessions, nil
}

func (s *sessionStore) Upsert(ctx context.Context, session *model.Session) error {
	row, err := s.queries.UpsertSession(ctx, sqlc.UpsertSessionParams{
		ID:            session.ID,
		WorkspacePath: session.WorkspacePath,
		Title:         session.Title,
		Archived:      session.Archived,
		ProjectID:     session.ProjectID,
		EntityType:    session.EntityType,
		EntityID:      session.EntityID,
		SourceIds:     session.SourceIDs,
	})
	if err != nil {
		return err
	}
	*session = *toSessionModel(row)
	return nil
}

func (s *sessionStore) Touch(ctx context.Context, id string) error {
	return s.queries.TouchSession(ctx, id)
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	return s.queries.DeleteSession(ctx, id)
}

func (s *sessionStore) GetAlias(ctx context.Context, aliasID string) (*model.SessionAlias, error) {
	row, err := s.queries.GetSessionAlias(ctx, aliasID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toSessionAliasModel(row), nil
}

func (s *sessionStore) CreateAlias(ctx context.Context, aliasID, canonicalID string) error {
	return s.queries.CreateSessionAlias(ctx, sqlc.CreateSessionAliasParams{
		AliasID:     aliasID,
		CanonicalID: canonicalID,
	})
}

func (s *sessionStore) ListAliases(ctx context.Context, canonicalID string) ([]model.SessionAlias, error) {
	rows, err := s.queries.ListSessionAliases(ctx, canonicalID)
	if err != nil {
		return nil, err
	}
	aliases := make([]model.SessionAlias, 0, len(rows))
	for _, row := range rows {
		aliases = append(aliases, *toSessionAliasModel(row))
	}
	return aliases, nil
}

func toSessionModel(row sqlc.Session) *model.Session {
	return &model.Session{
		ID:            row.ID,
		WorkspacePath: row.WorkspacePath,
		Title:         row.Title,
		Archived:      row.Archived,
		ProjectID:     row.ProjectID,
		EntityType:    row.EntityType,
		EntityID:      row.EntityID,
		SourceIDs:     row.SourceIds,
		CreatedAt:     row.CreatedAt.Time,
		UpdatedAt:     row.UpdatedAt.Time,
	}
}

func toSessionAliasModel(row sqlc.SessionAlias) *model.SessionAlias {
	return &model.SessionAlias{
		AliasID:     row.AliasID,
		CanonicalID: row.CanonicalID,
		CreatedAt:   row.CreatedAt.Time,
	}
}
