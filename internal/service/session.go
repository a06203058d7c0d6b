package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"parley.app/switchboard/internal/domain"
	"parley.app/switchboard/internal/model"
	"parley.app/switchboard/internal/store"
	"parley.app/switchboard/internal/transcript"
	"parley.app/switchboard/internal/vcs"
)

// ListOptions filters session listings.
type ListOptions struct {
	IncludeArchived bool
	// EntityType filters sessions by linked entity type. Empty matches
	// everything; the sentinel "null" matches only sessions without an
	// entity.
	EntityType string
}

// SessionService manages the session registry and its view over
// transcripts. A session is listable as soon as either a registry row
// or a transcript exists; ids superseded during reconciliation resolve
// through aliases.
type SessionService interface {
	List(ctx context.Context, opts ListOptions) ([]model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	Create(ctx context.Context, title *string) (*model.Session, error)
	Update(ctx context.Context, id string, patch model.SessionPatch) (*model.Session, error)
	Delete(ctx context.Context, id string) error
	History(ctx context.Context, id string) ([]domain.TranscriptMessage, error)
	// Resolve maps an aliased id to its canonical id. Unknown ids
	// resolve to themselves.
	Resolve(ctx context.Context, id string) (string, error)
	// EnsureSession registers a row for an externally supplied id
	// unless the id is already known directly or through an alias.
	EnsureSession(ctx context.Context, id string) error
	// RecordCanonical moves a provisional session to the canonical id
	// the engine minted: the canonical row inherits the provisional
	// metadata and the provisional id becomes an alias.
	RecordCanonical(ctx context.Context, provisionalID, canonicalID string) error
	Touch(ctx context.Context, id string) error
}

type sessionService struct {
	sessions      store.SessionStore
	txRunner      TxRunner
	transcripts   *transcript.Store
	reader        *transcript.Reader
	committer     vcs.Committer
	workspacePath string
}

func NewSessionService(
	sessions store.SessionStore,
	txRunner TxRunner,
	transcripts *transcript.Store,
	committer vcs.Committer,
	workspacePath string,
) SessionService {
	return &sessionService{
		sessions:      sessions,
		txRunner:      txRunner,
		transcripts:   transcripts,
		reader:        transcript.NewReader(transcripts),
		committer:     committer,
		workspacePath: workspacePath,
	}
}

func (s *sessionService) List(ctx context.Context, opts ListOptions) ([]model.Session, error) {
	rows, err := s.sessions.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list sessions", "error", err)
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	known := make(map[string]bool, len(rows))
	for _, row := range rows {
		known[row.ID] = true
	}

	// Transcripts without a registry row still count as sessions.
	transcriptIDs, err := s.transcripts.List(s.workspacePath)
	if err != nil {
		slog.WarnContext(ctx, "failed to list transcripts", "error", err)
	}
	for _, id := range transcriptIDs {
		if known[id] {
			continue
		}
		if _, aliasErr := s.sessions.GetAlias(ctx, id); aliasErr == nil {
			// Provisional id; its canonical row is already included.
			continue
		}
		rows = append(rows, *s.synthesize(id))
		known[id] = true
	}

	sessions := make([]model.Session, 0, len(rows))
	for _, session := range rows {
		if session.Archived && !opts.IncludeArchived {
			continue
		}
		if opts.EntityType != "" {
			if opts.EntityType == "null" {
				if session.EntityType != nil {
					continue
				}
			} else if session.EntityType == nil || *session.EntityType != opts.EntityType {
				continue
			}
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *sessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	if alias, aliasErr := s.sessions.GetAlias(ctx, id); aliasErr == nil {
		session, err = s.sessions.GetByID(ctx, alias.CanonicalID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("getting session: %w", err)
		}
	}

	if s.transcripts.Exists(s.workspacePath, id) {
		return s.synthesize(id), nil
	}
	return nil, store.ErrNotFound
}

func (s *sessionService) Create(ctx context.Context, title *string) (*model.Session, error) {
	session := &model.Session{
		ID:            uuid.NewString(),
		WorkspacePath: s.workspacePath,
		Title:         title,
	}
	if err := s.sessions.Upsert(ctx, session); err != nil {
		slog.ErrorContext(ctx, "failed to create session", "error", err)
		return nil, fmt.Errorf("creating session: %w", err)
	}

	slog.InfoContext(ctx, "session created", "session_id", session.ID)
	return session, nil
}

func (s *sessionService) Update(ctx context.Context, id string, patch model.SessionPatch) (*model.Session, error) {
	canonical, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	session, err := s.Get(ctx, canonical)
	if errors.Is(err, store.ErrNotFound) {
		// Metadata can be attached before the first message creates a
		// registry row.
		session = &model.Session{ID: canonical, WorkspacePath: s.workspacePath}
	} else if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		session.Title = patch.Title
	}
	if patch.Archived != nil {
		session.Archived = *patch.Archived
	}
	if patch.ProjectID != nil {
		session.ProjectID = patch.ProjectID
	}
	if patch.EntityType != nil {
		session.EntityType = patch.EntityType
	}
	if patch.EntityID != nil {
		session.EntityID = patch.EntityID
	}
	if patch.SourceIDs != nil {
		session.SourceIDs = patch.SourceIDs
	}

	if err := s.sessions.Upsert(ctx, session); err != nil {
		slog.ErrorContext(ctx, "failed to update session", "error", err, "session_id", canonical)
		return nil, fmt.Errorf("updating session: %w", err)
	}
	return session, nil
}

func (s *sessionService) Delete(ctx context.Context, id string) error {
	canonical, err := s.Resolve(ctx, id)
	if err != nil {
		return err
	}

	aliases, err := s.sessions.ListAliases(ctx, canonical)
	if err != nil {
		slog.WarnContext(ctx, "failed to list session aliases", "error", err, "session_id", canonical)
	}
	for _, alias := range aliases {
		if _, err := s.transcripts.Remove(s.workspacePath, alias.AliasID); err != nil {
			slog.WarnContext(ctx, "failed to remove aliased transcript", "error", err, "session_id", alias.AliasID)
		}
	}
	if _, err := s.transcripts.Remove(s.workspacePath, canonical); err != nil {
		slog.WarnContext(ctx, "failed to remove transcript", "error", err, "session_id", canonical)
	}

	if err := s.sessions.Delete(ctx, canonical); err != nil {
		slog.ErrorContext(ctx, "failed to delete session", "error", err, "session_id", canonical)
		return fmt.Errorf("deleting session: %w", err)
	}

	if err := s.committer.Commit(ctx, s.workspacePath, "Delete session: "+canonical); err != nil {
		slog.WarnContext(ctx, "failed to commit session deletion", "error", err, "session_id", canonical)
	}

	slog.InfoContext(ctx, "session deleted", "session_id", canonical)
	return nil
}

func (s *sessionService) History(ctx context.Context, id string) ([]domain.TranscriptMessage, error) {
	canonical, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.reader.History(s.workspacePath, canonical)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read session history", "error", err, "session_id", canonical)
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return messages, nil
}

func (s *sessionService) Resolve(ctx context.Context, id string) (string, error) {
	alias, err := s.sessions.GetAlias(ctx, id)
	if err == nil {
		return alias.CanonicalID, nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return id, nil
	}
	return "", fmt.Errorf("resolving session id: %w", err)
}

func (s *sessionService) EnsureSession(ctx context.Context, id string) error {
	_, err := s.sessions.GetByID(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("ensuring session: %w", err)
	}
	if _, aliasErr := s.sessions.GetAlias(ctx, id); aliasErr == nil {
		return nil
	}

	session := &model.Session{ID: id, WorkspacePath: s.workspacePath}
	if err := s.sessions.Upsert(ctx, session); err != nil {
		slog.ErrorContext(ctx, "failed to register session", "error", err, "session_id", id)
		return fmt.Errorf("ensuring session: %w", err)
	}

	slog.InfoContext(ctx, "session registered", "session_id", id)
	return nil
}

func (s *sessionService) RecordCanonical(ctx context.Context, provisionalID, canonicalID string) error {
	if provisionalID == canonicalID {
		return nil
	}

	err := s.txRunner.WithTx(ctx, func(stores StoreProvider) error {
		sessions := stores.Sessions()

		provisional, err := sessions.GetByID(ctx, provisionalID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		canonical := &model.Session{ID: canonicalID, WorkspacePath: s.workspacePath}
		if provisional != nil {
			canonical.Title = provisional.Title
			canonical.Archived = provisional.Archived
			canonical.ProjectID = provisional.ProjectID
			canonical.EntityType = provisional.EntityType
			canonical.EntityID = provisional.EntityID
			canonical.SourceIDs = provisional.SourceIDs
		}
		if err := sessions.Upsert(ctx, canonical); err != nil {
			return err
		}
		if provisional != nil {
			if err := sessions.Delete(ctx, provisionalID); err != nil {
				return err
			}
		}
		return sessions.CreateAlias(ctx, provisionalID, canonicalID)
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to record canonical session id",
			"error", err,
			"session_id", provisionalID,
			"canonical_id", canonicalID)
		return fmt.Errorf("recording canonical session id: %w", err)
	}

	slog.InfoContext(ctx, "session id reconciled",
		"session_id", provisionalID,
		"canonical_id", canonicalID)
	return nil
}

func (s *sessionService) Touch(ctx context.Context, id string) error {
	canonical, err := s.Resolve(ctx, id)
	if err != nil {
		return err
	}
	if err := s.sessions.Touch(ctx, canonical); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// synthesize builds a registry view for a transcript that has no row,
// dating it by the transcript file's modification time.
func (s *sessionService) synthesize(id string) *model.Session {
	now := time.Now().UTC()
	created, updated := now, now
	if info, err := s.transcripts.ModTime(s.workspacePath, id); err == nil {
		updated = info.ModTime().UTC()
		created = updated
	}
	return &model.Session{
		ID:            id,
		WorkspacePath: s.workspacePath,
		CreatedAt:     created,
		UpdatedAt:     updated,
	}
}
