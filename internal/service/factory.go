package service

import (
	"parley.app/switchboard/internal/store"
	"parley.app/switchboard/internal/transcript"
	"parley.app/switchboard/internal/vcs"
)

// Services is a factory for all application services.
type Services struct {
	sessions SessionService
}

func NewServices(
	stores *store.Stores,
	txRunner TxRunner,
	transcripts *transcript.Store,
	committer vcs.Committer,
	workspacePath string,
) *Services {
	return &Services{
		sessions: NewSessionService(stores.Sessions(), txRunner, transcripts, committer, workspacePath),
	}
}

func (s *Services) Sessions() SessionService {
	return s.sessions
}
