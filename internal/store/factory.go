package store

import (
	"parley.app/switchboard/core/db/sqlc"
)

type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) Sessions() SessionStore {
	return newSessionStore(s.queries)
}
