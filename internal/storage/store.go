package storage

import (
	"context"

	"hyperprior/internal/model"
)

// Store persists training sessions so incremental runs survive process
// restarts.
type Store interface {
	Init(ctx context.Context) error
	SaveSession(ctx context.Context, state model.SessionState) error
	GetSession(ctx context.Context, runID string) (model.SessionState, bool, error)
	ListSessions(ctx context.Context) ([]string, error)
	DeleteSession(ctx context.Context, runID string) error
}
