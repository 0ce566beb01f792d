package ports

import (
	"context"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// SessionStore defines the interface for persisting conversation sessions.
// Stores know nothing about the state machine: they keep opaque snapshots keyed by user.
type SessionStore interface {
	// Save persists the session under the given key, overwriting any previous value.
	Save(ctx context.Context, key string, session *domain.Session) error

	// Load retrieves the session for a given key.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, key string) (*domain.Session, error)

	// Delete removes the session for a given key.
	Delete(ctx context.Context, key string) error

	// List returns the keys of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
