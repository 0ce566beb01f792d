package ports

import (
	"context"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// ConversationEngine is the state machine core. It never persists anything itself:
// the caller loads the session, calls Step, and applies the Outcome.
type ConversationEngine interface {
	// Step handles one inbound event against the given session snapshot.
	Step(ctx context.Context, session *domain.Session, event domain.Event) domain.Outcome
}
