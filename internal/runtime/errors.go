package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/render"
)

// fail maps a collaborator error to an outcome. Validation errors re-prompt
// with the given replies; nothing is ever persisted.
func fail(err error, reprompt ...domain.Reply) domain.Outcome {
	switch {
	case errors.Is(err, domain.ErrUnknownState):
		return domain.Fatal(err)
	case errors.Is(err, domain.ErrValidation) && len(reprompt) > 0:
		return domain.Retry(err, reprompt...)
	case errors.Is(err, domain.ErrNotFound):
		return domain.Retry(err, render.Unavailable())
	case errors.Is(err, context.DeadlineExceeded):
		return domain.Retry(fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err), render.TryAgain())
	default:
		return domain.Retry(err, render.TryAgain())
	}
}
