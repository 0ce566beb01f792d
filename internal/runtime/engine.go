package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evgen4ikrus/pizza-bot/internal/logging"
	"github.com/evgen4ikrus/pizza-bot/pkg/delivery"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
	"github.com/google/uuid"
)

// DefaultCallTimeout bounds every Commerce and Geocoder call.
const DefaultCallTimeout = 10 * time.Second

// Engine is the conversation state machine. It holds no per-user state:
// every Step works on the session snapshot it is given and returns an Outcome.
type Engine struct {
	commerce ports.Commerce
	geocoder ports.Geocoder
	policy   *delivery.Policy

	frontCategory string
	callTimeout   time.Duration
	paymentTitle  string
	newPaymentID  func() string

	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

// WithFrontCategory makes the menu open on the category with the given slug
// and offer the other categories as buttons.
func WithFrontCategory(slug string) EngineOption {
	return func(e *Engine) {
		e.frontCategory = slug
	}
}

// WithPaymentTitle sets the title shown on payment requests.
func WithPaymentTitle(title string) EngineOption {
	return func(e *Engine) {
		e.paymentTitle = title
	}
}

// WithPaymentIDs overrides the payment request id generator.
func WithPaymentIDs(gen func() string) EngineOption {
	return func(e *Engine) {
		e.newPaymentID = gen
	}
}

// NewEngine creates a new engine with its collaborators.
func NewEngine(commerce ports.Commerce, geocoder ports.Geocoder, policy *delivery.Policy, opts ...EngineOption) *Engine {
	e := &Engine{
		commerce:     commerce,
		geocoder:     geocoder,
		policy:       policy,
		callTimeout:  DefaultCallTimeout,
		paymentTitle: "Pizza order",
		newPaymentID: uuid.NewString,
		logger:       logging.NewNop(),
	}
	if e.policy == nil {
		e.policy = delivery.NewPolicy(delivery.DefaultFees)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Step handles one inbound event. The given session is never mutated.
// A nil session is treated as a fresh one at START.
func (e *Engine) Step(ctx context.Context, sess *domain.Session, ev domain.Event) domain.Outcome {
	start := time.Now()

	var cur *domain.Session
	if sess == nil {
		cur = domain.NewSession(ev.User)
	} else {
		cur = sess.Clone()
	}
	from := cur.State

	if ev.IsReset() {
		cur.Reset()
	}

	out := e.dispatch(ctx, cur, ev)
	e.emit(ctx, cur.User, from, ev, out, time.Since(start))
	return out
}

// dispatch routes to the handler of the current state. The switch is exhaustive
// over domain.AllStates; anything else is a routing error.
func (e *Engine) dispatch(ctx context.Context, s *domain.Session, ev domain.Event) domain.Outcome {
	switch s.State {
	case domain.StateStart:
		return e.handleStart(ctx, s, ev)
	case domain.StateMenu:
		return e.handleMenu(ctx, s, ev)
	case domain.StateProductDetail:
		return e.handleProductDetail(ctx, s, ev)
	case domain.StateCart:
		return e.handleCart(ctx, s, ev)
	case domain.StateWaitingEmail:
		return e.handleWaitingEmail(ctx, s, ev)
	case domain.StateWaitingAddress:
		return e.handleWaitingAddress(ctx, s, ev)
	case domain.StateWaitingDeliveryChoice:
		return e.handleDeliveryChoice(ctx, s, ev)
	case domain.StateWaitingPayment:
		return e.handleWaitingPayment(ctx, s, ev)
	default:
		return domain.Fatal(fmt.Errorf("%w: %q", domain.ErrUnknownState, s.State))
	}
}

// call bounds a collaborator call with the configured timeout.
func (e *Engine) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.callTimeout)
}

func (e *Engine) emit(ctx context.Context, user domain.UserRef, from domain.State, ev domain.Event, out domain.Outcome, d time.Duration) {
	te := &domain.TransitionEvent{
		Timestamp: time.Now(),
		UserKey:   user.Key(),
		From:      from,
		To:        out.NextState(from),
		Kind:      out.Kind,
		EventKind: ev.Kind,
		Duration:  d,
	}
	if out.Err != nil {
		te.Reason = out.Err.Error()
	}

	switch out.Kind {
	case domain.OutcomeAdvance:
		e.logger.Debug("Transition", "user", te.UserKey, "state", from, "next_state", te.To, "event", ev.Kind)
		if e.hooks.OnTransition != nil {
			e.hooks.OnTransition(ctx, te)
		}
	case domain.OutcomeRetry:
		switch {
		case errors.Is(out.Err, domain.ErrValidation):
			e.logger.Debug("Input rejected", "user", te.UserKey, "state", from, "err", out.Err)
		case out.Err != nil:
			e.logger.Warn("Retry in place", "user", te.UserKey, "state", from, "err", out.Err)
		}
		if e.hooks.OnRetry != nil {
			e.hooks.OnRetry(ctx, te)
		}
	case domain.OutcomeFatal:
		e.logger.Error("Dropping event", "user", te.UserKey, "state", from, "err", out.Err)
		if e.hooks.OnFatal != nil {
			e.hooks.OnFatal(ctx, te)
		}
	}
}
