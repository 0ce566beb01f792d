package pizzabot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/evgen4ikrus/pizza-bot/internal/logging"
	"github.com/evgen4ikrus/pizza-bot/internal/runtime"
	"github.com/evgen4ikrus/pizza-bot/pkg/delivery"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
)

// Engine is the high-level entry point of the bot core.
// It wraps the internal runtime and keeps the collaborators it was built with.
type Engine struct {
	runtime  *runtime.Engine
	commerce ports.Commerce
	geocoder ports.Geocoder
	policy   *delivery.Policy

	fees          delivery.Fees
	hooks         domain.LifecycleHooks
	callTimeout   time.Duration
	frontCategory string
	paymentTitle  string
	logger        *slog.Logger
}

var _ ports.ConversationEngine = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks. Use domain.MergeHooks to
// register more than one set.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithFees overrides delivery.DefaultFees.
func WithFees(fees delivery.Fees) Option {
	return func(e *Engine) {
		e.fees = fees
	}
}

// WithCallTimeout bounds every Commerce and Geocoder call.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.callTimeout = d
	}
}

// WithFrontCategory opens the menu on the category with the given slug.
func WithFrontCategory(slug string) Option {
	return func(e *Engine) {
		e.frontCategory = slug
	}
}

// WithPaymentTitle sets the title shown on invoices.
func WithPaymentTitle(title string) Option {
	return func(e *Engine) {
		e.paymentTitle = title
	}
}

// New initializes the conversation engine over a commerce backend and a geocoder.
func New(commerce ports.Commerce, geocoder ports.Geocoder, opts ...Option) (*Engine, error) {
	if commerce == nil {
		return nil, errors.New("commerce backend is required")
	}
	if geocoder == nil {
		return nil, errors.New("geocoder is required")
	}

	eng := &Engine{
		commerce:    commerce,
		geocoder:    geocoder,
		fees:        delivery.DefaultFees,
		callTimeout: runtime.DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	eng.policy = delivery.NewPolicy(eng.fees)

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithCallTimeout(eng.callTimeout),
		runtime.WithFrontCategory(eng.frontCategory),
	}
	if eng.paymentTitle != "" {
		runtimeOpts = append(runtimeOpts, runtime.WithPaymentTitle(eng.paymentTitle))
	}

	eng.runtime = runtime.NewEngine(commerce, geocoder, eng.policy, runtimeOpts...)
	return eng, nil
}

// Step handles one inbound event against a session snapshot and returns the outcome.
// The session is never mutated; a nil session starts at START.
func (e *Engine) Step(ctx context.Context, session *domain.Session, event domain.Event) domain.Outcome {
	return e.runtime.Step(ctx, session, event)
}

// Quote geocodes an address and prices delivery from the nearest pizzeria.
// It returns domain.ErrNotFound when the address matches nothing.
func (e *Engine) Quote(ctx context.Context, address string) (domain.Quote, domain.Coordinates, error) {
	address = strings.TrimSpace(address)

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	coords, found, err := e.geocoder.Geocode(callCtx, address)
	cancel()
	if err != nil {
		return domain.Quote{}, domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	if !found {
		return domain.Quote{}, domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, domain.ErrNotFound)
	}

	quote, err := e.QuoteAt(ctx, coords)
	return quote, coords, err
}

// QuoteAt prices delivery to the given coordinates.
func (e *Engine) QuoteAt(ctx context.Context, coords domain.Coordinates) (domain.Quote, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	locations, err := e.commerce.Locations(callCtx)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("list locations: %w", err)
	}
	return e.policy.Quote(coords, locations)
}

// Policy returns the delivery policy in effect.
func (e *Engine) Policy() *delivery.Policy {
	return e.policy
}
