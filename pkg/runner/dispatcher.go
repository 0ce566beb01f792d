package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/evgen4ikrus/pizza-bot/internal/logging"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
	"github.com/evgen4ikrus/pizza-bot/pkg/session"
)

// ErrNoChannel is returned when a reply targets a channel that is not registered.
var ErrNoChannel = errors.New("no channel registered")

// Dispatcher runs the read, handle, persist, send cycle for inbound events.
type Dispatcher struct {
	engine   ports.ConversationEngine
	sessions *session.Manager

	channels map[string]ports.Channel
	payments map[string]ports.PaymentGateway
	limits   map[string]InputLimits
	maxText  int
	logger   *slog.Logger
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithChannel registers an outbound channel under its Name.
func WithChannel(ch ports.Channel) Option {
	return func(d *Dispatcher) {
		d.channels[ch.Name()] = ch
	}
}

// WithPaymentGateway registers the payment collaborator of a channel.
func WithPaymentGateway(channel string, gw ports.PaymentGateway) Option {
	return func(d *Dispatcher) {
		d.payments[channel] = gw
	}
}

// WithInputLimits sets the input limits of a channel. Channels without
// limits get DefaultInputLimits.
func WithInputLimits(channel string, l InputLimits) Option {
	return func(d *Dispatcher) {
		d.limits[channel] = l
	}
}

// WithMaxInputSize caps the text length of every channel at n characters.
func WithMaxInputSize(n int) Option {
	return func(d *Dispatcher) {
		d.maxText = n
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(engine ports.ConversationEngine, sessions *session.Manager, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:   engine,
		sessions: sessions,
		channels: make(map[string]ports.Channel),
		payments: make(map[string]ports.PaymentGateway),
		limits:   make(map[string]InputLimits),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle processes one event. Events of the same user are serialized by the
// session manager; events of different users may run concurrently.
//
// Replies are sent only after the next session is persisted. A failed save
// sends nothing, so the user never sees a transition that was not stored.
func (d *Dispatcher) Handle(ctx context.Context, ev domain.Event) error {
	ev, err := d.limitsFor(ev.User.Channel).Sanitize(ev)
	if err != nil {
		return fmt.Errorf("rejecting input from %s: %w", ev.User.Key(), err)
	}
	if tr, ok := d.payments[ev.User.Channel].(PaymentTranslator); ok {
		if translated, ok := tr.TranslatePayment(ev); ok {
			ev = translated
		}
	}

	return d.sessions.WithLock(ctx, ev.User.Key(), func(ctx context.Context) error {
		sess, err := d.sessions.LoadOrNew(ctx, ev.User)
		if err != nil {
			return err
		}

		out := d.engine.Step(ctx, sess, ev)
		switch out.Kind {
		case domain.OutcomeFatal:
			// Already logged by the engine; the stored session stays as it was.
			return nil
		case domain.OutcomeAdvance:
			if err := d.sessions.Commit(ctx, out.Session); err != nil {
				return err
			}
		}

		return d.deliver(ctx, ev.User, out)
	})
}

func (d *Dispatcher) limitsFor(channel string) InputLimits {
	l, ok := d.limits[channel]
	if !ok {
		l = DefaultInputLimits
	}
	return l.capText(d.maxText)
}

// deliver sends every reply in order, then hands the payment over.
// Send failures do not stop the remaining replies.
func (d *Dispatcher) deliver(ctx context.Context, user domain.UserRef, out domain.Outcome) error {
	var errs []error
	for _, reply := range out.Replies {
		to := user
		if reply.To != nil {
			to = *reply.To
		}
		if err := d.send(ctx, to, reply); err != nil {
			d.logger.Warn("Failed to send reply", "user", to.Key(), "kind", reply.Kind, "err", err)
			errs = append(errs, err)
		}
	}

	if out.Payment != nil {
		gw, ok := d.payments[user.Channel]
		switch {
		case !ok:
			d.logger.Warn("No payment gateway for channel", "channel", user.Channel, "user", user.Key())
		default:
			if err := gw.RequestPayment(ctx, user, *out.Payment); err != nil {
				errs = append(errs, fmt.Errorf("payment request for %s: %w", user.Key(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) send(ctx context.Context, to domain.UserRef, reply domain.Reply) error {
	ch, ok := d.channels[to.Channel]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoChannel, to.Channel)
	}
	switch reply.Kind {
	case domain.ReplyCard:
		return ch.SendCard(ctx, to, reply)
	case domain.ReplyLocation:
		return ch.SendLocation(ctx, to, reply.Location)
	default:
		return ch.SendText(ctx, to, reply)
	}
}
