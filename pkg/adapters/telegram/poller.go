package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/evgen4ikrus/pizza-bot/internal/logging"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// DefaultWorkers bounds the number of updates handled at once.
const DefaultWorkers = 16

// EventHandler consumes converted events. runner.Dispatcher implements it.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// UpdatesAPI is the long-polling part of *tgbotapi.BotAPI.
type UpdatesAPI interface {
	API
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller receives updates and feeds them to a handler.
// Updates of different chats run concurrently; one chat's updates keep their order.
type Poller struct {
	api      UpdatesAPI
	handler  EventHandler
	invoices *Invoices
	workers  int
	timeout  int
	logger   *slog.Logger
}

// PollerOption configures the Poller.
type PollerOption func(*Poller)

// WithWorkers sets the concurrency limit.
func WithWorkers(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithInvoices enables Telegram Payments: pre-checkout validation and payment events.
func WithInvoices(inv *Invoices) PollerOption {
	return func(p *Poller) {
		p.invoices = inv
	}
}

// WithPollerLogger sets the logger.
func WithPollerLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = l
	}
}

// NewPoller creates a long-polling loop.
func NewPoller(api UpdatesAPI, handler EventHandler, opts ...PollerOption) *Poller {
	p := &Poller{
		api:     api,
		handler: handler,
		workers: DefaultWorkers,
		timeout: 60,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled, then waits for in-flight updates.
// Updates of one chat are handled one at a time in arrival order; different
// chats run concurrently up to the worker limit.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	updates := p.api.GetUpdatesChan(cfg)

	var g errgroup.Group
	g.SetLimit(p.workers)
	q := &chatQueues{pending: make(map[int64][]tgbotapi.Update)}
	// In-flight updates finish after shutdown starts.
	work := context.WithoutCancel(ctx)

loop:
	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			break loop
		case upd, ok := <-updates:
			if !ok {
				break loop
			}
			chat := chatOf(upd)
			if !q.push(chat, upd) {
				continue
			}
			g.Go(func() error {
				for next, ok := upd, true; ok; next, ok = q.pop(chat) {
					p.process(work, next)
				}
				return nil
			})
		}
	}

	_ = g.Wait()
	return ctx.Err()
}

// chatQueues holds the updates waiting behind the one being handled for
// each chat. A chat present in the map has exactly one goroutine draining it.
type chatQueues struct {
	mu      sync.Mutex
	pending map[int64][]tgbotapi.Update
}

// push queues upd behind a busy chat. It returns true when the chat was idle
// and the caller must start draining it with upd.
func (q *chatQueues) push(chat int64, upd tgbotapi.Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if waiting, busy := q.pending[chat]; busy {
		q.pending[chat] = append(waiting, upd)
		return false
	}
	q.pending[chat] = nil
	return true
}

// pop returns the next queued update of chat, or marks the chat idle.
func (q *chatQueues) pop(chat int64) (tgbotapi.Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	waiting := q.pending[chat]
	if len(waiting) == 0 {
		delete(q.pending, chat)
		return tgbotapi.Update{}, false
	}
	q.pending[chat] = waiting[1:]
	return waiting[0], true
}

// chatOf returns the chat an update belongs to. Pre-checkout queries carry
// only the payer, whose id is the private chat id.
func chatOf(upd tgbotapi.Update) int64 {
	switch {
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil:
		return upd.CallbackQuery.Message.Chat.ID
	case upd.Message != nil && upd.Message.Chat != nil:
		return upd.Message.Chat.ID
	case upd.EditedMessage != nil && upd.EditedMessage.Chat != nil:
		return upd.EditedMessage.Chat.ID
	case upd.PreCheckoutQuery != nil && upd.PreCheckoutQuery.From != nil:
		return upd.PreCheckoutQuery.From.ID
	}
	return 0
}

func (p *Poller) process(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		// Stops the loading spinner on the pressed button.
		if _, err := p.api.Request(tgbotapi.NewCallback(upd.CallbackQuery.ID, "")); err != nil {
			p.logger.Debug("Failed to answer callback", "err", err)
		}
	}

	if upd.PreCheckoutQuery != nil {
		if p.invoices == nil {
			return
		}
		ev, emit, err := p.invoices.PreCheckout(upd.PreCheckoutQuery)
		if err != nil {
			p.logger.Error("Pre-checkout failed", "err", err)
			return
		}
		if emit {
			p.dispatch(ctx, ev)
		}
		return
	}

	ev, ok := EventFromUpdate(upd)
	if !ok {
		return
	}
	if ev.Kind == domain.EventPayment && p.invoices != nil {
		if msg := upd.Message; msg != nil && !p.invoices.Paid(ev.User, msg.SuccessfulPayment) {
			p.logger.Warn("Payment for unknown invoice", "user", ev.User.Key(), "payload", msg.SuccessfulPayment.InvoicePayload)
		}
	}
	p.dispatch(ctx, ev)
}

func (p *Poller) dispatch(ctx context.Context, ev domain.Event) {
	if err := p.handler.Handle(ctx, ev); err != nil {
		p.logger.Error("Failed to handle update", "user", ev.User.Key(), "err", err)
	}
}

// EventFromUpdate converts an update into a domain event.
// The user id is the chat id, which is where replies go.
func EventFromUpdate(upd tgbotapi.Update) (domain.Event, bool) {
	switch {
	case upd.CallbackQuery != nil:
		q := upd.CallbackQuery
		if q.Message == nil || q.Message.Chat == nil {
			return domain.Event{}, false
		}
		return domain.NewButtonEvent(userOf(q.Message.Chat.ID, q.From), q.Data), true

	case upd.Message != nil:
		return fromMessage(upd.Message)

	case upd.EditedMessage != nil && upd.EditedMessage.Location != nil:
		// Live locations arrive as edits.
		return fromMessage(upd.EditedMessage)
	}
	return domain.Event{}, false
}

func fromMessage(msg *tgbotapi.Message) (domain.Event, bool) {
	if msg.Chat == nil {
		return domain.Event{}, false
	}
	user := userOf(msg.Chat.ID, msg.From)
	switch {
	case msg.SuccessfulPayment != nil:
		return domain.NewPaymentEvent(user, true), true
	case msg.Location != nil:
		return domain.NewLocationEvent(user, domain.Coordinates{
			Latitude:  msg.Location.Latitude,
			Longitude: msg.Location.Longitude,
		}), true
	case msg.Text != "":
		return domain.NewTextEvent(user, msg.Text), true
	}
	return domain.Event{}, false
}

func userOf(chat int64, from *tgbotapi.User) domain.UserRef {
	return domain.UserRef{
		Channel: ChannelName,
		ID:      strconv.FormatInt(chat, 10),
		Name:    displayName(from),
	}
}
