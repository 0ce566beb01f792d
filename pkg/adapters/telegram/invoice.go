package telegram

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
)

const (
	maxInvoiceTitle       = 32
	maxInvoiceDescription = 255
)

type pendingInvoice struct {
	payload  string
	amount   int64
	currency string
}

// Invoices is a payment gateway backed by Telegram Payments.
// It remembers the last invoice per chat so pre-checkout queries can be validated.
type Invoices struct {
	api           API
	providerToken string

	mu      sync.Mutex
	pending map[string]pendingInvoice
}

var _ ports.PaymentGateway = (*Invoices)(nil)

// NewInvoices creates a gateway charging through the given payment provider.
func NewInvoices(api API, providerToken string) *Invoices {
	return &Invoices{
		api:           api,
		providerToken: providerToken,
		pending:       make(map[string]pendingInvoice),
	}
}

// RequestPayment sends an invoice to the user.
func (inv *Invoices) RequestPayment(ctx context.Context, to domain.UserRef, req domain.PaymentRequest) error {
	id, err := chatID(to)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	prices := make([]tgbotapi.LabeledPrice, 0, len(req.Lines))
	for _, line := range req.Lines {
		prices = append(prices, tgbotapi.LabeledPrice{Label: line.Label, Amount: int(line.Amount.Amount)})
	}
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Total: %s", req.Total)
	}

	invoice := tgbotapi.NewInvoice(id,
		truncate(req.Title, maxInvoiceTitle),
		truncate(description, maxInvoiceDescription),
		req.ID, inv.providerToken, "", req.Total.Currency, prices)
	// The Bot API rejects a null tip list.
	invoice.SuggestedTipAmounts = []int{}

	inv.mu.Lock()
	inv.pending[to.Key()] = pendingInvoice{payload: req.ID, amount: req.Total.Amount, currency: req.Total.Currency}
	inv.mu.Unlock()

	if _, err := inv.api.Send(invoice); err != nil {
		inv.forget(to)
		return fmt.Errorf("telegram: send invoice: %w", err)
	}
	return nil
}

// PreCheckout validates a pre-checkout query against the pending invoice and
// answers it. A rejected query is reported as a failed payment event.
func (inv *Invoices) PreCheckout(q *tgbotapi.PreCheckoutQuery) (domain.Event, bool, error) {
	// Invoices are only sent to private chats, where the chat id is the user id.
	user := domain.UserRef{Channel: ChannelName, ID: fmt.Sprint(q.From.ID), Name: displayName(q.From)}

	inv.mu.Lock()
	p, found := inv.pending[user.Key()]
	inv.mu.Unlock()

	ok := found && p.payload == q.InvoicePayload && p.amount == int64(q.TotalAmount) && p.currency == q.Currency
	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: q.ID, OK: ok}
	if !ok {
		answer.ErrorMessage = "This order is no longer valid. Please check your cart and try again."
	}
	if _, err := inv.api.Request(answer); err != nil {
		return domain.Event{}, false, fmt.Errorf("telegram: answer pre-checkout: %w", err)
	}
	if ok {
		return domain.Event{}, false, nil
	}
	inv.forget(user)
	return domain.NewPaymentEvent(user, false), true, nil
}

// Paid clears the pending invoice once Telegram confirms the payment.
func (inv *Invoices) Paid(user domain.UserRef, sp *tgbotapi.SuccessfulPayment) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	p, found := inv.pending[user.Key()]
	if !found || p.payload != sp.InvoicePayload {
		return false
	}
	delete(inv.pending, user.Key())
	return true
}

func (inv *Invoices) forget(user domain.UserRef) {
	inv.mu.Lock()
	delete(inv.pending, user.Key())
	inv.mu.Unlock()
}
