package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
)

// PaymentTranslator is implemented by gateways whose confirmation arrives as an
// ordinary chat event. The dispatcher asks it before running the engine.
type PaymentTranslator interface {
	TranslatePayment(ev domain.Event) (domain.Event, bool)
}

// CashOnDelivery is a payment gateway for channels without online payments.
// It shows the bill and lets the user confirm that they pay the courier.
type CashOnDelivery struct {
	ch ports.Channel
}

var (
	_ ports.PaymentGateway = (*CashOnDelivery)(nil)
	_ PaymentTranslator    = (*CashOnDelivery)(nil)
)

// NewCashOnDelivery creates a gateway sending its bill through ch.
func NewCashOnDelivery(ch ports.Channel) *CashOnDelivery {
	return &CashOnDelivery{ch: ch}
}

// RequestPayment sends the bill with confirm and cancel buttons.
func (c *CashOnDelivery) RequestPayment(ctx context.Context, to domain.UserRef, req domain.PaymentRequest) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", req.Title)
	for _, line := range req.Lines {
		fmt.Fprintf(&b, "%s: %s\n", line.Label, line.Amount)
	}
	fmt.Fprintf(&b, "\nTotal: %s, payable in cash to the courier.", req.Total)

	reply := domain.Reply{
		Kind: domain.ReplyText,
		Text: b.String(),
		Buttons: [][]domain.Button{{
			{Title: "Confirm order", Payload: domain.Payload(domain.ActionPayment, domain.PaymentConfirmed)},
			{Title: "Cancel", Payload: domain.Payload(domain.ActionPayment, domain.PaymentDeclined)},
		}},
	}
	return c.ch.SendText(ctx, to, reply)
}

// TranslatePayment turns the confirm and cancel buttons into payment events.
func (c *CashOnDelivery) TranslatePayment(ev domain.Event) (domain.Event, bool) {
	if ev.Kind != domain.EventButton {
		return ev, false
	}
	action, arg := domain.ParsePayload(ev.Payload)
	if action != domain.ActionPayment {
		return ev, false
	}
	return domain.NewPaymentEvent(ev.User, arg == domain.PaymentConfirmed), true
}
