package ports

import (
	"context"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// Channel is the outbound capability of one chat platform.
// The engine is written once against it; each platform implements it once.
type Channel interface {
	// Name is the channel tag used in domain.UserRef.Channel.
	Name() string

	// SendText sends a text reply with optional buttons.
	SendText(ctx context.Context, to domain.UserRef, reply domain.Reply) error

	// SendCard sends a rich reply (image with caption, or a carousel of cards).
	SendCard(ctx context.Context, to domain.UserRef, reply domain.Reply) error

	// SendLocation sends a map pin.
	SendLocation(ctx context.Context, to domain.UserRef, coords domain.Coordinates) error
}

// PaymentGateway starts a payment. The result comes back later as a domain.EventPayment.
type PaymentGateway interface {
	RequestPayment(ctx context.Context, to domain.UserRef, req domain.PaymentRequest) error
}
