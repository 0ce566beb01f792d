// Package testutils holds fakes for the ports, shared by the engine, runner and adapter tests.
package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/evgen4ikrus/pizza-bot/pkg/adapters/memory"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
)

// RUB builds a rouble amount from kopecks.
func RUB(kopecks int64) domain.Money {
	return domain.NewMoney(kopecks, "RUB")
}

// RedSquare is the reference point used across tests.
var RedSquare = domain.Coordinates{Latitude: 55.7539, Longitude: 37.6208}

// Catalog returns an in-memory commerce backend with two pizzas and three Moscow pizzerias.
// The "center" pizzeria is about 0.3 km from RedSquare.
func Catalog(extra ...memory.CommerceOption) *memory.Commerce {
	opts := []memory.CommerceOption{
		memory.WithProducts(
			domain.Product{ID: "margherita", Name: "Margherita", Description: "Tomato, mozzarella", Price: RUB(50000)},
			domain.Product{ID: "pepperoni", Name: "Pepperoni", Description: "Spicy", Price: RUB(60050)},
		),
		memory.WithLocations(
			domain.Location{ID: "center", Alias: "Center", Address: "Nikolskaya, 4", Coordinates: domain.Coordinates{Latitude: 55.7560, Longitude: 37.6180}, CourierID: "900"},
			domain.Location{ID: "south", Alias: "South", Address: "Varshavskoe, 100", Coordinates: domain.Coordinates{Latitude: 55.60, Longitude: 37.60}, CourierID: "901"},
			domain.Location{ID: "north", Alias: "North", Address: "Dmitrovskoe, 50", Coordinates: domain.Coordinates{Latitude: 55.88, Longitude: 37.55}},
		),
	}
	return memory.NewCommerce(append(opts, extra...)...)
}

// Geocoder resolves addresses from a fixed table, case-insensitively.
type Geocoder struct {
	Known map[string]domain.Coordinates
	Err   error
}

// Geocode implements ports.Geocoder.
func (g *Geocoder) Geocode(ctx context.Context, address string) (domain.Coordinates, bool, error) {
	if g.Err != nil {
		return domain.Coordinates{}, false, g.Err
	}
	for k, v := range g.Known {
		if strings.EqualFold(k, address) {
			return v, true, nil
		}
	}
	return domain.Coordinates{}, false, nil
}

// FlakyCommerce wraps a Commerce and fails every call while Err is set.
type FlakyCommerce struct {
	ports.Commerce

	mu  sync.Mutex
	err error
}

// SetErr makes subsequent calls fail with err. nil heals the backend.
func (f *FlakyCommerce) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FlakyCommerce) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *FlakyCommerce) Products(ctx context.Context) ([]domain.Product, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Commerce.Products(ctx)
}

func (f *FlakyCommerce) Product(ctx context.Context, id string) (domain.Product, error) {
	if err := f.fail(); err != nil {
		return domain.Product{}, err
	}
	return f.Commerce.Product(ctx, id)
}

func (f *FlakyCommerce) CartItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Commerce.CartItems(ctx, cartID)
}

func (f *FlakyCommerce) AddToCart(ctx context.Context, cartID, productID string, qty int) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.Commerce.AddToCart(ctx, cartID, productID, qty)
}

func (f *FlakyCommerce) CreateCustomer(ctx context.Context, name, email string) (domain.Customer, error) {
	if err := f.fail(); err != nil {
		return domain.Customer{}, err
	}
	return f.Commerce.CreateCustomer(ctx, name, email)
}

func (f *FlakyCommerce) Locations(ctx context.Context) ([]domain.Location, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.Commerce.Locations(ctx)
}

// Sent is one message delivered through a Channel.
type Sent struct {
	To    domain.UserRef
	Reply domain.Reply
}

// Channel records outbound messages. It also acts as a PaymentGateway.
type Channel struct {
	ChannelName string

	mu       sync.Mutex
	sent     []Sent
	payments []domain.PaymentRequest
	err      error
}

// NewChannel creates a recording channel.
func NewChannel(name string) *Channel {
	return &Channel{ChannelName: name}
}

// SetErr makes subsequent sends fail.
func (c *Channel) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *Channel) Name() string { return c.ChannelName }

func (c *Channel) record(to domain.UserRef, reply domain.Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, Sent{To: to, Reply: reply})
	return nil
}

func (c *Channel) SendText(ctx context.Context, to domain.UserRef, reply domain.Reply) error {
	return c.record(to, reply)
}

func (c *Channel) SendCard(ctx context.Context, to domain.UserRef, reply domain.Reply) error {
	return c.record(to, reply)
}

func (c *Channel) SendLocation(ctx context.Context, to domain.UserRef, coords domain.Coordinates) error {
	return c.record(to, domain.Reply{Kind: domain.ReplyLocation, Location: coords})
}

func (c *Channel) RequestPayment(ctx context.Context, to domain.UserRef, req domain.PaymentRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.payments = append(c.payments, req)
	return nil
}

// Sent returns a copy of everything sent so far.
func (c *Channel) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}

// Payments returns every requested payment.
func (c *Channel) Payments() []domain.PaymentRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.PaymentRequest(nil), c.payments...)
}
