package ports

import (
	"context"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// Commerce is the external commerce backend: catalog, carts, customers and
// the flow records holding pizzerias and customer addresses.
//
// Implementations classify failures with the domain sentinels:
// domain.ErrValidation for rejected input, domain.ErrNotFound for missing records,
// domain.ErrBackendUnavailable for transport failures and timeouts.
type Commerce interface {
	Products(ctx context.Context) ([]domain.Product, error)
	Product(ctx context.Context, productID string) (domain.Product, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	CategoryBySlug(ctx context.Context, slug string) (domain.Category, error)
	ProductsByCategory(ctx context.Context, categoryID string) ([]domain.Product, error)

	// Cart operations are keyed by cart id (the user's session key).
	CartItems(ctx context.Context, cartID string) ([]domain.CartItem, error)
	AddToCart(ctx context.Context, cartID, productID string, quantity int) error
	RemoveFromCart(ctx context.Context, cartID, itemID string) error

	// CreateCustomer fails with domain.ErrValidation when the backend rejects the email.
	CreateCustomer(ctx context.Context, name, email string) (domain.Customer, error)

	Locations(ctx context.Context) ([]domain.Location, error)
	CreateLocation(ctx context.Context, loc domain.Location) (domain.Location, error)
	DeleteLocation(ctx context.Context, locationID string) error
	CreateCustomerAddress(ctx context.Context, addr domain.CustomerAddress) error
}

// Geocoder resolves a free-text address into coordinates.
type Geocoder interface {
	// Geocode returns found=false when the address matches nothing.
	Geocode(ctx context.Context, address string) (coords domain.Coordinates, found bool, err error)
}
