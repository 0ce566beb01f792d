package memory

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"sync"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// Commerce implements ports.Commerce in memory.
// It backs the local demo mode and the engine tests. Safe for concurrent use.
type Commerce struct {
	mu sync.Mutex

	products   []domain.Product
	categories []domain.Category
	byCategory map[string][]string

	carts     map[string][]domain.CartItem
	customers []domain.Customer
	locations []domain.Location
	addresses []domain.CustomerAddress

	seq int
}

// CommerceOption configures a Commerce.
type CommerceOption func(*Commerce)

// WithProducts seeds the catalog.
func WithProducts(products ...domain.Product) CommerceOption {
	return func(c *Commerce) {
		c.products = append(c.products, products...)
	}
}

// WithCategory adds a category holding the given product ids.
func WithCategory(cat domain.Category, productIDs ...string) CommerceOption {
	return func(c *Commerce) {
		c.categories = append(c.categories, cat)
		c.byCategory[cat.ID] = append(c.byCategory[cat.ID], productIDs...)
	}
}

// WithLocations seeds the pizzeria records.
func WithLocations(locations ...domain.Location) CommerceOption {
	return func(c *Commerce) {
		c.locations = append(c.locations, locations...)
	}
}

// NewCommerce creates an in-memory commerce backend.
func NewCommerce(opts ...CommerceOption) *Commerce {
	c := &Commerce{
		byCategory: make(map[string][]string),
		carts:      make(map[string][]domain.CartItem),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Commerce) nextID(prefix string) string {
	c.seq++
	return prefix + "-" + strconv.Itoa(c.seq)
}

// Products returns the whole catalog.
func (c *Commerce) Products(ctx context.Context) ([]domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Product(nil), c.products...), nil
}

// Product returns one catalog entry.
func (c *Commerce) Product(ctx context.Context, productID string) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.product(productID)
}

func (c *Commerce) product(id string) (domain.Product, error) {
	for _, p := range c.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, fmt.Errorf("%w: product %q", domain.ErrNotFound, id)
}

// Categories returns the menu categories.
func (c *Commerce) Categories(ctx context.Context) ([]domain.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Category(nil), c.categories...), nil
}

// CategoryBySlug finds a category by its slug.
func (c *Commerce) CategoryBySlug(ctx context.Context, slug string) (domain.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cat := range c.categories {
		if cat.Slug == slug {
			return cat, nil
		}
	}
	return domain.Category{}, fmt.Errorf("%w: category %q", domain.ErrNotFound, slug)
}

// ProductsByCategory returns the products linked to a category.
func (c *Commerce) ProductsByCategory(ctx context.Context, categoryID string) ([]domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids, ok := c.byCategory[categoryID]
	if !ok {
		return nil, fmt.Errorf("%w: category %q", domain.ErrNotFound, categoryID)
	}
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		p, err := c.product(id)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// CartItems returns a copy of the cart lines.
func (c *Commerce) CartItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CartItem(nil), c.carts[cartID]...), nil
}

// AddToCart adds quantity units of a product. An existing line for the same
// product is incremented instead of duplicated.
func (c *Commerce) AddToCart(ctx context.Context, cartID, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrValidation, quantity)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.product(productID)
	if err != nil {
		return err
	}
	items := c.carts[cartID]
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity += quantity
			return nil
		}
	}
	c.carts[cartID] = append(items, domain.CartItem{
		ID:          c.nextID("item"),
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		UnitPrice:   p.Price,
		Quantity:    quantity,
		ImageURL:    p.ImageURL,
	})
	return nil
}

// RemoveFromCart drops a cart line. Removing an absent line is a no-op.
func (c *Commerce) RemoveFromCart(ctx context.Context, cartID, itemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.carts[cartID]
	for i := range items {
		if items[i].ID == itemID {
			c.carts[cartID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return nil
}

// CreateCustomer registers a customer. Malformed emails are rejected with domain.ErrValidation.
func (c *Commerce) CreateCustomer(ctx context.Context, name, email string) (domain.Customer, error) {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.Customer{}, fmt.Errorf("%w: invalid email %q", domain.ErrValidation, email)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cust := domain.Customer{ID: c.nextID("customer"), Name: name, Email: email}
	c.customers = append(c.customers, cust)
	return cust, nil
}

// Customers returns every registered customer.
func (c *Commerce) Customers() []domain.Customer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Customer(nil), c.customers...)
}

// Locations returns the pizzerias in insertion order.
func (c *Commerce) Locations(ctx context.Context) ([]domain.Location, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Location(nil), c.locations...), nil
}

// CreateLocation stores a pizzeria, assigning an id when missing.
func (c *Commerce) CreateLocation(ctx context.Context, loc domain.Location) (domain.Location, error) {
	if !loc.Coordinates.Valid() {
		return domain.Location{}, fmt.Errorf("%w: coordinates %s", domain.ErrValidation, loc.Coordinates)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if loc.ID == "" {
		loc.ID = c.nextID("location")
	}
	c.locations = append(c.locations, loc)
	return loc, nil
}

// DeleteLocation removes a pizzeria.
func (c *Commerce) DeleteLocation(ctx context.Context, locationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, loc := range c.locations {
		if loc.ID == locationID {
			c.locations = append(c.locations[:i:i], c.locations[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: location %q", domain.ErrNotFound, locationID)
}

// CreateCustomerAddress records a delivery address.
func (c *Commerce) CreateCustomerAddress(ctx context.Context, addr domain.CustomerAddress) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addresses = append(c.addresses, addr)
	return nil
}

// CustomerAddresses returns every recorded delivery address.
func (c *Commerce) CustomerAddresses() []domain.CustomerAddress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CustomerAddress(nil), c.addresses...)
}
