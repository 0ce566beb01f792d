package moltin

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

type cartItem struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   price  `json:"unit_price"`
	Image       struct {
		Href string `json:"href"`
	} `json:"image"`
}

type customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func cartPath(cartID string) string {
	return "/v2/carts/" + url.PathEscape(cartID) + "/items"
}

// CartItems returns the lines of a cart. Unknown carts are empty.
func (c *Client) CartItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	var body struct {
		Data []cartItem `json:"data"`
	}
	if err := c.do(ctx, "GET", cartPath(cartID), nil, nil, &body); err != nil {
		return nil, err
	}
	out := make([]domain.CartItem, 0, len(body.Data))
	for _, item := range body.Data {
		out = append(out, domain.CartItem{
			ID:          item.ID,
			ProductID:   item.ProductID,
			Name:        item.Name,
			Description: item.Description,
			UnitPrice:   c.money(item.UnitPrice),
			Quantity:    item.Quantity,
			ImageURL:    item.Image.Href,
		})
	}
	return out, nil
}

// AddToCart adds quantity units of a product. The backend merges lines of the same product.
func (c *Client) AddToCart(ctx context.Context, cartID, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	body := map[string]any{
		"data": map[string]any{
			"id":       productID,
			"type":     "cart_item",
			"quantity": quantity,
		},
	}
	return c.do(ctx, "POST", cartPath(cartID), nil, body, nil)
}

// RemoveFromCart deletes one cart line.
func (c *Client) RemoveFromCart(ctx context.Context, cartID, itemID string) error {
	return c.do(ctx, "DELETE", cartPath(cartID)+"/"+url.PathEscape(itemID), nil, nil, nil)
}

// CreateCustomer registers a customer. An email that already has a customer
// resolves to the existing record.
func (c *Client) CreateCustomer(ctx context.Context, name, email string) (domain.Customer, error) {
	body := map[string]any{
		"data": map[string]any{
			"type":  "customer",
			"name":  name,
			"email": email,
		},
	}
	var resp struct {
		Data customer `json:"data"`
	}
	err := c.do(ctx, "POST", "/v2/customers", nil, body, &resp)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == 409 {
		return c.customerByEmail(ctx, email)
	}
	if err != nil {
		return domain.Customer{}, err
	}
	return domain.Customer(resp.Data), nil
}

func (c *Client) customerByEmail(ctx context.Context, email string) (domain.Customer, error) {
	var body struct {
		Data []customer `json:"data"`
	}
	query := url.Values{"filter": {fmt.Sprintf("eq(email,%s)", email)}}
	if err := c.do(ctx, "GET", "/v2/customers", query, nil, &body); err != nil {
		return domain.Customer{}, err
	}
	if len(body.Data) == 0 {
		return domain.Customer{}, fmt.Errorf("customer %q: %w", email, domain.ErrNotFound)
	}
	return domain.Customer(body.Data[0]), nil
}
