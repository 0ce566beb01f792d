package runtime

import (
	"context"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/render"
)

// menu renders the product list. An empty categoryID selects the front category
// when one is configured, the whole catalog otherwise.
func (e *Engine) menu(ctx context.Context, categoryID string) (domain.Reply, string, error) {
	ctx, cancel := e.call(ctx)
	defer cancel()

	if categoryID == "" && e.frontCategory != "" {
		cat, err := e.commerce.CategoryBySlug(ctx, e.frontCategory)
		if err != nil {
			return domain.Reply{}, "", err
		}
		categoryID = cat.ID
	}

	if categoryID == "" {
		products, err := e.commerce.Products(ctx)
		if err != nil {
			return domain.Reply{}, "", err
		}
		return render.Menu(products, nil, ""), "", nil
	}

	products, err := e.commerce.ProductsByCategory(ctx, categoryID)
	if err != nil {
		return domain.Reply{}, "", err
	}
	categories, err := e.commerce.Categories(ctx)
	if err != nil {
		return domain.Reply{}, "", err
	}
	return render.Menu(products, categories, categoryID), categoryID, nil
}

func (e *Engine) cart(ctx context.Context, s *domain.Session) (domain.Cart, error) {
	ctx, cancel := e.call(ctx)
	defer cancel()

	items, err := e.commerce.CartItems(ctx, s.User.Key())
	if err != nil {
		return domain.Cart{}, err
	}
	return domain.Cart{Items: items}, nil
}

func (e *Engine) cartView(ctx context.Context, s *domain.Session) (domain.Reply, domain.Cart, error) {
	cart, err := e.cart(ctx, s)
	if err != nil {
		return domain.Reply{}, domain.Cart{}, err
	}
	reply, err := render.Cart(cart)
	return reply, cart, err
}

func (e *Engine) addToCart(ctx context.Context, s *domain.Session, productID string) error {
	ctx, cancel := e.call(ctx)
	defer cancel()
	return e.commerce.AddToCart(ctx, s.User.Key(), productID, 1)
}

// customerName is the name registered with the commerce backend.
func customerName(u domain.UserRef) string {
	if u.Name == "" {
		return "id:" + u.ID
	}
	return u.Name + " id:" + u.ID
}
