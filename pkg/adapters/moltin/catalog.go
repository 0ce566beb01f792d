package moltin

import (
	"context"
	"fmt"
	"net/url"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

type price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type relation struct {
	Data *struct {
		ID string `json:"id"`
	} `json:"data"`
}

type product struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         []price `json:"price"`
	Relationships struct {
		MainImage relation `json:"main_image"`
	} `json:"relationships"`
}

type file struct {
	ID   string `json:"id"`
	Link struct {
		Href string `json:"href"`
	} `json:"link"`
}

type included struct {
	MainImages []file `json:"main_images"`
}

type productList struct {
	Data     []product `json:"data"`
	Included included  `json:"included"`
}

type productOne struct {
	Data     product  `json:"data"`
	Included included `json:"included"`
}

type category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (inc included) images() map[string]string {
	out := make(map[string]string, len(inc.MainImages))
	for _, f := range inc.MainImages {
		out[f.ID] = f.Link.Href
	}
	return out
}

func (c *Client) toProduct(p product, images map[string]string) domain.Product {
	out := domain.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
	}
	if len(p.Price) > 0 {
		out.Price = c.money(p.Price[0])
	}
	if rel := p.Relationships.MainImage.Data; rel != nil {
		out.ImageURL = images[rel.ID]
	}
	return out
}

func (c *Client) listProducts(ctx context.Context, query url.Values) ([]domain.Product, error) {
	query.Set("include", "main_image")
	var body productList
	if err := c.do(ctx, "GET", "/v2/products", query, nil, &body); err != nil {
		return nil, err
	}
	images := body.Included.images()
	out := make([]domain.Product, 0, len(body.Data))
	for _, p := range body.Data {
		out = append(out, c.toProduct(p, images))
	}
	return out, nil
}

// Products lists the whole catalog.
func (c *Client) Products(ctx context.Context) ([]domain.Product, error) {
	return c.listProducts(ctx, url.Values{})
}

// ProductsByCategory lists the products attached to a category.
func (c *Client) ProductsByCategory(ctx context.Context, categoryID string) ([]domain.Product, error) {
	return c.listProducts(ctx, url.Values{"filter": {fmt.Sprintf("eq(category.id,%s)", categoryID)}})
}

// Product fetches one product with its main image.
func (c *Client) Product(ctx context.Context, productID string) (domain.Product, error) {
	var body productOne
	path := "/v2/products/" + url.PathEscape(productID)
	if err := c.do(ctx, "GET", path, url.Values{"include": {"main_image"}}, nil, &body); err != nil {
		return domain.Product{}, err
	}
	return c.toProduct(body.Data, body.Included.images()), nil
}

// Categories lists all catalog categories.
func (c *Client) Categories(ctx context.Context) ([]domain.Category, error) {
	var body struct {
		Data []category `json:"data"`
	}
	if err := c.do(ctx, "GET", "/v2/categories", nil, nil, &body); err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(body.Data))
	for _, cat := range body.Data {
		out = append(out, domain.Category(cat))
	}
	return out, nil
}

// CategoryBySlug finds a category by its slug.
func (c *Client) CategoryBySlug(ctx context.Context, slug string) (domain.Category, error) {
	var body struct {
		Data []category `json:"data"`
	}
	query := url.Values{"filter": {fmt.Sprintf("eq(slug,%s)", slug)}}
	if err := c.do(ctx, "GET", "/v2/categories", query, nil, &body); err != nil {
		return domain.Category{}, err
	}
	if len(body.Data) == 0 {
		return domain.Category{}, fmt.Errorf("category %q: %w", slug, domain.ErrNotFound)
	}
	return domain.Category(body.Data[0]), nil
}
