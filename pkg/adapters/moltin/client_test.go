package moltin_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evgen4ikrus/pizza-bot/pkg/adapters/moltin"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type backend struct {
	mux        *http.ServeMux
	tokenCalls atomic.Int32
	expiresIn  atomic.Int64 // seconds
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{mux: http.NewServeMux()}
	b.expiresIn.Store(3600)
	b.mux.HandleFunc("POST /oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		n := b.tokenCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": fmt.Sprintf("tok-%d", n),
			"expires":      time.Now().Unix() + b.expiresIn.Load(),
		})
	})
	srv := httptest.NewServer(b.mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(srv *httptest.Server, opts ...moltin.Option) *moltin.Client {
	base := []moltin.Option{
		moltin.WithBaseURL(srv.URL),
		moltin.WithHTTPClient(srv.Client()),
		moltin.WithRetry(3, time.Millisecond),
		moltin.WithRateLimit(rate.Inf, 1),
	}
	return moltin.New("id", "secret", append(base, opts...)...)
}

func TestTokenSource_SingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "shared",
			"expires":      time.Now().Add(time.Hour).Unix(),
		})
	}))
	defer srv.Close()

	ts := moltin.NewTokenSource(srv.Client(), srv.URL, "id", "secret")

	const callers = 20
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = ts.Token(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", tokens[i])
	}
}

func TestTokenSource_RefreshMargin(t *testing.T) {
	b, srv := newBackend(t)
	ts := moltin.NewTokenSource(srv.Client(), srv.URL, "id", "secret")

	b.expiresIn.Store(10) // inside the refresh margin
	first, err := ts.Token(context.Background())
	require.NoError(t, err)
	second, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	b.expiresIn.Store(3600)
	third, err := ts.Token(context.Background())
	require.NoError(t, err)
	fourth, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, third, fourth)
	assert.Equal(t, int32(3), b.tokenCalls.Load())
}

func TestClient_Products(t *testing.T) {
	b, srv := newBackend(t)
	b.mux.HandleFunc("GET /v2/products", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "main_image", r.URL.Query().Get("include"))
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []any{
				map[string]any{
					"id": "p1", "name": "Margherita", "description": "Tomato",
					"price":         []any{map[string]any{"amount": 500, "currency": "RUB"}},
					"relationships": map[string]any{"main_image": map[string]any{"data": map[string]any{"id": "img1"}}},
				},
				map[string]any{"id": "p2", "name": "Plain", "price": []any{map[string]any{"amount": 300}}},
			},
			"included": map[string]any{
				"main_images": []any{map[string]any{"id": "img1", "link": map[string]any{"href": "https://cdn/img1.png"}}},
			},
		})
	})

	products, err := newClient(srv).Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "Margherita", products[0].Name)
	assert.Equal(t, domain.NewMoney(50000, "RUB"), products[0].Price)
	assert.Equal(t, "https://cdn/img1.png", products[0].ImageURL)
	assert.Equal(t, domain.NewMoney(30000, moltin.DefaultCurrency), products[1].Price)
	assert.Empty(t, products[1].ImageURL)
}

func TestClient_MinorUnitPrices(t *testing.T) {
	b, srv := newBackend(t)
	b.mux.HandleFunc("GET /v2/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{"id": r.PathValue("id"), "name": "X",
				"price": []any{map[string]any{"amount": 60050, "currency": "RUB"}}},
		})
	})

	p, err := newClient(srv, moltin.WithMinorUnitPrices()).Product(context.Background(), "p9")
	require.NoError(t, err)
	assert.Equal(t, "p9", p.ID)
	assert.Equal(t, int64(60050), p.Price.Amount)
}

func TestClient_CategoryBySlug(t *testing.T) {
	b, srv := newBackend(t)
	b.mux.HandleFunc("GET /v2/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filter") == "eq(slug,front_page)" {
			writeJSON(w, http.StatusOK, map[string]any{"data": []any{
				map[string]any{"id": "c1", "name": "Front", "slug": "front_page"},
			}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	})
	client := newClient(srv)

	cat, err := client.CategoryBySlug(context.Background(), "front_page")
	require.NoError(t, err)
	assert.Equal(t, domain.Category{ID: "c1", Name: "Front", Slug: "front_page"}, cat)

	_, err = client.CategoryBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_Cart(t *testing.T) {
	b, srv := newBackend(t)
	var added map[string]any
	var removed string
	b.mux.HandleFunc("GET /v2/carts/{cart}/items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "telegram:42", r.PathValue("cart"))
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{
			map[string]any{
				"id": "i1", "product_id": "p1", "name": "Margherita", "quantity": 2,
				"unit_price": map[string]any{"amount": 500, "currency": "RUB"},
				"image":      map[string]any{"href": "https://cdn/i.png"},
			},
		}})
	})
	b.mux.HandleFunc("POST /v2/carts/{cart}/items", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &added))
		writeJSON(w, http.StatusCreated, map[string]any{"data": []any{}})
	})
	b.mux.HandleFunc("DELETE /v2/carts/{cart}/items/{item}", func(w http.ResponseWriter, r *http.Request) {
		removed = r.PathValue("item")
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	})
	client := newClient(srv)
	ctx := context.Background()

	items, err := client.CartItems(ctx, "telegram:42")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.NewMoney(50000, "RUB"), items[0].UnitPrice)
	assert.Equal(t, 2, items[0].Quantity)

	total, err := domain.Cart{Items: items}.Total()
	require.NoError(t, err)
	assert.Equal(t, int64(100000), total.Amount)

	require.NoError(t, client.AddToCart(ctx, "telegram:42", "p1", 1))
	data := added["data"].(map[string]any)
	assert.Equal(t, "p1", data["id"])
	assert.Equal(t, "cart_item", data["type"])
	assert.EqualValues(t, 1, data["quantity"])

	require.NoError(t, client.RemoveFromCart(ctx, "telegram:42", "i1"))
	assert.Equal(t, "i1", removed)

	assert.ErrorIs(t, client.AddToCart(ctx, "telegram:42", "p1", 0), domain.ErrValidation)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		wantCalls int32
	}{
		{"not found", http.StatusNotFound, domain.ErrNotFound, 1},
		{"validation", http.StatusUnprocessableEntity, domain.ErrValidation, 1},
		{"bad request", http.StatusBadRequest, domain.ErrValidation, 1},
		{"forbidden", http.StatusForbidden, domain.ErrBackendUnavailable, 1},
		{"server error retried", http.StatusBadGateway, domain.ErrBackendUnavailable, 3},
		{"throttled retried", http.StatusTooManyRequests, domain.ErrBackendUnavailable, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, srv := newBackend(t)
			var calls atomic.Int32
			b.mux.HandleFunc("GET /v2/products/{id}", func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeJSON(w, tt.status, map[string]any{"errors": []any{
					map[string]any{"status": tt.status, "title": "Oops", "detail": "details"},
				}})
			})

			_, err := newClient(srv).Product(context.Background(), "p1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCalls, calls.Load())

			var apiErr *moltin.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, "details", apiErr.Detail)
		})
	}
}

func TestClient_RecoversFromTransientFailure(t *testing.T) {
	b, srv := newBackend(t)
	var calls atomic.Int32
	b.mux.HandleFunc("GET /v2/categories", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{map[string]any{"id": "c1"}}})
	})

	cats, err := newClient(srv).Categories(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_UnauthorizedRefreshesToken(t *testing.T) {
	b, srv := newBackend(t)
	b.mux.HandleFunc("GET /v2/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	})

	_, err := newClient(srv).Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), b.tokenCalls.Load())
}

func TestClient_CreateCustomer(t *testing.T) {
	b, srv := newBackend(t)
	b.mux.HandleFunc("POST /v2/customers", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch body.Data["email"] {
		case "bad":
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": []any{
				map[string]any{"title": "Failed Validation", "detail": "email must be valid"},
			}})
		case "taken@example.com":
			writeJSON(w, http.StatusConflict, map[string]any{"errors": []any{map[string]any{"title": "Duplicate email"}}})
		default:
			writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
				"id": "cust-1", "name": body.Data["name"], "email": body.Data["email"],
			}})
		}
	})
	b.mux.HandleFunc("GET /v2/customers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq(email,taken@example.com)", r.URL.Query().Get("filter"))
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{
			map[string]any{"id": "cust-old", "name": "Old", "email": "taken@example.com"},
		}})
	})
	client := newClient(srv)
	ctx := context.Background()

	c, err := client.CreateCustomer(ctx, "Ann id:1", "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.Customer{ID: "cust-1", Name: "Ann id:1", Email: "ann@example.com"}, c)

	_, err = client.CreateCustomer(ctx, "Ann id:1", "bad")
	assert.ErrorIs(t, err, domain.ErrValidation)

	c, err = client.CreateCustomer(ctx, "Ann id:1", "taken@example.com")
	require.NoError(t, err)
	assert.Equal(t, "cust-old", c.ID)
}

func TestClient_Locations(t *testing.T) {
	b, srv := newBackend(t)
	b.mux.HandleFunc("GET /v2/flows/{flow}/entries", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pizzeria", r.PathValue("flow"))
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{
			map[string]any{"id": "e1", "alias": "Center", "address": "Tverskaya 1",
				"latitude": 55.7560, "longitude": "37.6180", "courier_id": 900},
			map[string]any{"id": "e2", "alias": "Broken", "latitude": nil, "longitude": 37.0},
		}})
	})

	locs, err := newClient(srv).Locations(context.Background())
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, domain.Location{
		ID: "e1", Alias: "Center", Address: "Tverskaya 1",
		Coordinates: domain.Coordinates{Latitude: 55.7560, Longitude: 37.6180},
		CourierID:   "900",
	}, locs[0])
}

func TestClient_LocationWrites(t *testing.T) {
	b, srv := newBackend(t)
	var created, address map[string]any
	b.mux.HandleFunc("POST /v2/flows/pizzeria/entries", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": "e9"}})
	})
	b.mux.HandleFunc("POST /v2/flows/addresses/entries", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&address))
		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": "a1"}})
	})
	b.mux.HandleFunc("DELETE /v2/flows/pizzeria/entries/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "e9" {
			writeJSON(w, http.StatusNotFound, map[string]any{})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	fields := moltin.DefaultAddressFields
	fields.CustomerID = "customer_id"
	client := newClient(srv, moltin.WithFlows("", "addresses"), moltin.WithAddressFields(fields))
	ctx := context.Background()

	loc, err := client.CreateLocation(ctx, domain.Location{
		Alias: "North", Address: "Lenina 5",
		Coordinates: domain.Coordinates{Latitude: 55.9, Longitude: 37.6},
		CourierID:   "901",
	})
	require.NoError(t, err)
	assert.Equal(t, "e9", loc.ID)
	data := created["data"].(map[string]any)
	assert.Equal(t, "entry", data["type"])
	assert.Equal(t, "North", data["alias"])
	assert.InDelta(t, 55.9, data["latitude"], 1e-9)
	assert.Equal(t, "901", data["courier_id"])

	_, err = client.CreateLocation(ctx, domain.Location{Coordinates: domain.Coordinates{Latitude: 100}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, client.CreateCustomerAddress(ctx, domain.CustomerAddress{
		CustomerID: "cust-1", Coordinates: domain.Coordinates{Latitude: 55.75, Longitude: 37.62},
	}))
	data = address["data"].(map[string]any)
	assert.Equal(t, "cust-1", data["customer_id"])
	assert.InDelta(t, 37.62, data["longitude"], 1e-9)
	assert.NotContains(t, data, "location_id")

	require.NoError(t, client.DeleteLocation(ctx, "e9"))
	assert.ErrorIs(t, client.DeleteLocation(ctx, "nope"), domain.ErrNotFound)
}
