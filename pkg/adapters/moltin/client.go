// Package moltin implements ports.Commerce on top of the Moltin (Elastic Path) v2 REST API.
package moltin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/evgen4ikrus/pizza-bot/internal/logging"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public Moltin API endpoint.
	DefaultBaseURL = "https://api.moltin.com"

	DefaultPizzeriaFlow = "pizzeria"
	DefaultAddressFlow  = "customer_address"

	DefaultMaxTries      = 3
	DefaultRetryInterval = 200 * time.Millisecond
	DefaultRateLimit     = rate.Limit(10)
	DefaultRateBurst     = 5

	// DefaultCurrency applies when the backend omits a currency code.
	DefaultCurrency = "RUB"

	entriesPageLimit = 100
)

// PizzeriaFields maps Location fields to the slugs of the pizzeria flow.
type PizzeriaFields struct {
	Alias     string
	Address   string
	Latitude  string
	Longitude string
	CourierID string
}

// AddressFields maps CustomerAddress fields to the slugs of the address flow.
// An empty slug is not sent.
type AddressFields struct {
	Latitude   string
	Longitude  string
	CustomerID string
	LocationID string
}

var (
	DefaultPizzeriaFields = PizzeriaFields{
		Alias:     "alias",
		Address:   "address",
		Latitude:  "latitude",
		Longitude: "longitude",
		CourierID: "courier_id",
	}
	DefaultAddressFields = AddressFields{
		Latitude:  "latitude",
		Longitude: "longitude",
	}
)

// Client talks to the commerce backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     *TokenSource
	limiter    *rate.Limiter
	logger     *slog.Logger

	maxTries      uint
	retryInterval time.Duration

	pizzeriaFlow   string
	addressFlow    string
	pizzeriaFields PizzeriaFields
	addressFields  AddressFields

	// priceScale converts backend amounts into minor units.
	priceScale int64
	currency   string
}

var _ ports.Commerce = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithBaseURL points the client at another API host (tests, sandboxes).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRetry bounds the number of attempts for transient failures.
func WithRetry(maxTries uint, initialInterval time.Duration) Option {
	return func(c *Client) {
		c.maxTries = maxTries
		c.retryInterval = initialInterval
	}
}

// WithRateLimit throttles outbound calls.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithFlows sets the flow slugs holding pizzerias and customer addresses.
func WithFlows(pizzeria, address string) Option {
	return func(c *Client) {
		if pizzeria != "" {
			c.pizzeriaFlow = pizzeria
		}
		if address != "" {
			c.addressFlow = address
		}
	}
}

// WithPizzeriaFields overrides the pizzeria flow field slugs.
func WithPizzeriaFields(f PizzeriaFields) Option {
	return func(c *Client) {
		c.pizzeriaFields = f
	}
}

// WithAddressFields overrides the customer address flow field slugs.
func WithAddressFields(f AddressFields) Option {
	return func(c *Client) {
		c.addressFields = f
	}
}

// WithMinorUnitPrices declares that the catalog stores amounts in minor units.
// By default amounts are whole currency units (roubles) and are scaled by 100.
func WithMinorUnitPrices() Option {
	return func(c *Client) {
		c.priceScale = 1
	}
}

// WithCurrency sets the currency used when the backend omits one.
func WithCurrency(code string) Option {
	return func(c *Client) {
		c.currency = code
	}
}

// New creates a Client authenticating with the given credentials.
func New(clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		baseURL:        DefaultBaseURL,
		limiter:        rate.NewLimiter(DefaultRateLimit, DefaultRateBurst),
		logger:         logging.NewNop(),
		maxTries:       DefaultMaxTries,
		retryInterval:  DefaultRetryInterval,
		pizzeriaFlow:   DefaultPizzeriaFlow,
		addressFlow:    DefaultAddressFlow,
		pizzeriaFields: DefaultPizzeriaFields,
		addressFields:  DefaultAddressFields,
		priceScale:     100,
		currency:       DefaultCurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.tokens = NewTokenSource(c.httpClient, c.baseURL, clientID, clientSecret)
	return c
}

// Tokens exposes the token source shared by all requests.
func (c *Client) Tokens() *TokenSource {
	return c.tokens
}

// APIError is a non-2xx answer from the backend.
// It unwraps to the domain sentinel matching its status.
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("moltin: %d", e.Status)
	if e.Title != "" {
		msg += " " + e.Title
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrValidation
	}
	return domain.ErrBackendUnavailable
}

func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests ||
		e.Status == http.StatusUnauthorized ||
		e.Status >= http.StatusInternalServerError
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil && len(body.Errors) > 0 {
		apiErr.Title = body.Errors[0].Title
		apiErr.Detail = body.Errors[0].Detail
	}
	return apiErr
}

// do performs one logical API call with throttling and retries.
// out, when non-nil, receives the decoded response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	op := func() (struct{}, error) {
		err := c.attempt(ctx, method, target, payload, out)
		if err == nil {
			return struct{}{}, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.Status == http.StatusUnauthorized {
				c.tokens.Invalidate()
			}
			if !apiErr.retryable() {
				return struct{}{}, backoff.Permanent(err)
			}
		}
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("commerce call failed, retrying",
				"method", method, "path", path, "err", err, "backoff", next)
		}),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrBackendUnavailable) {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return fmt.Errorf("%w: %s %s: %w", domain.ErrBackendUnavailable, method, path, err)
}

func (c *Client) attempt(ctx context.Context, method, target string, payload []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) money(p price) domain.Money {
	cur := p.Currency
	if cur == "" {
		cur = c.currency
	}
	return domain.NewMoney(int64(math.Round(p.Amount*float64(c.priceScale))), cur)
}
