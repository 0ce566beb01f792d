// Package yandex resolves free-text addresses with the Yandex geocoder HTTP API.
package yandex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/evgen4ikrus/pizza-bot/internal/logging"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
)

// DefaultEndpoint is the public geocoder endpoint.
const DefaultEndpoint = "https://geocode-maps.yandex.ru/1.x"

const (
	DefaultMaxTries      = 3
	DefaultRetryInterval = 200 * time.Millisecond
)

// Geocoder implements ports.Geocoder.
type Geocoder struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger

	maxTries      uint
	retryInterval time.Duration
}

var _ ports.Geocoder = (*Geocoder)(nil)

// Option configures the Geocoder.
type Option func(*Geocoder)

func WithEndpoint(u string) Option {
	return func(g *Geocoder) { g.endpoint = u }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(g *Geocoder) { g.httpClient = hc }
}

// WithRetry sets how often a failed lookup is attempted in total and the
// first pause between attempts. Only transport errors, 429 and 5xx are retried.
func WithRetry(maxTries uint, initialInterval time.Duration) Option {
	return func(g *Geocoder) {
		g.maxTries = maxTries
		g.retryInterval = initialInterval
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Geocoder) { g.logger = logger }
}

// New creates a geocoder using the given API key.
func New(apiKey string, opts ...Option) *Geocoder {
	g := &Geocoder{
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logging.NewNop(),

		maxTries:      DefaultMaxTries,
		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type response struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject struct {
					Point struct {
						Pos string `json:"pos"`
					} `json:"Point"`
				} `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

// Geocode returns the coordinates of the most relevant match.
func (g *Geocoder) Geocode(ctx context.Context, address string) (domain.Coordinates, bool, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.Coordinates{}, false, nil
	}

	query := url.Values{
		"geocode": {address},
		"apikey":  {g.apiKey},
		"format":  {"json"},
	}
	target := g.endpoint + "?" + query.Encode()

	op := func() (response, error) {
		body, err := g.fetch(ctx, target)
		var se statusError
		if errors.As(err, &se) && !se.retryable() {
			return body, backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return body, backoff.Permanent(err)
		}
		return body, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.retryInterval

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(g.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			g.logger.Warn("geocoder call failed, retrying", "err", err, "backoff", next)
		}),
	)
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("%w: geocode: %w", domain.ErrBackendUnavailable, err)
	}

	members := body.Response.GeoObjectCollection.FeatureMember
	if len(members) == 0 {
		return domain.Coordinates{}, false, nil
	}
	coords, err := parsePos(members[0].GeoObject.Point.Pos)
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return coords, true, nil
}

type statusError int

func (e statusError) Error() string { return fmt.Sprintf("status %d", int(e)) }

func (e statusError) retryable() bool {
	return e == http.StatusTooManyRequests || e >= http.StatusInternalServerError
}

// fetch runs one lookup. Undecodable bodies are not worth a retry.
func (g *Geocoder) fetch(ctx context.Context, target string) (response, error) {
	var body response
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return body, backoff.Permanent(err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return body, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return body, statusError(resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return body, backoff.Permanent(fmt.Errorf("decode: %w", err))
	}
	return body, nil
}

// parsePos reads a "lon lat" pair.
func parsePos(pos string) (domain.Coordinates, error) {
	fields := strings.Fields(pos)
	if len(fields) != 2 {
		return domain.Coordinates{}, fmt.Errorf("malformed pos %q", pos)
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("malformed longitude %q: %w", fields[0], err)
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("malformed latitude %q: %w", fields[1], err)
	}
	c := domain.Coordinates{Latitude: lat, Longitude: lon}
	if !c.Valid() {
		return domain.Coordinates{}, fmt.Errorf("coordinates out of range: %s", pos)
	}
	return c, nil
}
