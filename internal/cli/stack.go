// Package cli wires configuration into the running bot: stores, collaborators,
// engine, session manager and observability.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pizzabot "github.com/evgen4ikrus/pizza-bot"
	"github.com/evgen4ikrus/pizza-bot/internal/config"
	"github.com/evgen4ikrus/pizza-bot/internal/metrics"
	"github.com/evgen4ikrus/pizza-bot/pkg/adapters/file"
	httpadapter "github.com/evgen4ikrus/pizza-bot/pkg/adapters/http"
	"github.com/evgen4ikrus/pizza-bot/pkg/adapters/moltin"
	redisadapter "github.com/evgen4ikrus/pizza-bot/pkg/adapters/redis"
	"github.com/evgen4ikrus/pizza-bot/pkg/adapters/yandex"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/persistence/middleware"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
	"github.com/evgen4ikrus/pizza-bot/pkg/runner"
	"github.com/evgen4ikrus/pizza-bot/pkg/session"
)

// Stack is everything a bot process runs on.
type Stack struct {
	Config   *config.Config
	Logger   *slog.Logger
	Engine   *pizzabot.Engine
	Commerce ports.Commerce
	Geocoder ports.Geocoder
	Store    ports.SessionStore
	Sessions *session.Manager
	Metrics  *metrics.Metrics
	Streams  *httpadapter.StreamManager

	// Cache is set when Redis is configured.
	Cache *redisadapter.CatalogCache

	redis goredis.UniversalClient
}

type stackOptions struct {
	commerce ports.Commerce
	geocoder ports.Geocoder
	redis    goredis.UniversalClient
	logger   *slog.Logger
}

// StackOption overrides a part of the stack, mostly for tests.
type StackOption func(*stackOptions)

// WithCommerce replaces the Moltin client.
func WithCommerce(c ports.Commerce) StackOption {
	return func(o *stackOptions) { o.commerce = c }
}

// WithGeocoder replaces the Yandex geocoder.
func WithGeocoder(g ports.Geocoder) StackOption {
	return func(o *stackOptions) { o.geocoder = g }
}

// WithRedisClient uses an existing client instead of dialing REDIS_URL.
func WithRedisClient(c goredis.UniversalClient) StackOption {
	return func(o *stackOptions) { o.redis = c }
}

// WithStackLogger replaces the logger built from the configuration.
func WithStackLogger(l *slog.Logger) StackOption {
	return func(o *stackOptions) { o.logger = l }
}

// Build validates cfg for mode and assembles the stack. On error the Redis
// client, dialed or injected, is closed.
func Build(cfg *config.Config, mode config.Mode, opts ...StackOption) (_ *Stack, err error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	var o stackOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Stack{Config: cfg, Logger: o.logger}
	if s.Logger == nil {
		s.Logger = cfg.Logger()
	}

	s.redis = o.redis
	if s.redis == nil {
		if s.redis, err = dialRedis(cfg); err != nil {
			return nil, err
		}
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()
	if s.redis != nil {
		if err = s.pingRedis(); err != nil {
			return nil, err
		}
	}

	if s.Commerce, err = s.buildCommerce(o.commerce, mode); err != nil {
		return nil, err
	}
	if s.Geocoder, err = s.buildGeocoder(o.geocoder, mode); err != nil {
		return nil, err
	}
	if s.Store, s.Sessions, err = newSessions(cfg, s.redis, s.Logger); err != nil {
		return nil, err
	}

	s.Metrics = metrics.New()
	s.Streams = httpadapter.NewStreamManager(s.Logger)
	hooks := domain.MergeHooks(s.Metrics.Hooks(), s.Streams.Hooks())

	s.Engine, err = pizzabot.New(s.Commerce, s.Geocoder,
		pizzabot.WithLogger(s.Logger),
		pizzabot.WithLifecycleHooks(hooks),
		pizzabot.WithFees(cfg.Fees()),
		pizzabot.WithCallTimeout(cfg.CallTimeout),
		pizzabot.WithFrontCategory(cfg.FrontCategory),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Stack) buildCommerce(injected ports.Commerce, mode config.Mode) (ports.Commerce, error) {
	cfg := s.Config
	commerce := injected
	switch {
	case commerce != nil:
	case cfg.MoltinClientID != "":
		commerce = moltin.New(cfg.MoltinClientID, cfg.MoltinClientSecret,
			moltin.WithBaseURL(cfg.MoltinBaseURL),
			moltin.WithFlows(cfg.PizzeriaFlow, cfg.AddressFlow),
			moltin.WithCurrency(cfg.Currency),
			moltin.WithLogger(s.Logger),
		)
	case mode == config.ModeConsole:
		s.Logger.Info("MOLTIN_CLIENT_ID is not set, using the demo catalog")
		commerce = DemoCatalog()
	default:
		return nil, errors.New("no commerce backend configured")
	}

	if s.redis != nil {
		s.Cache = redisadapter.NewCatalogCache(commerce, s.redis,
			redisadapter.WithCachePrefix(cfg.RedisPrefix),
			redisadapter.WithCacheTTL(cfg.CatalogTTL),
			redisadapter.WithCacheLogger(s.Logger),
		)
		return s.Cache, nil
	}
	return commerce, nil
}

func (s *Stack) buildGeocoder(injected ports.Geocoder, mode config.Mode) (ports.Geocoder, error) {
	switch {
	case injected != nil:
		return injected, nil
	case s.Config.YandexAPIKey != "":
		return yandex.New(s.Config.YandexAPIKey, yandex.WithLogger(s.Logger)), nil
	case mode == config.ModeConsole || mode == config.ModeOps:
		s.Logger.Info("YANDEX_API_KEY is not set, only shared locations are understood")
		return coordinatesOnly{}, nil
	}
	return nil, errors.New("no geocoder configured")
}

// newSessions stores sessions in Redis when a client is given, on disk otherwise.
// Only Redis gives cross-process per-user locking. Extra middlewares wrap the
// store outside of encryption.
func newSessions(cfg *config.Config, client goredis.UniversalClient, logger *slog.Logger, mws ...middleware.Middleware) (ports.SessionStore, *session.Manager, error) {
	managerOpts := []session.Option{session.WithLogger(logger)}
	var store ports.SessionStore
	if client != nil {
		storeOpts := []redisadapter.Option{redisadapter.WithPrefix(cfg.RedisPrefix)}
		if cfg.SessionTTL > 0 {
			storeOpts = append(storeOpts, redisadapter.WithTTL(cfg.SessionTTL))
		}
		store = redisadapter.NewFromClient(client, storeOpts...)
		managerOpts = append(managerOpts, session.WithLocker(redisadapter.NewLocker(client, cfg.RedisPrefix)))
	} else {
		store = file.New(cfg.SessionDir)
	}

	enc, err := cfg.Encryption()
	if err != nil {
		return nil, nil, err
	}
	if enc != nil {
		sealer, err := middleware.NewEncryptionMiddleware(*enc)
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, sealer)
	}
	store = middleware.Chain(store, mws...)
	return store, session.NewManager(store, managerOpts...), nil
}

func (s *Stack) pingRedis() error {
	timeout := s.Config.CallTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func dialRedis(cfg *config.Config) (goredis.UniversalClient, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return goredis.NewClient(opts), nil
}

// OpenSessions gives the ops commands the session manager without building
// the rest of the stack. Personal data is masked on load unless reveal is set.
// The returned func releases the Redis connection.
func OpenSessions(cfg *config.Config, logger *slog.Logger, reveal bool) (*session.Manager, func() error, error) {
	client, err := dialRedis(cfg)
	if err != nil {
		return nil, nil, err
	}
	var mws []middleware.Middleware
	if !reveal {
		mws = append(mws, middleware.NewPIIMiddleware())
	}
	_, manager, err := newSessions(cfg, client, logger, mws...)
	closeFn := func() error { return nil }
	if client != nil {
		closeFn = client.Close
	}
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return manager, closeFn, nil
}

// Dispatcher creates the event dispatcher over the stack's engine and sessions.
func (s *Stack) Dispatcher(opts ...runner.Option) *runner.Dispatcher {
	opts = append([]runner.Option{
		runner.WithLogger(s.Logger),
		runner.WithMaxInputSize(s.Config.MaxInputSize),
	}, opts...)
	return runner.NewDispatcher(s.Engine, s.Sessions, opts...)
}

// HTTPHandler builds the HTTP surface: health, metrics, transition feed and
// the given webhook when not nil.
func (s *Stack) HTTPHandler(version string, webhook httpadapter.Webhook) http.Handler {
	opts := []httpadapter.Option{
		httpadapter.WithVersion(version),
		httpadapter.WithLogger(s.Logger),
		httpadapter.WithMetrics(s.Metrics.Handler()),
		httpadapter.WithStreams(s.Streams),
	}
	if webhook != nil {
		opts = append(opts, httpadapter.WithWebhook(webhook))
	}
	return httpadapter.NewHandler(opts...)
}

// Close releases the Redis connection, if any.
func (s *Stack) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
