package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/evgen4ikrus/pizza-bot/internal/logging"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

// Webhook is a chat platform endpoint with a GET handshake and a POST receiver.
type Webhook interface {
	Verify(w http.ResponseWriter, r *http.Request)
	Receive(w http.ResponseWriter, r *http.Request)
}

// Server wires the bot's HTTP surface.
type Server struct {
	Webhook Webhook
	Metrics http.Handler
	Streams *StreamManager
	Version string
	Logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithWebhook mounts a platform webhook at /webhook.
func WithWebhook(wh Webhook) Option {
	return func(s *Server) { s.Webhook = wh }
}

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.Metrics = h }
}

// WithStreams exposes the transition feed at /events.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

func WithVersion(v string) Option {
	return func(s *Server) { s.Version = v }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.Logger = l }
}

// NewHandler creates the router.
func NewHandler(opts ...Option) http.Handler {
	s := &Server{Version: "dev", Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	if s.Webhook != nil {
		r.Get("/webhook", s.Webhook.Verify)
		r.Post("/webhook", s.Webhook.Receive)
	}
	if s.Streams != nil {
		r.Get("/events", s.SubscribeEvents)
	}
	return r
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"app":     "pizzabot",
		"version": strings.TrimSpace(s.Version),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// AllUsers subscribes to the transitions of every user.
const AllUsers = "*"

// StreamManager fans transition events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // user key -> set of channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(userKey string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[userKey]; !ok {
		sm.subscribers[userKey] = make(map[chan<- string]struct{})
	}
	sm.subscribers[userKey][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[userKey]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, userKey)
			}
		}
	}
}

// Broadcast sends msg to the subscribers of userKey and of AllUsers.
func (sm *StreamManager) Broadcast(userKey string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, key := range []string{userKey, AllUsers} {
		for ch := range sm.subscribers[key] {
			select {
			case ch <- msg:
			default:
				// Slow client.
				sm.logger.Warn("SSE: Client buffer full, dropping message", "user", userKey)
			}
		}
	}
}

// Hooks publishes every handled event to the feed.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	publish := func(_ context.Context, e *domain.TransitionEvent) {
		raw, err := json.Marshal(e)
		if err != nil {
			return
		}
		sm.Broadcast(e.UserKey, string(raw))
	}
	return domain.LifecycleHooks{OnTransition: publish, OnRetry: publish, OnFatal: publish}
}

// SubscribeEvents handles the GET /events request (SSE). The optional user
// parameter narrows the feed to one session key.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	userKey := r.URL.Query().Get("user")
	if userKey == "" {
		userKey = AllUsers
	}
	s.Logger.Info("SSE: Subscribing to transitions", "user", userKey)

	ch, cancel := s.Streams.Subscribe(userKey)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	// Parse 'kind' filter
	var kinds []string
	if k := r.URL.Query().Get("kind"); k != "" {
		kinds = strings.Split(k, ",")
	}

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(kinds) > 0 && !matchesKind(msg, kinds) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func matchesKind(msg string, kinds []string) bool {
	var ev domain.TransitionEvent
	if err := json.Unmarshal([]byte(msg), &ev); err != nil {
		return true
	}
	for _, k := range kinds {
		if strings.TrimSpace(k) == string(ev.Kind) {
			return true
		}
	}
	return false
}
