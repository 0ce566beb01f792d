package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/evgen4ikrus/pizza-bot/internal/logging"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

const maxWebhookBody = 1 << 20

// EventHandler consumes converted events. runner.Dispatcher implements it.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []messagingEvent `json:"messaging"`
	} `json:"entry"`
}

type messagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Message *struct {
		IsEcho     bool   `json:"is_echo"`
		Text       string `json:"text"`
		QuickReply *struct {
			Payload string `json:"payload"`
		} `json:"quick_reply"`
		Attachments []struct {
			Type    string `json:"type"`
			Payload struct {
				Coordinates *struct {
					Lat  float64 `json:"lat"`
					Long float64 `json:"long"`
				} `json:"coordinates"`
			} `json:"payload"`
		} `json:"attachments"`
	} `json:"message"`
	Postback *struct {
		Payload string `json:"payload"`
	} `json:"postback"`
}

// ParseWebhook converts a page webhook body into events, in delivery order.
// Echoes, reads and unsupported attachments are skipped.
func ParseWebhook(body []byte) ([]domain.Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("messenger: decode webhook: %w", err)
	}
	if payload.Object != "page" {
		return nil, fmt.Errorf("messenger: unexpected object %q", payload.Object)
	}

	var events []domain.Event
	for _, entry := range payload.Entry {
		for _, m := range entry.Messaging {
			if ev, ok := toEvent(m); ok {
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

func toEvent(m messagingEvent) (domain.Event, bool) {
	if m.Sender.ID == "" {
		return domain.Event{}, false
	}
	user := domain.UserRef{Channel: ChannelName, ID: m.Sender.ID}

	switch {
	case m.Postback != nil:
		return domain.NewButtonEvent(user, m.Postback.Payload), true
	case m.Message == nil || m.Message.IsEcho:
		return domain.Event{}, false
	case m.Message.QuickReply != nil:
		return domain.NewButtonEvent(user, m.Message.QuickReply.Payload), true
	}
	for _, a := range m.Message.Attachments {
		if a.Type == "location" && a.Payload.Coordinates != nil {
			return domain.NewLocationEvent(user, domain.Coordinates{
				Latitude:  a.Payload.Coordinates.Lat,
				Longitude: a.Payload.Coordinates.Long,
			}), true
		}
	}
	if m.Message.Text != "" {
		return domain.NewTextEvent(user, m.Message.Text), true
	}
	return domain.Event{}, false
}

// Webhook serves the page subscription endpoint.
type Webhook struct {
	verifyToken string
	handler     EventHandler
	logger      *slog.Logger
}

// NewWebhook creates the webhook endpoint.
func NewWebhook(verifyToken string, handler EventHandler, logger *slog.Logger) *Webhook {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Webhook{verifyToken: verifyToken, handler: handler, logger: logger}
}

// Verify answers the subscription handshake.
func (wh *Webhook) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.challenge") == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if q.Get("hub.verify_token") != wh.verifyToken {
		http.Error(w, "Verification token mismatch", http.StatusForbidden)
		return
	}
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// Receive handles a batch of events. Events are handled in order; a failing
// event is logged and does not block the rest, and the platform always gets 200
// for a well-formed body so it does not redeliver.
func (wh *Webhook) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	events, err := ParseWebhook(body)
	if err != nil {
		wh.logger.Warn("Rejected webhook body", "err", err)
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	for _, ev := range events {
		if err := wh.handler.Handle(ctx, ev); err != nil {
			wh.logger.Error("Failed to handle event", "user", ev.User.Key(), "err", err)
		}
	}
	_, _ = io.WriteString(w, "ok")
}
