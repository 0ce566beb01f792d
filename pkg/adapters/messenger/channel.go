// Package messenger connects the bot to Facebook Messenger: the Graph Send API
// for replies and the page webhook for inbound events.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
)

// ChannelName tags Messenger users in domain.UserRef.
const ChannelName = "messenger"

// Platform limits on what a user can send.
const (
	MaxTextLen    = 2000
	MaxPayloadLen = 1000
)

const (
	DefaultGraphURL = "https://graph.facebook.com/v19.0"

	// Platform limits.
	maxTextLen         = MaxTextLen
	maxTemplateTextLen = 640
	maxTemplateButtons = 3
	maxQuickReplies    = 13
	maxTitleLen        = 80
	maxButtonTitleLen  = 20
	maxElements        = 10
)

// Channel sends replies through the Graph Send API.
type Channel struct {
	graphURL   string
	pageToken  string
	httpClient *http.Client
	limiter    *rate.Limiter
	mapsURL    func(domain.Coordinates) string
}

var _ ports.Channel = (*Channel)(nil)

// Option configures the Channel.
type Option func(*Channel)

func WithGraphURL(u string) Option {
	return func(c *Channel) { c.graphURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Channel) { c.httpClient = hc }
}

// WithRateLimit throttles outbound sends.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Channel) { c.limiter = rate.NewLimiter(r, burst) }
}

// NewChannel creates a Messenger channel for a page.
func NewChannel(pageToken string, opts ...Option) *Channel {
	c := &Channel{
		graphURL:   DefaultGraphURL,
		pageToken:  pageToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(40), 10),
		mapsURL:    yandexMapsURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) Name() string { return ChannelName }

func yandexMapsURL(p domain.Coordinates) string {
	return fmt.Sprintf("https://yandex.ru/maps/?pt=%.6f,%.6f&z=16&l=map", p.Longitude, p.Latitude)
}

type recipient struct {
	ID string `json:"id"`
}

type button struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Payload string `json:"payload,omitempty"`
}

type quickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

type element struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
	Buttons  []button `json:"buttons,omitempty"`
}

type templatePayload struct {
	TemplateType string    `json:"template_type"`
	Text         string    `json:"text,omitempty"`
	Elements     []element `json:"elements,omitempty"`
	Buttons      []button  `json:"buttons,omitempty"`
}

type attachment struct {
	Type    string          `json:"type"`
	Payload templatePayload `json:"payload"`
}

type message struct {
	Text         string       `json:"text,omitempty"`
	Attachment   *attachment  `json:"attachment,omitempty"`
	QuickReplies []quickReply `json:"quick_replies,omitempty"`
}

type sendRequest struct {
	Recipient     recipient `json:"recipient"`
	MessagingType string    `json:"messaging_type"`
	Message       message   `json:"message"`
}

// SendError is a rejected Send API call.
type SendError struct {
	Status  int
	Message string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("messenger: send failed with %d: %s", e.Status, e.Message)
}

func cut(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-1]) + "…"
}

func postbacks(bs []domain.Button) []button {
	out := make([]button, 0, min(len(bs), maxTemplateButtons))
	for _, b := range bs {
		if len(out) == maxTemplateButtons {
			break
		}
		out = append(out, button{Type: "postback", Title: cut(b.Title, maxButtonTitleLen), Payload: b.Payload})
	}
	return out
}

func flatten(rows [][]domain.Button) []domain.Button {
	var out []domain.Button
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

func (c *Channel) post(ctx context.Context, req sendRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	endpoint := c.graphURL + "/me/messages?" + url.Values{"access_token": {c.pageToken}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("messenger: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
		_ = json.Unmarshal(raw, &apiErr)
		return &SendError{Status: resp.StatusCode, Message: apiErr.Error.Message}
	}
	return nil
}

func (c *Channel) send(ctx context.Context, to domain.UserRef, msg message) error {
	return c.post(ctx, sendRequest{
		Recipient:     recipient{ID: to.ID},
		MessagingType: "RESPONSE",
		Message:       msg,
	})
}

// SendText sends plain text. Up to three buttons become a button template,
// more become quick replies.
func (c *Channel) SendText(ctx context.Context, to domain.UserRef, reply domain.Reply) error {
	buttons := flatten(reply.Buttons)
	switch {
	case len(buttons) == 0:
		return c.send(ctx, to, message{Text: cut(reply.Text, maxTextLen)})
	case len(buttons) <= maxTemplateButtons:
		return c.send(ctx, to, message{Attachment: &attachment{
			Type: "template",
			Payload: templatePayload{
				TemplateType: "button",
				Text:         cut(reply.Text, maxTemplateTextLen),
				Buttons:      postbacks(buttons),
			},
		}})
	}
	qr := make([]quickReply, 0, min(len(buttons), maxQuickReplies))
	for _, b := range buttons {
		if len(qr) == maxQuickReplies {
			break
		}
		qr = append(qr, quickReply{ContentType: "text", Title: cut(b.Title, maxButtonTitleLen), Payload: b.Payload})
	}
	return c.send(ctx, to, message{Text: cut(reply.Text, maxTextLen), QuickReplies: qr})
}

// SendCard sends a generic template. A leading card carries the reply text
// and its buttons, followed by one card per item.
func (c *Channel) SendCard(ctx context.Context, to domain.UserRef, reply domain.Reply) error {
	title, subtitle, _ := strings.Cut(reply.Text, "\n")
	head := element{
		Title:    cut(title, maxTitleLen),
		Subtitle: cut(strings.TrimSpace(subtitle), maxTitleLen),
		ImageURL: reply.ImageURL,
		Buttons:  postbacks(flatten(reply.Buttons)),
	}

	elements := []element{head}
	for _, card := range reply.Cards {
		if len(elements) == maxElements {
			break
		}
		elements = append(elements, element{
			Title:    cut(card.Title, maxTitleLen),
			Subtitle: cut(card.Subtitle, maxTitleLen),
			ImageURL: card.ImageURL,
			Buttons:  postbacks(card.Buttons),
		})
	}

	return c.send(ctx, to, message{Attachment: &attachment{
		Type:    "template",
		Payload: templatePayload{TemplateType: "generic", Elements: elements},
	}})
}

// SendLocation sends a map link; the Send API has no location messages.
func (c *Channel) SendLocation(ctx context.Context, to domain.UserRef, coords domain.Coordinates) error {
	return c.send(ctx, to, message{Text: c.mapsURL(coords)})
}
