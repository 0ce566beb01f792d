package messenger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/evgen4ikrus/pizza-bot/pkg/adapters/messenger"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

var ann = domain.UserRef{Channel: messenger.ChannelName, ID: "psid-1"}

type graph struct {
	mu       sync.Mutex
	requests []map[string]any
	status   int
}

func newGraph(t *testing.T) (*graph, *messenger.Channel) {
	t.Helper()
	g := &graph{status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages", r.URL.Path)
		assert.Equal(t, "page-token", r.URL.Query().Get("access_token"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		g.mu.Lock()
		g.requests = append(g.requests, body)
		status := g.status
		g.mu.Unlock()
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"(#100) No matching user found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"recipient_id":"psid-1","message_id":"m1"}`))
	}))
	t.Cleanup(srv.Close)
	ch := messenger.NewChannel("page-token",
		messenger.WithGraphURL(srv.URL),
		messenger.WithHTTPClient(srv.Client()),
		messenger.WithRateLimit(rate.Inf, 1),
	)
	return g, ch
}

func (g *graph) last(t *testing.T) map[string]any {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.requests)
	return g.requests[len(g.requests)-1]
}

func payloadOf(t *testing.T, req map[string]any) map[string]any {
	t.Helper()
	msg := req["message"].(map[string]any)
	return msg["attachment"].(map[string]any)["payload"].(map[string]any)
}

func TestChannel_SendText(t *testing.T) {
	g, ch := newGraph(t)
	ctx := context.Background()

	require.NoError(t, ch.SendText(ctx, ann, domain.Reply{Text: "hello"}))
	req := g.last(t)
	assert.Equal(t, "psid-1", req["recipient"].(map[string]any)["id"])
	assert.Equal(t, "hello", req["message"].(map[string]any)["text"])

	require.NoError(t, ch.SendText(ctx, ann, domain.Reply{
		Text:    "Pickup or delivery?",
		Buttons: [][]domain.Button{{{Title: "Pickup", Payload: "pickup"}, {Title: "Delivery", Payload: "deliver"}}},
	}))
	p := payloadOf(t, g.last(t))
	assert.Equal(t, "button", p["template_type"])
	assert.Len(t, p["buttons"], 2)

	many := make([]domain.Button, 5)
	for i := range many {
		many[i] = domain.Button{Title: "b", Payload: "remove;x"}
	}
	require.NoError(t, ch.SendText(ctx, ann, domain.Reply{Text: "cart", Buttons: [][]domain.Button{many}}))
	msg := g.last(t)["message"].(map[string]any)
	assert.Len(t, msg["quick_replies"], 5)
}

func TestChannel_SendCard(t *testing.T) {
	g, ch := newGraph(t)

	cards := make([]domain.Card, 12)
	for i := range cards {
		cards[i] = domain.Card{Title: "Pizza", Buttons: []domain.Button{
			{Title: "Details", Payload: "product;p"},
			{Title: "Add to cart", Payload: "add;p"},
		}}
	}
	require.NoError(t, ch.SendCard(context.Background(), ann, domain.Reply{
		Kind:    domain.ReplyCard,
		Text:    "Please choose a pizza:",
		Cards:   cards,
		Buttons: [][]domain.Button{{{Title: "Cart", Payload: "cart"}}},
	}))

	p := payloadOf(t, g.last(t))
	assert.Equal(t, "generic", p["template_type"])
	elements := p["elements"].([]any)
	assert.Len(t, elements, 10)
	head := elements[0].(map[string]any)
	assert.Equal(t, "Please choose a pizza:", head["title"])
	assert.Equal(t, "cart", head["buttons"].([]any)[0].(map[string]any)["payload"])
}

func TestChannel_SendLocationAndErrors(t *testing.T) {
	g, ch := newGraph(t)
	ctx := context.Background()

	require.NoError(t, ch.SendLocation(ctx, ann, domain.Coordinates{Latitude: 55.75, Longitude: 37.62}))
	text := g.last(t)["message"].(map[string]any)["text"].(string)
	assert.Contains(t, text, "pt=37.620000,55.750000")

	g.mu.Lock()
	g.status = http.StatusBadRequest
	g.mu.Unlock()
	err := ch.SendText(ctx, ann, domain.Reply{Text: "x"})
	var sendErr *messenger.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, http.StatusBadRequest, sendErr.Status)
	assert.Contains(t, sendErr.Message, "No matching user")
}

const webhookBody = `{"object":"page","entry":[{"messaging":[
	{"sender":{"id":"psid-1"},"message":{"text":"/start"}},
	{"sender":{"id":"psid-1"},"postback":{"payload":"category;c2"}},
	{"sender":{"id":"psid-1"},"message":{"text":"Cart","quick_reply":{"payload":"cart"}}},
	{"sender":{"id":"psid-1"},"message":{"attachments":[{"type":"location","payload":{"coordinates":{"lat":55.75,"long":37.62}}}]}},
	{"sender":{"id":"page"},"message":{"is_echo":true,"text":"echo"}},
	{"sender":{"id":"psid-1"},"read":{"watermark":1}}
]}]}`

func TestParseWebhook(t *testing.T) {
	events, err := messenger.ParseWebhook([]byte(webhookBody))
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, domain.NewTextEvent(ann, "/start"), events[0])
	assert.Equal(t, domain.NewButtonEvent(ann, "category;c2"), events[1])
	assert.Equal(t, domain.NewButtonEvent(ann, "cart"), events[2])
	assert.Equal(t, domain.NewLocationEvent(ann, domain.Coordinates{Latitude: 55.75, Longitude: 37.62}), events[3])

	_, err = messenger.ParseWebhook([]byte(`{"object":"instagram"}`))
	assert.Error(t, err)
	_, err = messenger.ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

type recorder struct {
	events []domain.Event
}

func (r *recorder) Handle(ctx context.Context, ev domain.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestWebhook_VerifyAndReceive(t *testing.T) {
	rec := &recorder{}
	wh := messenger.NewWebhook("secret", rec, nil)

	w := httptest.NewRecorder()
	wh.Verify(w, httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.challenge=42&hub.verify_token=secret", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	w = httptest.NewRecorder()
	wh.Verify(w, httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.challenge=42&hub.verify_token=wrong", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	wh.Receive(w, httptest.NewRequest("POST", "/webhook", strings.NewReader(webhookBody)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, rec.events, 4)

	w = httptest.NewRecorder()
	wh.Receive(w, httptest.NewRequest("POST", "/webhook", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
