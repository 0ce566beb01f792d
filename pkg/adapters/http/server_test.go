package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

type mockWebhook struct {
	verified, received int
}

func (m *mockWebhook) Verify(w http.ResponseWriter, r *http.Request) {
	m.verified++
	io.WriteString(w, r.URL.Query().Get("hub.challenge"))
}

func (m *mockWebhook) Receive(w http.ResponseWriter, r *http.Request) {
	m.received++
	io.WriteString(w, "ok")
}

func TestHealthAndInfo(t *testing.T) {
	handler := NewHandler(WithVersion("1.2.3\n"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("Unexpected health response: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/info", nil))
	if !strings.Contains(w.Body.String(), `"version":"1.2.3"`) {
		t.Errorf("Expected trimmed version, got %s", w.Body.String())
	}
}

func TestWebhookRoutes(t *testing.T) {
	wh := &mockWebhook{}
	handler := NewHandler(WithWebhook(wh))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/webhook?hub.challenge=abc", nil))
	if w.Body.String() != "abc" {
		t.Errorf("Expected challenge echo, got %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/webhook", strings.NewReader("{}")))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 OK, got %d", w.Code)
	}
	if wh.verified != 1 || wh.received != 1 {
		t.Errorf("Unexpected calls: verify=%d receive=%d", wh.verified, wh.received)
	}
}

func TestOptionalRoutesAreNotMounted(t *testing.T) {
	handler := NewHandler()
	for _, path := range []string{"/metrics", "/webhook", "/events"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestSubscribeEvents_User(t *testing.T) {
	streams := NewStreamManager(nil)
	handler := NewHandler(WithStreams(streams))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wSub := httptest.NewRecorder()
	reqSub := httptest.NewRequest("GET", "/events?user=telegram:42&kind=advance", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(wSub, reqSub)
	}()

	time.Sleep(100 * time.Millisecond) // Wait for subscription to register

	hooks := streams.Hooks()
	hooks.OnTransition(ctx, &domain.TransitionEvent{
		UserKey: "telegram:42", From: domain.StateStart, To: domain.StateMenu, Kind: domain.OutcomeAdvance,
	})
	hooks.OnRetry(ctx, &domain.TransitionEvent{
		UserKey: "telegram:42", From: domain.StateMenu, To: domain.StateMenu, Kind: domain.OutcomeRetry,
	})
	hooks.OnTransition(ctx, &domain.TransitionEvent{
		UserKey: "telegram:7", From: domain.StateStart, To: domain.StateMenu, Kind: domain.OutcomeAdvance,
	})

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	output := wSub.Body.String()
	if !strings.Contains(output, "event: ping") {
		t.Error("Expected initial ping")
	}
	if !strings.Contains(output, `"user_key":"telegram:42"`) {
		t.Error("Expected the subscribed user's transition")
	}
	if strings.Contains(output, `"kind":"retry"`) {
		t.Error("Expected retries to be filtered out")
	}
	if strings.Contains(output, "telegram:7") {
		t.Error("Expected other users to be filtered out")
	}
}

func TestStreamManager_AllUsers(t *testing.T) {
	streams := NewStreamManager(nil)
	ch, unsubscribe := streams.Subscribe(AllUsers)
	defer unsubscribe()

	streams.Broadcast("messenger:1", "one")
	streams.Broadcast("telegram:2", "two")

	if got := <-ch; got != "one" {
		t.Errorf("Expected one, got %s", got)
	}
	if got := <-ch; got != "two" {
		t.Errorf("Expected two, got %s", got)
	}
}
