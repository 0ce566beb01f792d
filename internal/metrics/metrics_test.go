package metrics_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evgen4ikrus/pizza-bot/internal/metrics"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
)

func TestHooks_CountOutcomes(t *testing.T) {
	m := metrics.New()
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnTransition(ctx, &domain.TransitionEvent{
		From: domain.StateStart, To: domain.StateMenu, Kind: domain.OutcomeAdvance, Duration: 5 * time.Millisecond,
	})
	hooks.OnTransition(ctx, &domain.TransitionEvent{
		From: domain.StateStart, To: domain.StateMenu, Kind: domain.OutcomeAdvance,
	})
	hooks.OnRetry(ctx, &domain.TransitionEvent{
		From: domain.StateWaitingEmail, To: domain.StateWaitingEmail, Kind: domain.OutcomeRetry,
	})
	hooks.OnFatal(ctx, &domain.TransitionEvent{From: "BOGUS", To: "BOGUS", Kind: domain.OutcomeFatal})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("START", "MENU")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("advance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("fatal")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.StepDuration))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := metrics.New()
	m.Hooks().OnTransition(context.Background(), &domain.TransitionEvent{
		From: domain.StateCart, To: domain.StateWaitingEmail, Kind: domain.OutcomeAdvance,
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `pizzabot_transitions_total{from="CART",to="WAITING_EMAIL"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
