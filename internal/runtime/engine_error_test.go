package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/evgen4ikrus/pizza-bot/internal/runtime"
	"github.com/evgen4ikrus/pizza-bot/internal/testutils"
	"github.com/evgen4ikrus/pizza-bot/pkg/delivery"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_BackendUnavailableRetries(t *testing.T) {
	flaky := &testutils.FlakyCommerce{Commerce: testutils.Catalog()}
	eng := runtime.NewEngine(flaky, &testutils.Geocoder{}, nil)
	flaky.SetErr(fmt.Errorf("%w: connection reset", domain.ErrBackendUnavailable))

	for _, state := range []domain.State{domain.StateStart, domain.StateMenu, domain.StateCart, domain.StateWaitingEmail} {
		sess := sessionIn(state)
		ev := button("cart")
		if state == domain.StateWaitingEmail {
			ev = text("ann@example.com")
		}
		out := eng.Step(context.Background(), sess, ev)
		assert.Equal(t, domain.OutcomeRetry, out.Kind, "state %s", state)
		assert.ErrorIs(t, out.Err, domain.ErrBackendUnavailable)
		assert.Nil(t, out.Session, "nothing to persist")
		require.Len(t, out.Replies, 1)
		assert.Contains(t, out.Replies[0].Text, "try again")
	}
}

func TestEngine_NotFoundIsUnavailable(t *testing.T) {
	eng, _ := newEngine(t)
	sess := sessionIn(domain.StateMenu)

	out := eng.Step(context.Background(), sess, button("product;calzone"))
	assert.Equal(t, domain.OutcomeRetry, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrNotFound)
	assert.Contains(t, out.Replies[0].Text, "temporarily unavailable")
}

func TestEngine_NoLocations(t *testing.T) {
	commerce := testutils.Catalog()
	for _, id := range []string{"center", "south", "north"} {
		require.NoError(t, commerce.DeleteLocation(context.Background(), id))
	}
	eng := runtime.NewEngine(commerce, &testutils.Geocoder{}, delivery.NewPolicy(delivery.DefaultFees))

	sess := sessionIn(domain.StateWaitingAddress)
	out := eng.Step(context.Background(), sess, domain.NewLocationEvent(ann, testutils.RedSquare))
	assert.Equal(t, domain.OutcomeRetry, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrNoLocationsAvailable)
}

type slowGeocoder struct{}

func (slowGeocoder) Geocode(ctx context.Context, address string) (domain.Coordinates, bool, error) {
	select {
	case <-ctx.Done():
		return domain.Coordinates{}, false, ctx.Err()
	case <-time.After(time.Second):
		return domain.Coordinates{}, false, errors.New("unreachable")
	}
}

func TestEngine_TimeoutIsBackendUnavailable(t *testing.T) {
	eng := runtime.NewEngine(testutils.Catalog(), slowGeocoder{}, nil, runtime.WithCallTimeout(20*time.Millisecond))
	sess := sessionIn(domain.StateWaitingAddress)

	start := time.Now()
	out := eng.Step(context.Background(), sess, text("Moscow, Red Square"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, domain.OutcomeRetry, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrBackendUnavailable)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
}

func TestEngine_GeocoderFailure(t *testing.T) {
	geocoder := &testutils.Geocoder{Err: fmt.Errorf("%w: 503", domain.ErrBackendUnavailable)}
	eng := runtime.NewEngine(testutils.Catalog(), geocoder, nil)

	out := eng.Step(context.Background(), sessionIn(domain.StateWaitingAddress), text("anything"))
	assert.Equal(t, domain.OutcomeRetry, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrBackendUnavailable)
}
