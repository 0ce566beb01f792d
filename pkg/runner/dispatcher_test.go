package runner_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/evgen4ikrus/pizza-bot/internal/runtime"
	"github.com/evgen4ikrus/pizza-bot/internal/testutils"
	"github.com/evgen4ikrus/pizza-bot/pkg/adapters/memory"
	"github.com/evgen4ikrus/pizza-bot/pkg/delivery"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
	"github.com/evgen4ikrus/pizza-bot/pkg/runner"
	"github.com/evgen4ikrus/pizza-bot/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ann = domain.UserRef{Channel: "telegram", ID: "42", Name: "Ann"}

type fixture struct {
	commerce *memory.Commerce
	flaky    *testutils.FlakyCommerce
	store    *memory.Store
	channel  *testutils.Channel
	engine   *runtime.Engine
	d        *runner.Dispatcher
}

func newFixture(t *testing.T, store ports.SessionStore, opts ...session.Option) *fixture {
	t.Helper()
	f := &fixture{
		commerce: testutils.Catalog(),
		store:    memory.NewStore(),
		channel:  testutils.NewChannel("telegram"),
	}
	if store == nil {
		store = f.store
	}
	f.flaky = &testutils.FlakyCommerce{Commerce: f.commerce}
	geocoder := &testutils.Geocoder{Known: map[string]domain.Coordinates{"Moscow, Red Square": testutils.RedSquare}}
	f.engine = runtime.NewEngine(f.flaky, geocoder, delivery.NewPolicy(delivery.DefaultFees))
	f.d = runner.NewDispatcher(f.engine, session.NewManager(store, opts...),
		runner.WithChannel(f.channel),
		runner.WithPaymentGateway("telegram", f.channel),
	)
	return f
}

func seed(t *testing.T, store ports.SessionStore, state domain.State, mutate ...func(*domain.Session)) {
	t.Helper()
	sess := domain.NewSession(ann)
	sess.State = state
	sess.Revision = 5
	for _, m := range mutate {
		m(sess)
	}
	require.NoError(t, store.Save(context.Background(), ann.Key(), sess))
}

func TestDispatcher_AdvancePersistsAndSends(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.d.Handle(ctx, domain.NewTextEvent(ann, "hi")))

	sess, err := f.store.Load(ctx, ann.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.StateMenu, sess.State)
	assert.Equal(t, uint64(1), sess.Revision)

	sent := f.channel.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, ann, sent[0].To)
	assert.Equal(t, domain.ReplyCard, sent[0].Reply.Kind)
}

func TestDispatcher_RetryDoesNotPersist(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seed(t, f.store, domain.StateMenu)

	f.flaky.SetErr(errors.New("connection refused"))
	require.NoError(t, f.d.Handle(ctx, domain.NewButtonEvent(ann, "cart")))

	sess, err := f.store.Load(ctx, ann.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.StateMenu, sess.State)
	assert.Equal(t, uint64(5), sess.Revision, "backend failure must not persist")

	sent := f.channel.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Reply.Text, "try again")
}

func TestDispatcher_FatalLeavesSessionUntouched(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seed(t, f.store, "HANDLE_LEGACY")

	require.NoError(t, f.d.Handle(ctx, domain.NewTextEvent(ann, "hello")))

	sess, err := f.store.Load(ctx, ann.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.State("HANDLE_LEGACY"), sess.State)
	assert.Equal(t, uint64(5), sess.Revision)
	assert.Empty(t, f.channel.Sent())
}

type failingSaveStore struct{ *memory.Store }

func (failingSaveStore) Save(context.Context, string, *domain.Session) error {
	return errors.New("disk full")
}

func TestDispatcher_SaveFailureSendsNothing(t *testing.T) {
	f := newFixture(t, failingSaveStore{memory.NewStore()})

	err := f.d.Handle(context.Background(), domain.NewTextEvent(ann, "hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, f.channel.Sent())
}

func TestDispatcher_DeliveryNotifiesCourierAndRequestsPayment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.commerce.AddToCart(ctx, ann.Key(), "margherita", 1))
	seed(t, f.store, domain.StateWaitingDeliveryChoice, func(s *domain.Session) {
		s.Coordinates = &testutils.RedSquare
		s.LocationID = "center"
		s.CourierID = "900"
	})

	require.NoError(t, f.d.Handle(ctx, domain.NewButtonEvent(ann, "deliver")))

	sent := f.channel.Sent()
	require.Len(t, sent, 2)
	courier := domain.UserRef{Channel: "telegram", ID: "900"}
	assert.Equal(t, courier, sent[0].To)
	assert.Equal(t, courier, sent[1].To)
	assert.Equal(t, domain.ReplyLocation, sent[1].Reply.Kind)

	payments := f.channel.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, int64(50000), payments[0].Total.Amount)

	sess, err := f.store.Load(ctx, ann.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.StateWaitingPayment, sess.State)
}

func TestDispatcher_SendFailureIsReportedAfterSave(t *testing.T) {
	f := newFixture(t, nil)
	f.channel.SetErr(errors.New("bot was blocked by the user"))

	err := f.d.Handle(context.Background(), domain.NewTextEvent(ann, "hi"))
	require.Error(t, err)

	sess, loadErr := f.store.Load(context.Background(), ann.Key())
	require.NoError(t, loadErr)
	assert.Equal(t, domain.StateMenu, sess.State)
}

func TestDispatcher_UnknownChannel(t *testing.T) {
	f := newFixture(t, nil)
	bob := domain.UserRef{Channel: "whatsapp", ID: "1"}

	err := f.d.Handle(context.Background(), domain.NewTextEvent(bob, "hi"))
	assert.ErrorIs(t, err, runner.ErrNoChannel)
}

func TestDispatcher_RejectsOversizedInput(t *testing.T) {
	f := newFixture(t, nil)

	err := f.d.Handle(context.Background(), domain.NewTextEvent(ann, strings.Repeat("a", runner.DefaultInputLimits.Text+1)))
	assert.ErrorIs(t, err, runner.ErrInputTooLarge)
	assert.Empty(t, f.channel.Sent())
}

func TestDispatcher_InputLimitOptions(t *testing.T) {
	f := newFixture(t, nil)
	d := runner.NewDispatcher(f.engine, session.NewManager(f.store),
		runner.WithChannel(f.channel),
		runner.WithInputLimits("telegram", runner.InputLimits{Text: 4096, Payload: 64}),
		runner.WithMaxInputSize(10),
	)
	ctx := context.Background()

	err := d.Handle(ctx, domain.NewTextEvent(ann, "eleven char"))
	assert.ErrorIs(t, err, runner.ErrInputTooLarge)

	err = d.Handle(ctx, domain.NewButtonEvent(ann, "product;"+strings.Repeat("x", 64)))
	assert.ErrorIs(t, err, runner.ErrInputTooLarge)

	_, loadErr := f.store.Load(ctx, ann.Key())
	assert.ErrorIs(t, loadErr, domain.ErrSessionNotFound)
	assert.Empty(t, f.channel.Sent())

	require.NoError(t, d.Handle(ctx, domain.NewTextEvent(ann, "пицца!")))
	assert.NotEmpty(t, f.channel.Sent())
}

// barrierStore holds every Load until two of them are in flight.
type barrierStore struct {
	ports.SessionStore
	arrived sync.WaitGroup
}

func (b *barrierStore) Load(ctx context.Context, key string) (*domain.Session, error) {
	b.arrived.Done()
	b.arrived.Wait()
	return b.SessionStore.Load(ctx, key)
}

func concurrentAdds(t *testing.T, f *fixture) {
	t.Helper()
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.d.Handle(context.Background(), domain.NewButtonEvent(ann, "add;margherita")))
		}()
	}
	wg.Wait()
}

func TestDispatcher_ConcurrentAddsWithoutSerializationLoseUpdate(t *testing.T) {
	inner := memory.NewStore()
	seed(t, inner, domain.StateProductDetail)
	barrier := &barrierStore{SessionStore: inner}
	barrier.arrived.Add(2)

	f := newFixture(t, barrier, session.WithoutSerialization())
	concurrentAdds(t, f)

	sess, err := inner.Load(context.Background(), ann.Key())
	require.NoError(t, err)
	assert.Equal(t, uint64(6), sess.Revision, "both handlers started from revision 5")
}

func TestDispatcher_ConcurrentAddsSerialized(t *testing.T) {
	f := newFixture(t, nil)
	seed(t, f.store, domain.StateProductDetail)

	concurrentAdds(t, f)

	sess, err := f.store.Load(context.Background(), ann.Key())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), sess.Revision)

	items, err := f.commerce.CartItems(context.Background(), ann.Key())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}
