package ports

import (
	"context"
	"testing"
	"time"

	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	key := "contract:" + time.Now().Format("20060102150405.000000")

	t.Run("Save and Load", func(t *testing.T) {
		sess := domain.NewSession(domain.UserRef{Channel: "contract", ID: "1", Name: "Ann"})
		sess.State = domain.StateWaitingDeliveryChoice
		sess.Email = "ann@example.com"
		sess.Coordinates = &domain.Coordinates{Latitude: 55.7539, Longitude: 37.6208}
		sess.DeliveryFee = domain.NewMoney(10000, "RUB")
		sess.Revision = 7

		require.NoError(t, store.Save(ctx, key, sess), "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, domain.StateWaitingDeliveryChoice, loaded.State)
		assert.Equal(t, "ann@example.com", loaded.Email)
		assert.Equal(t, sess.User, loaded.User)
		assert.Equal(t, uint64(7), loaded.Revision)
		assert.Equal(t, sess.DeliveryFee, loaded.DeliveryFee)
		require.NotNil(t, loaded.Coordinates)
		assert.InDelta(t, 55.7539, loaded.Coordinates.Latitude, 1e-9)
	})

	t.Run("Stored copy is isolated from caller", func(t *testing.T) {
		sess := domain.NewSession(domain.UserRef{Channel: "contract", ID: "2"})
		require.NoError(t, store.Save(ctx, key+"-iso", sess))
		defer func() { _ = store.Delete(ctx, key+"-iso") }()

		sess.State = domain.StateCart

		loaded, err := store.Load(ctx, key+"-iso")
		require.NoError(t, err)
		assert.Equal(t, domain.StateStart, loaded.State)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, domain.NewSession(domain.UserRef{Channel: "contract", ID: "1"})))

		require.NoError(t, store.Delete(ctx, key), "Delete should not return error")

		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := key + "-1"
		id2 := key + "-2"
		_ = store.Save(ctx, id1, domain.NewSession(domain.UserRef{Channel: "contract", ID: "a"}))
		_ = store.Save(ctx, id2, domain.NewSession(domain.UserRef{Channel: "contract", ID: "b"}))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, id1)
		assert.Contains(t, keys, id2)
	})
}
