package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/evgen4ikrus/pizza-bot/pkg/adapters/redis"
	"github.com/evgen4ikrus/pizza-bot/pkg/domain"
	"github.com/evgen4ikrus/pizza-bot/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_Contract(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})

	store := redis.NewFromClient(client)
	ports.RunSessionStoreContract(t, store)
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := redis.NewFromClient(client, redis.WithTTL(time.Hour), redis.WithPrefix("t:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "telegram:1", domain.NewSession(domain.UserRef{Channel: "telegram", ID: "1"})))
	assert.Equal(t, time.Hour, mr.TTL("t:session:telegram:1"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Load(ctx, "telegram:1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRedisStore_UnknownStateIsLoadedVerbatim(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := redis.NewFromClient(client)

	require.NoError(t, mr.Set(redis.DefaultPrefix+"session:telegram:9", `{"user":{"channel":"telegram","id":"9"},"state":"HANDLE_LEGACY"}`))

	sess, err := store.Load(context.Background(), "telegram:9")
	require.NoError(t, err)
	assert.Equal(t, domain.State("HANDLE_LEGACY"), sess.State)
	assert.False(t, sess.State.Valid())
}
