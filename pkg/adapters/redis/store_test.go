package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/loom/pkg/adapters/redis"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunSnapshotStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	sessionID := "session-ttl"

	require.NoError(t, store.Save(ctx, sessionID, domain.Snapshot{NextID: 3}))

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, sessions, sessionID)

	// key expiry follows miniredis time
	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, sessionID)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	// the index is pruned against the wall clock
	time.Sleep(1200 * time.Millisecond)
	sessions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "my-session", domain.Snapshot{}))

	assert.True(t, mr.Exists("custom:app:my-session"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"my-session"}, list)
}

func TestRedisStore_DefaultPrefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)

	require.NoError(t, store.Save(context.Background(), "s", domain.Snapshot{}))
	assert.True(t, mr.Exists(redis.DefaultPrefix+"s"))
	assert.Same(t, client, store.Client())
}

func TestRedisStore_BackendDown(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	mr.Close()

	_, err := store.Load(context.Background(), "s")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSnapshotNotFound)
}
