package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/graph-coordinator/internal/data"
	"github.com/target/graph-coordinator/internal/domain/model"
	"github.com/target/graph-coordinator/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func newTestStore(t *testing.T, client redis.UniversalClient, clock data.TimeProvider) *ServiceStore {
	t.Helper()
	store, err := NewServiceStore(ServiceStoreOptions{Client: client, TimeProvider: clock})
	require.NoError(t, err)
	return store
}

func liveRecord(graph, name string, now time.Time, ttl time.Duration) *model.ServiceRecord {
	return &model.ServiceRecord{
		Key:          model.ServiceKey{GraphID: graph, ServiceName: name},
		Endpoint:     "10.0.0.1:8182",
		Metadata:     map[string]string{"zone": "a"},
		RegisteredAt: now,
		ExpiresAt:    now.Add(ttl),
	}
}

func TestNewServiceStore_RequiresClient(t *testing.T) {
	_, err := NewServiceStore(ServiceStoreOptions{})
	require.Error(t, err)
}

func TestServiceStore_PutGetDelete(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	store := newTestStore(t, client, nil)
	now := time.Now()
	rec := liveRecord("g1", "gremlin", now, time.Minute)

	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, rec.Key)
	require.NoError(t, err)
	assert.Equal(t, rec.Key, got.Key)
	assert.Equal(t, rec.Endpoint, got.Endpoint)
	assert.Equal(t, rec.Metadata, got.Metadata)
	assert.WithinDuration(t, rec.ExpiresAt, got.ExpiresAt, time.Millisecond)

	ttl := client.PTTL(ctx, store.recordKey(rec.Key.String())).Val()
	assert.True(t, ttl > 0 && ttl <= time.Minute, "unexpected ttl %s", ttl)

	existed, err := store.Delete(ctx, rec.Key)
	require.NoError(t, err)
	assert.True(t, existed)

	_, err = store.Get(ctx, rec.Key)
	assert.ErrorIs(t, err, data.ErrServiceNotFound)
	assert.Zero(t, client.SCard(ctx, store.indexKey()).Val())
}

func TestServiceStore_PutExpiredRemoves(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	store := newTestStore(t, client, nil)
	rec := liveRecord("g1", "gremlin", time.Now(), time.Minute)
	require.NoError(t, store.Put(ctx, rec))

	rec.ExpiresAt = time.Now().Add(-time.Second)
	require.NoError(t, store.Put(ctx, rec))

	_, err := store.Get(ctx, rec.Key)
	assert.ErrorIs(t, err, data.ErrServiceNotFound)
}

func TestServiceStore_UpdateExtendsTTL(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	store := newTestStore(t, client, nil)
	now := time.Now()
	rec := liveRecord("g1", "gremlin", now, 5*time.Second)
	require.NoError(t, store.Put(ctx, rec))

	updated, err := store.Update(ctx, rec.Key, func(r *model.ServiceRecord) error {
		r.ExpiresAt = now.Add(time.Minute)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, rec.Endpoint, updated.Endpoint)

	ttl := client.PTTL(ctx, store.recordKey(rec.Key.String())).Val()
	assert.Greater(t, ttl, 30*time.Second)

	_, err = store.Update(ctx, model.ServiceKey{GraphID: "g1", ServiceName: "absent"},
		func(*model.ServiceRecord) error { return nil })
	assert.ErrorIs(t, err, data.ErrServiceNotFound)
}

func TestServiceStore_ListAndDeleteExpired(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	start := time.Now()
	clock := data.NewFixedTimeProvider(start)
	store := newTestStore(t, client, clock)

	require.NoError(t, store.Put(ctx, liveRecord("g1", "short", start, 2*time.Second)))
	require.NoError(t, store.Put(ctx, liveRecord("g1", "long", start, time.Minute)))
	require.NoError(t, store.Put(ctx, liveRecord("g2", "other", start, time.Minute)))

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := store.DeleteExpired(ctx, start.Add(3*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.EqualValues(t, 2, client.SCard(ctx, store.indexKey()).Val())
}

func TestServiceStore_DeleteExpiredReconcilesIndex(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	store := newTestStore(t, client, nil)
	rec := liveRecord("g1", "gremlin", time.Now(), time.Minute)
	require.NoError(t, store.Put(ctx, rec))

	// simulate Redis expiring the key before the sweeper sees it
	require.NoError(t, client.Del(ctx, store.recordKey(rec.Key.String())).Err())

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	n, err := store.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, client.SCard(ctx, store.indexKey()).Val())
	assert.NoError(t, store.Ping(ctx))
}
