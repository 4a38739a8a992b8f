package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/graph-coordinator/internal/core"
	"github.com/target/graph-coordinator/internal/data"
	"github.com/target/graph-coordinator/internal/domain/model"
	apperrors "github.com/target/graph-coordinator/internal/errors"
	"github.com/target/graph-coordinator/internal/mocks"
	"github.com/target/graph-coordinator/internal/testutil"
)

var _ core.ServiceStore = (*data.MemoryServiceStore)(nil)

// newTestRegistry builds a registry whose sweeper ticks too rarely to interfere with
// fake-clock assertions.
func newTestRegistry(t *testing.T, store core.ServiceStore, clock data.TimeProvider) *RegistryService {
	t.Helper()
	svc, err := NewRegistryService(RegistryServiceOptions{
		Store:         store,
		DefaultTTL:    30 * time.Second,
		SweepInterval: time.Hour,
		TimeProvider:  clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func key(graph, name string) model.ServiceKey {
	return model.ServiceKey{GraphID: graph, ServiceName: name}
}

func TestNewRegistryService_Validation(t *testing.T) {
	_, err := NewRegistryService(RegistryServiceOptions{DefaultTTL: time.Second, SweepInterval: time.Second})
	require.Error(t, err)

	_, err = NewRegistryService(RegistryServiceOptions{
		Store:         data.NewMemoryServiceStore(),
		SweepInterval: time.Second,
	})
	require.Error(t, err)

	_, err = NewRegistryService(RegistryServiceOptions{
		Store:      data.NewMemoryServiceStore(),
		DefaultTTL: time.Second,
	})
	require.Error(t, err, "a sweeper that cannot start must fail construction")
}

func TestRegistryService_RegisterAndGet(t *testing.T) {
	start := testutil.TestTime()
	clock := data.NewFixedTimeProvider(start)
	svc := newTestRegistry(t, data.NewMemoryServiceStore(), clock)
	ctx := context.Background()

	rec, err := svc.Register(ctx, testutil.NewRegisterRequest("g1", "gremlin").
		WithEndpoint(" 10.0.0.1:8182 ").
		WithMetadata("protocol", "ws").
		WithTTL(10*time.Second).
		Build())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:8182", rec.Endpoint)
	assert.Equal(t, start, rec.RegisteredAt)
	assert.Equal(t, start.Add(10*time.Second), rec.ExpiresAt)

	got, err := svc.Get(ctx, key("g1", "gremlin"))
	require.NoError(t, err)
	assert.Equal(t, "ws", got.Metadata["protocol"])
	assert.Equal(t, 30*time.Second, svc.DefaultTTL())
}

func TestRegistryService_RegisterInvalid(t *testing.T) {
	svc := newTestRegistry(t, data.NewMemoryServiceStore(), nil)
	ctx := context.Background()

	tests := []struct {
		name      string
		req       model.RegisterServiceRequest
		wantField string
	}{
		{name: "zero ttl", req: testutil.NewRegisterRequest("g1", "s").WithTTL(0).Build(), wantField: "ttl"},
		{name: "negative ttl", req: testutil.NewRegisterRequest("g1", "s").WithTTL(-time.Second).Build(), wantField: "ttl"},
		{name: "empty graph", req: testutil.NewRegisterRequest("", "s").Build(), wantField: "graph_id"},
		{name: "slash in name", req: testutil.NewRegisterRequest("g1", "a/b").Build(), wantField: "service_name"},
		{name: "blank endpoint", req: testutil.NewRegisterRequest("g1", "s").WithEndpoint(" ").Build(), wantField: "endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidArgument(err))
			assert.Equal(t, tt.wantField, apperrors.GetField(err))
		})
	}
}

func TestRegistryService_ExpiryWithoutSweep(t *testing.T) {
	start := testutil.TestTime()
	clock := data.NewFixedTimeProvider(start)
	store := data.NewMemoryServiceStore()
	svc := newTestRegistry(t, store, clock)
	ctx := context.Background()
	const ttl = 10 * time.Second

	_, err := svc.Register(ctx, testutil.NewRegisterRequest("g1", "s").WithTTL(ttl).Build())
	require.NoError(t, err)

	clock.SetTime(start.Add(ttl - time.Millisecond))
	_, err = svc.Get(ctx, key("g1", "s"))
	require.NoError(t, err, "record is live just before its deadline")

	clock.SetTime(start.Add(ttl))
	_, err = svc.Get(ctx, key("g1", "s"))
	assert.True(t, apperrors.IsNotFound(err), "record is dead at its deadline")

	list, err := svc.List(ctx, model.ServiceListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	// the sweeper has not run, so the record is still physically stored
	raw, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, raw, 1)
}

func TestRegistryService_ReRegisterExtendsDeadline(t *testing.T) {
	start := testutil.TestTime()
	clock := data.NewFixedTimeProvider(start)
	svc := newTestRegistry(t, data.NewMemoryServiceStore(), clock)
	ctx := context.Background()
	const ttl = 10 * time.Second
	req := testutil.NewRegisterRequest("g1", "s").WithTTL(ttl).Build()

	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	clock.AddTime(ttl / 2)
	_, err = svc.Register(ctx, req)
	require.NoError(t, err)

	clock.AddTime(ttl * 7 / 10)
	got, err := svc.Get(ctx, key("g1", "s"))
	require.NoError(t, err, "renewed record outlives the original deadline")
	assert.Equal(t, start.Add(ttl/2), got.RegisteredAt)
}

func TestRegistryService_Renew(t *testing.T) {
	start := testutil.TestTime()
	clock := data.NewFixedTimeProvider(start)
	svc := newTestRegistry(t, data.NewMemoryServiceStore(), clock)
	ctx := context.Background()

	_, err := svc.Register(ctx, testutil.NewRegisterRequest("g1", "s").WithEndpoint("e:1").WithTTL(10*time.Second).Build())
	require.NoError(t, err)

	clock.AddTime(5 * time.Second)
	rec, err := svc.Renew(ctx, key("g1", "s"), 20*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "e:1", rec.Endpoint)
	assert.Equal(t, start.Add(25*time.Second), rec.ExpiresAt)
	assert.Equal(t, start, rec.RegisteredAt, "heartbeat does not count as a re-registration")

	_, err = svc.Renew(ctx, key("g1", "s"), 0)
	assert.True(t, apperrors.IsInvalidArgument(err))

	_, err = svc.Renew(ctx, key("g1", "absent"), time.Second)
	assert.True(t, apperrors.IsNotFound(err))

	clock.AddTime(time.Minute)
	_, err = svc.Renew(ctx, key("g1", "s"), time.Second)
	assert.True(t, apperrors.IsNotFound(err), "an expired record cannot be revived by a heartbeat")
}

func TestRegistryService_Deregister(t *testing.T) {
	svc := newTestRegistry(t, data.NewMemoryServiceStore(), nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, testutil.NewRegisterRequest("g1", "s").Build())
	require.NoError(t, err)

	require.NoError(t, svc.Deregister(ctx, key("g1", "s")))
	_, err = svc.Get(ctx, key("g1", "s"))
	assert.True(t, apperrors.IsNotFound(err))

	assert.NoError(t, svc.Deregister(ctx, key("g1", "s")), "absent key is a no-op")
	assert.True(t, apperrors.IsInvalidArgument(svc.Deregister(ctx, key("", "s"))))
}

func TestRegistryService_ListFilters(t *testing.T) {
	svc := newTestRegistry(t, data.NewMemoryServiceStore(), nil)
	ctx := context.Background()

	for _, r := range []model.RegisterServiceRequest{
		testutil.NewRegisterRequest("g2", "gremlin").WithMetadata("role", "frontend").Build(),
		testutil.NewRegisterRequest("g1", "learning").WithMetadata("role", "backend").Build(),
		testutil.NewRegisterRequest("g1", "engine").WithMetadata("role", "backend").Build(),
		testutil.NewRegisterRequest("g1", "gremlin").WithMetadata("role", "frontend").Build(),
	} {
		_, err := svc.Register(ctx, r)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, model.ServiceListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t,
		[]string{"g1/engine", "g1/gremlin", "g1/learning", "g2/gremlin"},
		[]string{all[0].Key.String(), all[1].Key.String(), all[2].Key.String(), all[3].Key.String()},
	)

	g1, err := svc.List(ctx, model.ServiceListFilter{GraphID: "g1"})
	require.NoError(t, err)
	assert.Len(t, g1, 3)

	frontends, err := svc.List(ctx, model.ServiceListFilter{Query: "metadata.role == 'frontend'"})
	require.NoError(t, err)
	require.Len(t, frontends, 2)
	assert.Equal(t, "g1/gremlin", frontends[0].Key.String())

	g1Frontends, err := svc.List(ctx, model.ServiceListFilter{GraphID: "g1", Query: "metadata.role == 'frontend'"})
	require.NoError(t, err)
	assert.Len(t, g1Frontends, 1)

	_, err = svc.List(ctx, model.ServiceListFilter{Query: "metadata.[[["})
	assert.True(t, apperrors.IsInvalidArgument(err))

	n, err := svc.LiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRegistryService_ConcurrentRegisters(t *testing.T) {
	svc := newTestRegistry(t, data.NewMemoryServiceStore(), nil)
	ctx := context.Background()
	const n = 100

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(ctx, testutil.NewRegisterRequest("g1", fmt.Sprintf("svc-%03d", i)).Build())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := svc.List(ctx, model.ServiceListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestRegistryService_GremlinScenario(t *testing.T) {
	start := testutil.TestTime()
	clock := data.NewFixedTimeProvider(start)
	svc := newTestRegistry(t, data.NewMemoryServiceStore(), clock)
	ctx := context.Background()

	_, err := svc.Register(ctx, testutil.NewRegisterRequest("g1", "gremlin").
		WithEndpoint("10.0.0.5:8182").
		WithTTL(3*time.Second).
		Build())
	require.NoError(t, err)

	got, err := svc.Get(ctx, key("g1", "gremlin"))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:8182", got.Endpoint)

	clock.AddTime(4 * time.Second)
	_, err = svc.Get(ctx, key("g1", "gremlin"))
	assert.True(t, apperrors.IsNotFound(err))

	evicted, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	all, err := svc.List(ctx, model.ServiceListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRegistryService_CloseIsIdempotent(t *testing.T) {
	svc := newTestRegistry(t, data.NewMemoryServiceStore(), nil)
	require.True(t, svc.SweeperRunning())

	require.NoError(t, svc.Close(context.Background()))
	assert.False(t, svc.SweeperRunning())
	require.NoError(t, svc.Close(context.Background()))
}

func TestRegistryService_SweepAfterClose(t *testing.T) {
	ctx := context.Background()
	store := data.NewMemoryServiceStore()
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	svc := newTestRegistry(t, store, clock)

	_, err := svc.Register(ctx, testutil.NewRegisterRequest("g1", "gremlin").WithTTL(time.Second).Build())
	require.NoError(t, err)
	require.NoError(t, svc.Close(ctx))
	clock.AddTime(2 * time.Second)

	n, err := svc.Sweep(ctx)
	require.ErrorIs(t, err, ErrRegistryClosed)
	assert.Zero(t, n)

	// The expired record is still in the store: nothing evicted it after Close.
	_, err = store.Get(ctx, key("g1", "gremlin"))
	require.NoError(t, err)
}

func TestRegistryService_StoreFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockServiceStore(ctrl)
	svc := newTestRegistry(t, store, nil)
	ctx := context.Background()
	boom := errors.New("redis: connection refused")

	store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(boom)
	_, err := svc.Register(ctx, testutil.NewRegisterRequest("g1", "s").Build())
	require.ErrorIs(t, err, boom)

	store.EXPECT().Get(gomock.Any(), key("g1", "s")).Return(nil, data.ErrServiceNotFound)
	_, err = svc.Get(ctx, key("g1", "s"))
	assert.True(t, apperrors.IsNotFound(err))

	store.EXPECT().List(gomock.Any()).Return(nil, boom)
	_, err = svc.List(ctx, model.ServiceListFilter{})
	require.ErrorIs(t, err, boom)

	store.EXPECT().Delete(gomock.Any(), key("g1", "s")).Return(false, boom)
	require.ErrorIs(t, svc.Deregister(ctx, key("g1", "s")), boom)

	store.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).Return(0, boom)
	_, err = svc.Sweep(ctx)
	require.ErrorIs(t, err, boom)
}
