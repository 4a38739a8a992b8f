package service

import (
	"context"
	"errors"
	"runtime"
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

func newTestCoordinator(t *testing.T, store core.ServiceStore, clock data.TimeProvider) *Coordinator {
	t.Helper()
	jobs, err := NewJobService(JobServiceOptions{Store: data.NewMemoryJobStore(), TimeProvider: clock})
	require.NoError(t, err)

	c, err := NewCoordinator(CoordinatorOptions{
		Jobs:         jobs,
		Registry:     newTestRegistry(t, store, clock),
		Build:        BuildInfo{Version: "1.2.3", Commit: "abc123", RegistryBackend: "memory"},
		TimeProvider: clock,
		Logger:       discardLogger(),
	})
	require.NoError(t, err)
	return c
}

func componentByName(t *testing.T, st model.DeploymentStatus, name string) model.ComponentStatus {
	t.Helper()
	for _, c := range st.Components {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("component %s missing", name)
	return model.ComponentStatus{}
}

func TestNewCoordinator_RequiresServices(t *testing.T) {
	_, err := NewCoordinator(CoordinatorOptions{})
	require.Error(t, err)

	jobs := MustNewJobService(JobServiceOptions{Store: data.NewMemoryJobStore()})
	_, err = NewCoordinator(CoordinatorOptions{Jobs: jobs})
	require.Error(t, err)
}

func TestCoordinator_DeploymentInfo(t *testing.T) {
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	c := newTestCoordinator(t, data.NewMemoryServiceStore(), clock)

	info := c.DeploymentInfo()
	assert.Equal(t, "graph-coordinator", info.Name)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.Equal(t, "unknown", info.BuildDate)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, "memory", info.RegistryBackend)
	assert.Equal(t, testutil.TestTime(), info.StartedAt)
}

func TestCoordinator_DeploymentStatusRunning(t *testing.T) {
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	c := newTestCoordinator(t, data.NewMemoryServiceStore(), clock)
	ctx := context.Background()

	_, err := c.SubmitJob(ctx, model.SubmitJobRequest{})
	require.NoError(t, err)
	_, err = c.RegisterService(ctx, testutil.NewRegisterRequest("g1", "gremlin").Build())
	require.NoError(t, err)

	st := c.DeploymentStatus(ctx)
	assert.Equal(t, model.DeploymentRunning, st.Status)
	assert.Equal(t, 1, st.Jobs.Pending)
	assert.Equal(t, 1, st.LiveServices)
	require.Len(t, st.Components, 2)
	for _, comp := range st.Components {
		assert.True(t, comp.Initialized, comp.Name)
		assert.True(t, comp.Reachable, comp.Name)
		assert.Empty(t, comp.Error, comp.Name)
	}
}

func TestCoordinator_DeploymentStatusDegradedWhenStoreUnreachable(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockServiceStore(ctrl)
	store.EXPECT().Ping(gomock.Any()).Return(errors.New("dial tcp: connection refused"))

	c := newTestCoordinator(t, store, nil)
	st := c.DeploymentStatus(context.Background())

	assert.Equal(t, model.DeploymentDegraded, st.Status)
	reg := componentByName(t, st, model.ComponentServiceRegistry)
	assert.True(t, reg.Initialized)
	assert.False(t, reg.Reachable)
	assert.Contains(t, reg.Error, "connection refused")

	jobs := componentByName(t, st, model.ComponentJobManager)
	assert.True(t, jobs.Healthy())
}

func TestCoordinator_DeploymentStatusDegradedAfterClose(t *testing.T) {
	c := newTestCoordinator(t, data.NewMemoryServiceStore(), nil)
	require.NoError(t, c.Close(context.Background()))

	st := c.DeploymentStatus(context.Background())
	assert.Equal(t, model.DeploymentDegraded, st.Status)
	reg := componentByName(t, st, model.ComponentServiceRegistry)
	assert.Equal(t, "sweeper not running", reg.Error)
}

func TestCoordinator_PassThrough(t *testing.T) {
	start := testutil.TestTime()
	clock := data.NewFixedTimeProvider(start)
	c := newTestCoordinator(t, data.NewMemoryServiceStore(), clock)
	ctx := context.Background()

	job, err := c.SubmitJob(ctx, model.SubmitJobRequest{Kind: "build"})
	require.NoError(t, err)
	_, err = c.TransitionJob(ctx, job.ID, model.JobStatusRunning, "")
	require.NoError(t, err)
	_, err = c.CancelJob(ctx, job.ID, "stop")
	require.NoError(t, err)
	got, err := c.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, got.Status)
	jobs, err := c.ListJobs(ctx, model.JobListOptions{})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	stats, err := c.JobStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Cancelled)
	require.NoError(t, c.DeleteJob(ctx, job.ID))

	k := model.ServiceKey{GraphID: "g1", ServiceName: "s"}
	_, err = c.RegisterService(ctx, testutil.NewRegisterRequest("g1", "s").WithTTL(time.Second).Build())
	require.NoError(t, err)
	_, err = c.RenewService(ctx, k, 2*time.Second)
	require.NoError(t, err)
	_, err = c.GetService(ctx, k)
	require.NoError(t, err)
	recs, err := c.ListServices(ctx, model.ServiceListFilter{GraphID: "g1"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	clock.AddTime(3 * time.Second)
	n, err := c.SweepServices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, c.DeregisterService(ctx, k))
	_, err = c.GetService(ctx, k)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 30*time.Second, c.DefaultServiceTTL())
}
