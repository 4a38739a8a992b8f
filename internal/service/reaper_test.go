package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/graph-coordinator/config"
	"github.com/target/graph-coordinator/internal/data"
	"github.com/target/graph-coordinator/internal/domain/model"
	"github.com/target/graph-coordinator/internal/mocks"
	"github.com/target/graph-coordinator/internal/observability/metrics"
	coordtest "github.com/target/graph-coordinator/internal/testutil"
)

func reaperConfig(pending, terminal time.Duration) config.JobReaperConfig {
	return config.JobReaperConfig{
		Enabled:        true,
		Interval:       time.Minute,
		PendingMaxAge:  pending,
		TerminalMaxAge: terminal,
	}
}

func TestNewReaperService(t *testing.T) {
	jobs := newTestJobService(t, nil)

	tests := []struct {
		name    string
		opts    ReaperServiceOptions
		wantErr bool
	}{
		{
			name: "valid",
			opts: ReaperServiceOptions{Jobs: jobs, Config: reaperConfig(0, time.Hour), Logger: discardLogger()},
		},
		{
			name:    "missing jobs",
			opts:    ReaperServiceOptions{Config: reaperConfig(0, time.Hour)},
			wantErr: true,
		},
		{
			name:    "zero interval",
			opts:    ReaperServiceOptions{Jobs: jobs, Config: config.JobReaperConfig{TerminalMaxAge: time.Hour}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewReaperService(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestReaperService_RunOnce(t *testing.T) {
	ctx := context.Background()
	clock := data.NewFixedTimeProvider(coordtest.TestTime())
	jobs := newTestJobService(t, clock)

	oldPending := jobInStatus(t, jobs, model.JobStatusPending)
	oldSuccess := jobInStatus(t, jobs, model.JobStatusSuccess)
	oldRunning := jobInStatus(t, jobs, model.JobStatusRunning)
	clock.AddTime(2 * time.Hour)
	freshPending := jobInStatus(t, jobs, model.JobStatusPending)
	freshFailed := jobInStatus(t, jobs, model.JobStatusFailed)

	rec := metrics.NewRecorder(metrics.RecorderOptions{})
	reaper, err := NewReaperService(ReaperServiceOptions{
		Jobs:         jobs,
		Config:       reaperConfig(time.Hour, time.Hour),
		TimeProvider: clock,
		Logger:       discardLogger(),
		Metrics:      rec,
	})
	require.NoError(t, err)

	res, err := reaper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReapResult{Cancelled: 1, Deleted: 1}, res)

	cancelled, err := jobs.Get(ctx, oldPending.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Detail, "pending longer than 1h0m0s")

	_, err = jobs.Get(ctx, oldSuccess.ID)
	require.Error(t, err)

	for _, id := range []string{oldRunning.ID, freshPending.ID, freshFailed.ID} {
		_, err := jobs.Get(ctx, id)
		require.NoError(t, err, "job %s should survive", id)
	}

	assert.Equal(t, 2, testutil.CollectAndCount(rec.Registry(), "graph_coordinator_job_reaper_jobs_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.Registry(), "graph_coordinator_job_reaper_passes_total"))
}

func TestReaperService_DisabledSteps(t *testing.T) {
	ctx := context.Background()
	clock := data.NewFixedTimeProvider(coordtest.TestTime())
	jobs := newTestJobService(t, clock)
	pending := jobInStatus(t, jobs, model.JobStatusPending)
	done := jobInStatus(t, jobs, model.JobStatusCancelled)
	clock.AddTime(365 * 24 * time.Hour)

	reaper, err := NewReaperService(ReaperServiceOptions{
		Jobs:         jobs,
		Config:       reaperConfig(0, 0),
		TimeProvider: clock,
	})
	require.NoError(t, err)

	res, err := reaper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReapResult{}, res)

	for _, id := range []string{pending.ID, done.ID} {
		_, err := jobs.Get(ctx, id)
		require.NoError(t, err)
	}
}

func TestReaperService_RunOnce_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockJobStore(ctrl)
	store.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("store down")).Times(2)

	jobs, err := NewJobService(JobServiceOptions{Store: store})
	require.NoError(t, err)
	rec := metrics.NewRecorder(metrics.RecorderOptions{})
	reaper, err := NewReaperService(ReaperServiceOptions{
		Jobs:    jobs,
		Config:  reaperConfig(time.Hour, time.Hour),
		Metrics: rec,
	})
	require.NoError(t, err)

	_, err = reaper.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancel stale pending jobs")
	assert.Contains(t, err.Error(), "delete old terminal jobs")
	assert.Contains(t, err.Error(), "store down")
	assert.Equal(t, 2, testutil.CollectAndCount(rec.Registry(), "graph_coordinator_job_reaper_operations_total"))
}

func TestReaperService_RunOnce_Cancelled(t *testing.T) {
	clock := data.NewFixedTimeProvider(coordtest.TestTime())
	jobs := newTestJobService(t, clock)
	jobInStatus(t, jobs, model.JobStatusPending)
	jobInStatus(t, jobs, model.JobStatusSuccess)
	clock.AddTime(2 * time.Hour)

	reaper, err := NewReaperService(ReaperServiceOptions{
		Jobs:         jobs,
		Config:       reaperConfig(time.Hour, time.Hour),
		TimeProvider: clock,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = reaper.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReaperService_Run(t *testing.T) {
	clock := data.NewFixedTimeProvider(coordtest.TestTime())
	jobs := newTestJobService(t, clock)
	done := jobInStatus(t, jobs, model.JobStatusSuccess)
	clock.AddTime(2 * time.Hour)

	reaper, err := NewReaperService(ReaperServiceOptions{
		Jobs: jobs,
		Config: config.JobReaperConfig{
			Enabled:        true,
			Interval:       10 * time.Millisecond,
			TerminalMaxAge: time.Hour,
		},
		TimeProvider: clock,
		Logger:       discardLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- reaper.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := jobs.Get(context.Background(), done.ID)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop after cancellation")
	}
}
