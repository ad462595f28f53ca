package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/auction-engine/pkg/metrics"
)

type fakeLock struct {
	acquired   bool
	held       bool
	releases   int
	acquireErr error
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held || f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
	return nil
}

type testJob struct {
	name     string
	err      error
	runs     int
	deadline bool
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(ctx context.Context) error {
	t.runs++
	_, t.deadline = ctx.Deadline()
	return t.err
}

func newTestService(t *testing.T, lock Lock, m *metrics.CronJobMetrics, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Name:     "lifecycle",
		Logger:   testLogger(),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  m,
	})
	require.NoError(t, err)
	return service
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	service := newTestService(t, lock, nil, success, failure)

	require.NoError(t, service.runCycle(context.Background()))
	require.Equal(t, 1, success.runs)
	require.Equal(t, 1, failure.runs)
	require.Equal(t, 1, lock.releases)
	require.False(t, lock.acquired)
}

func TestServiceRunCycleSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &testJob{name: "auction-lifecycle"}
	lock := &fakeLock{held: true}
	service := newTestService(t, lock, nil, job)

	require.NoError(t, service.runCycle(context.Background()))
	require.Zero(t, job.runs)
	require.Zero(t, lock.releases)
}

func TestServiceRunCycleSurfacesLockErrors(t *testing.T) {
	job := &testJob{name: "auction-lifecycle"}
	service := newTestService(t, &fakeLock{acquireErr: errors.New("redis down")}, nil, job)

	err := service.runCycle(context.Background())
	require.ErrorContains(t, err, "lock acquire")
	require.Zero(t, job.runs)
}

func TestServiceRunJobAppliesTimeoutAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCronJobMetrics(reg)
	ok := &testJob{name: "auction-lifecycle"}
	bad := &testJob{name: "auction-settlement-sweep", err: errors.New("boom")}
	service := newTestService(t, &fakeLock{}, m, ok, bad)

	require.NoError(t, service.runCycle(context.Background()))
	require.True(t, ok.deadline, "job context should carry the job timeout")

	require.Equal(t, 1.0, counterValue(t, reg, "auction_cron_job_success_total", "auction-lifecycle"))
	require.Equal(t, 1.0, counterValue(t, reg, "auction_cron_job_failure_total", "auction-settlement-sweep"))
	require.Zero(t, counterValue(t, reg, "auction_cron_job_failure_total", "auction-lifecycle"))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, job string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == job {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "auction-lifecycle"}
	service := newTestService(t, &fakeLock{}, nil, job)
	service.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cron service did not stop after cancel")
	}
}

func TestNewServiceRequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: testLogger()})
	require.Error(t, err)
}
