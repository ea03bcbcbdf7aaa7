package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	name string
	runs int
	err  error
}

func (j *fakeJob) Name() string        { return j.name }
func (j *fakeJob) Description() string { return "fake job for tests" }
func (j *fakeJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

func TestIntervalSchedule(t *testing.T) {
	s := NewIntervalSchedule(10 * time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(10*time.Minute), s.Next(now))
	assert.Equal(t, "@every 10m0s", s.String())
}

func TestDailySchedule(t *testing.T) {
	s := NewDailySchedule(4, 30, time.UTC)

	t.Run("before the slot fires same day", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 3, 1, 4, 30, 0, 0, time.UTC), s.Next(now))
	})

	t.Run("after the slot fires next day", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 5, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 3, 2, 4, 30, 0, 0, time.UTC), s.Next(now))
	})
}

func TestSchedulerRegister(t *testing.T) {
	s := New(DefaultConfig())

	job := &fakeJob{name: "demo"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	t.Run("duplicate names rejected", func(t *testing.T) {
		err := s.Register(&fakeJob{name: "demo"}, NewIntervalSchedule(time.Minute))
		assert.ErrorIs(t, err, ErrJobAlreadyExists)
	})

	t.Run("nil job and schedule rejected", func(t *testing.T) {
		assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
		assert.ErrorIs(t, s.Register(&fakeJob{name: "other"}, nil), ErrNilSchedule)
	})

	t.Run("list reports registered jobs", func(t *testing.T) {
		infos := s.ListJobs()
		require.Len(t, infos, 1)
		assert.Equal(t, "demo", infos[0].Name)
		assert.True(t, infos[0].Enabled)
	})
}

func TestSchedulerRunNow(t *testing.T) {
	s := New(DefaultConfig())

	job := &fakeJob{name: "manual"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "manual")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, job.runs)

	t.Run("unknown job", func(t *testing.T) {
		_, err := s.RunNow(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("failure is reported and counted", func(t *testing.T) {
		failing := &fakeJob{name: "failing", err: errors.New("boom")}
		require.NoError(t, s.Register(failing, NewIntervalSchedule(time.Hour)))

		result, err := s.RunNow(context.Background(), "failing")
		assert.Error(t, err)
		assert.False(t, result.Success)

		snap := s.Metrics().Snapshot()
		assert.Equal(t, int64(2), snap.TotalExecutions)
		assert.Equal(t, int64(1), snap.TotalFailures)
	})
}

func TestSchedulerLifecycle(t *testing.T) {
	s := New(DefaultConfig())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}
