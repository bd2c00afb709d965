package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_RejectsBadInput(t *testing.T) {
	s := New(time.UTC, nil)

	_, err := s.Add("collect", "0 8 * *", func(context.Context) {})
	assert.Error(t, err)

	_, err = s.Add("collect", "0 8 * * *", nil)
	assert.ErrorIs(t, err, ErrNilJob)
}

func TestNext_UsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	s := New(loc, nil)
	_, err = s.Add("collect", "0 8 * * *", func(context.Context) {})
	require.NoError(t, err)

	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	next := s.Next("collect")
	require.False(t, next.IsZero())
	local := next.In(loc)
	assert.Equal(t, 8, local.Hour())
	assert.Equal(t, 0, local.Minute())
	assert.True(t, s.Next("unknown").IsZero())
}

func TestJob_Fires(t *testing.T) {
	s := New(time.UTC, nil)
	fired := make(chan struct{}, 1)
	_, err := s.Add("tick", "@every 1s", func(context.Context) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}
}

func TestWrap_SkipsOverlappingRuns(t *testing.T) {
	s := New(time.UTC, nil)
	var runs atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	job := s.wrap("collect", func(context.Context) {
		runs.Add(1)
		close(started)
		<-release
	})

	finished := make(chan struct{})
	go func() {
		job.Run()
		close(finished)
	}()
	<-started

	// Returns at once: the first run still holds the slot.
	job.Run()
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	<-finished
}

func TestWrap_RecoversPanics(t *testing.T) {
	s := New(time.UTC, nil)
	job := s.wrap("collect", func(context.Context) { panic("boom") })
	assert.NotPanics(t, job.Run)
}

func TestStop_WaitsForRunningJob(t *testing.T) {
	s := New(time.UTC, nil)
	var completed atomic.Bool
	started := make(chan struct{}, 1)
	_, err := s.Add("slow", "@every 1s", func(context.Context) {
		select {
		case started <- struct{}{}:
		default:
			return
		}
		time.Sleep(300 * time.Millisecond)
		completed.Store(true)
	})
	require.NoError(t, err)
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, completed.Load())
}

func TestStop_TimeoutCancelsJobContext(t *testing.T) {
	s := New(time.UTC, nil)
	started := make(chan struct{}, 1)
	canceled := make(chan struct{})
	_, err := s.Add("stuck", "@every 1s", func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
			return
		}
		<-ctx.Done()
		close(canceled)
	})
	require.NoError(t, err)
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("job context was not canceled")
	}
}
