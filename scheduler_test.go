package paratest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestScheduler_RunOnce(t *testing.T) {
	scheduler := NewDefaultTestScheduler(100*time.Millisecond, true, log.New())

	runs := 0
	scheduler.RegisterCallback(func() error {
		runs++
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, scheduler.Start(ctx))
	assert.Equal(t, 1, runs, "run-once fires the callback exactly once")

	// Long enough for a second tick if the loop were running
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, runs, "run-once must not reschedule")
}

func TestDefaultTestScheduler_Periodic(t *testing.T) {
	scheduler := NewDefaultTestScheduler(10*time.Millisecond, false, log.New())

	ran := make(chan struct{}, 10)
	scheduler.RegisterCallback(func() error {
		ran <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, scheduler.Start(ctx))

	const wantRuns = 4
	for i := 0; i < wantRuns; i++ {
		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for run %d/%d", i+1, wantRuns)
		}
	}

	require.NoError(t, scheduler.Stop())

	// A run arriving now slipped past the stop signal
	select {
	case <-ran:
		t.Fatal("callback ran after Stop")
	case <-time.After(50 * time.Millisecond):
	}

	assert.NoError(t, scheduler.WaitForShutdown(ctx))
}

func TestDefaultTestScheduler_CallbackError(t *testing.T) {
	scheduler := NewDefaultTestScheduler(100*time.Millisecond, true, log.New())

	wantErr := errors.New("run blew up")
	scheduler.RegisterCallback(func() error {
		return wantErr
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := scheduler.Start(ctx)
	require.Error(t, err)
	assert.Equal(t, wantErr, err, "the first run's error propagates out of Start")
}

func TestDefaultTestScheduler_NoCallback(t *testing.T) {
	scheduler := NewDefaultTestScheduler(100*time.Millisecond, true, log.New())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := scheduler.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback must be registered")
}

func TestDefaultTestScheduler_StopIsIdempotent(t *testing.T) {
	scheduler := NewDefaultTestScheduler(100*time.Millisecond, true, log.New())
	scheduler.RegisterCallback(func() error { return nil })

	assert.NoError(t, scheduler.Stop(), "stop before start")
	assert.NoError(t, scheduler.Stop(), "repeated stop")
	assert.True(t, scheduler.Stopped())
}

func TestDefaultTestScheduler_WaitForShutdown(t *testing.T) {
	scheduler := NewDefaultTestScheduler(100*time.Millisecond, false, log.New())
	scheduler.RegisterCallback(func() error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, scheduler.Start(ctx))
	require.NoError(t, scheduler.Stop())

	assert.NoError(t, scheduler.WaitForShutdown(ctx), "loop exits promptly after Stop")
}
