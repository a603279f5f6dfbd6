package shutdown

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCoordinatorDrainSucceeds(t *testing.T) {
	c := NewCoordinator(Config{}, zaptest.NewLogger(t))

	forced := false
	err := c.Shutdown(
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { forced = true; return nil },
	)

	require.NoError(t, err)
	assert.False(t, forced, "force is not invoked after a clean drain")
}

func TestCoordinatorForceAfterDrainTimeout(t *testing.T) {
	c := NewCoordinator(Config{DrainTimeout: 50 * time.Millisecond, ForceTimeout: time.Second}, zaptest.NewLogger(t))

	forced := false
	err := c.Shutdown(
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		func(ctx context.Context) error { forced = true; return nil },
	)

	require.NoError(t, err)
	assert.True(t, forced)
}

func TestCoordinatorShutdownTimeout(t *testing.T) {
	c := NewCoordinator(Config{
		DrainTimeout: 30 * time.Millisecond,
		ForceTimeout: 30 * time.Millisecond,
	}, zaptest.NewLogger(t))

	block := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	err := c.Shutdown(block, block)

	assert.ErrorIs(t, err, ErrShutdownTimeout)
}

func TestCoordinatorCallbacksRunInOrder(t *testing.T) {
	c := NewCoordinator(Config{}, zaptest.NewLogger(t))

	var (
		mu    sync.Mutex
		order []string
	)
	for _, name := range []string{"first", "second", "third"} {
		name := name
		c.RegisterCallback(name, func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	require.NoError(t, c.Shutdown(nil, nil))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestCoordinatorCallbackErrorsCollected(t *testing.T) {
	c := NewCoordinator(Config{}, zaptest.NewLogger(t))

	boom := errors.New("boom")
	ran := false
	c.RegisterCallback("failing", func(ctx context.Context) error { return boom })
	c.RegisterCallback("after", func(ctx context.Context) error { ran = true; return nil })

	err := c.Shutdown(nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran, "a failing callback does not stop the sequence")
}

func TestCoordinatorCallbackPanicContained(t *testing.T) {
	c := NewCoordinator(Config{}, zaptest.NewLogger(t))

	c.RegisterCallback("panicking", func(ctx context.Context) error { panic("callback exploded") })

	err := c.Shutdown(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestCoordinatorCallbackTimeout(t *testing.T) {
	c := NewCoordinator(Config{CallbackTimeout: 30 * time.Millisecond}, zaptest.NewLogger(t))

	c.RegisterCallback("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Second)
		return nil
	})
	done := false
	c.RegisterCallback("fast", func(ctx context.Context) error { done = true; return nil })

	start := time.Now()
	err := c.Shutdown(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.True(t, done)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "exceeded callbacks are cancelled, not awaited")
}

func TestCoordinatorShutdownOnce(t *testing.T) {
	c := NewCoordinator(Config{}, zaptest.NewLogger(t))

	calls := 0
	c.RegisterCallback("counted", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, c.Shutdown(nil, nil))
	require.NoError(t, c.Shutdown(nil, nil))
	assert.Equal(t, 1, calls, "callbacks run exactly once")
}

func TestCoordinatorAwait(t *testing.T) {
	c := NewCoordinator(Config{}, zaptest.NewLogger(t))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = c.Shutdown(nil, nil)
	}()

	assert.NoError(t, c.Await())
}

func TestCoordinatorRegisterAfterShutdownIgnored(t *testing.T) {
	c := NewCoordinator(Config{}, zaptest.NewLogger(t))
	require.NoError(t, c.Shutdown(nil, nil))

	ran := false
	c.RegisterCallback("late", func(ctx context.Context) error { ran = true; return nil })
	require.NoError(t, c.Shutdown(nil, nil))
	assert.False(t, ran)
}

func TestCoordinatorReleaseSignalHandlerIdempotent(t *testing.T) {
	c := NewCoordinator(Config{}, zaptest.NewLogger(t))
	c.InstallSignalHandler(func(os.Signal) {})

	assert.NotPanics(t, func() {
		c.ReleaseSignalHandler()
		c.ReleaseSignalHandler()
	})
}
