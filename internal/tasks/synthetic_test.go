package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseload/pulseload/internal/task"
)

func TestSyntheticTaskValidation(t *testing.T) {
	_, err := NewSyntheticTask(SyntheticConfig{FailureRatio: 1.5})
	require.Error(t, err)

	_, err = NewSyntheticTask(SyntheticConfig{SkipRatio: -0.1})
	require.Error(t, err)
}

func TestSyntheticTaskAlwaysSucceeds(t *testing.T) {
	tsk, err := NewSyntheticTask(SyntheticConfig{})
	require.NoError(t, err)
	require.NoError(t, tsk.Init())

	for i := range uint64(100) {
		res := tsk.Execute(context.Background(), i)
		assert.Equal(t, task.StatusSuccess, res.Status)
	}
	require.NoError(t, tsk.Teardown())
	assert.Equal(t, uint64(100), tsk.Invocations())
}

func TestSyntheticTaskFailureRatio(t *testing.T) {
	tsk, err := NewSyntheticTask(SyntheticConfig{FailureRatio: 0.1})
	require.NoError(t, err)
	require.NoError(t, tsk.Init())

	failures := 0
	for i := range uint64(1000) {
		if tsk.Execute(context.Background(), i).Status == task.StatusFailure {
			failures++
		}
	}
	assert.InDelta(t, 100, failures, 5)
}

func TestSyntheticTaskFailureIsWrapped(t *testing.T) {
	tsk, err := NewSyntheticTask(SyntheticConfig{FailureRatio: 1})
	require.NoError(t, err)
	require.NoError(t, tsk.Init())

	res := tsk.Execute(context.Background(), 0)
	require.Equal(t, task.StatusFailure, res.Status)
	assert.ErrorIs(t, res.Err, ErrSyntheticFailure)
}

func TestSyntheticTaskSkipRatio(t *testing.T) {
	tsk, err := NewSyntheticTask(SyntheticConfig{SkipRatio: 0.5})
	require.NoError(t, err)
	require.NoError(t, tsk.Init())

	skipped := 0
	for i := range uint64(100) {
		if tsk.Execute(context.Background(), i).Status == task.StatusSkipped {
			skipped++
		}
	}
	assert.InDelta(t, 50, skipped, 2)
}

func TestSyntheticTaskLatency(t *testing.T) {
	tsk, err := NewSyntheticTask(SyntheticConfig{BaseLatency: 30 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, tsk.Init())

	start := time.Now()
	tsk.Execute(context.Background(), 0)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSyntheticTaskHonoursContext(t *testing.T) {
	tsk, err := NewSyntheticTask(SyntheticConfig{BaseLatency: 10 * time.Second})
	require.NoError(t, err)
	require.NoError(t, tsk.Init())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := tsk.Execute(ctx, 0)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, task.StatusFailure, res.Status)
}

func TestSyntheticTaskInitError(t *testing.T) {
	boom := errors.New("refused to start")
	tsk, err := NewSyntheticTask(SyntheticConfig{InitError: boom})
	require.NoError(t, err)
	assert.ErrorIs(t, tsk.Init(), boom)
}

func TestSyntheticTaskCapacityKnee(t *testing.T) {
	tsk, err := NewSyntheticTask(SyntheticConfig{FailureRatio: 1, FailAboveRate: 1e9})
	require.NoError(t, err)
	require.NoError(t, tsk.Init())

	// A modest call rate stays far below the knee: no failures.
	for i := range uint64(50) {
		res := tsk.Execute(context.Background(), i)
		assert.Equal(t, task.StatusSuccess, res.Status)
		time.Sleep(time.Millisecond)
	}
}
