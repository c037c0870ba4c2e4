package eventloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc) {
	t.Helper()
	l := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, cancel
}

func TestLoop_SubmitRunsInOrder(t *testing.T) {
	l, _ := startLoop(t)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, l.Submit(context.Background(), func() { got = append(got, i) }))
	}
	// Invoke is queued behind the submits, so it observes all of them
	var snapshot []int
	require.NoError(t, l.Invoke(context.Background(), func() error {
		snapshot = append(snapshot, got...)
		return nil
	}))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, snapshot)
}

func TestLoop_InvokeReturnsCallbackError(t *testing.T) {
	l, _ := startLoop(t)
	boom := errors.New("boom")

	err := l.Invoke(context.Background(), func() error { return boom })

	assert.ErrorIs(t, err, boom)
}

func TestLoop_AfterFuncFires(t *testing.T) {
	l, _ := startLoop(t)
	fired := make(chan struct{})

	l.AfterFunc(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestLoop_CancelledTimerNeverRuns(t *testing.T) {
	l, _ := startLoop(t)
	var ran atomic.Bool

	timer := l.AfterFunc(20*time.Millisecond, func() { ran.Store(true) })
	assert.True(t, timer.Cancel())
	assert.False(t, timer.Cancel(), "second cancel reports nothing stopped")

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, l.Invoke(context.Background(), func() error { return nil }))
	assert.False(t, ran.Load())
}

func TestLoop_CancelAfterExpiryBeforeDispatch(t *testing.T) {
	l, _ := startLoop(t)
	var ran atomic.Bool

	// Block the loop so the expired timer's callback waits in the queue.
	release := make(chan struct{})
	require.NoError(t, l.Submit(context.Background(), func() { <-release }))

	timer := l.AfterFunc(time.Millisecond, func() { ran.Store(true) })
	time.Sleep(30 * time.Millisecond)

	assert.True(t, timer.Cancel())
	close(release)

	require.NoError(t, l.Invoke(context.Background(), func() error { return nil }))
	assert.False(t, ran.Load())
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	l, _ := startLoop(t)

	require.NoError(t, l.Submit(context.Background(), func() { panic("bad callback") }))

	err := l.Invoke(context.Background(), func() error { return nil })
	assert.NoError(t, err, "loop keeps running after a panic")
}

func TestLoop_StopRejectsSubmit(t *testing.T) {
	l := New(Config{})
	go l.Run(context.Background())

	l.Stop()
	<-l.Done()

	assert.ErrorIs(t, l.Submit(context.Background(), func() {}), ErrStopped)
	l.Stop() // safe to call again
}

func TestLoop_RunTwice(t *testing.T) {
	l, _ := startLoop(t)
	require.Eventually(t, func() bool { return l.running.Load() }, time.Second, time.Millisecond)

	assert.ErrorIs(t, l.Run(context.Background()), ErrAlreadyRunning)
}

func TestLoop_ContextCancelEndsRun(t *testing.T) {
	l := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestLoop_InvokeSkipsCallbackAfterCallerGaveUp(t *testing.T) {
	l, _ := startLoop(t)
	release := make(chan struct{})
	require.NoError(t, l.Submit(context.Background(), func() { <-release }))

	var ran atomic.Bool
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Invoke(ctx, func() error {
		ran.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	// anything queued after the abandoned callback has run once this returns
	require.NoError(t, l.Invoke(context.Background(), func() error { return nil }))
	assert.False(t, ran.Load(), "an abandoned callback must not run")
}

func TestLoop_InvokeReportsPanic(t *testing.T) {
	l, _ := startLoop(t)

	err := l.Invoke(context.Background(), func() error { panic("lamp exploded") })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lamp exploded")
	// the loop survives
	assert.NoError(t, l.Invoke(context.Background(), func() error { return nil }))
}
