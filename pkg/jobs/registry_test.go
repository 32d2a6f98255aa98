package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRunsAndForgets(t *testing.T) {
	reg := NewRegistry(2, nil)
	ran := make(chan struct{})
	require.NoError(t, reg.Launch("a", func(ctx context.Context) { close(ran) }))

	<-ran
	require.NoError(t, reg.Wait(context.Background(), "a"))
	assert.Eventually(t, func() bool { return !reg.Live("a") }, time.Second, 5*time.Millisecond)
}

func TestRegistryRejectsDuplicateLaunch(t *testing.T) {
	reg := NewRegistry(1, nil)
	release := make(chan struct{})
	require.NoError(t, reg.Launch("a", func(ctx context.Context) { <-release }))
	err := reg.Launch("a", func(ctx context.Context) {})
	require.ErrorIs(t, err, ErrAlreadyRunning)
	close(release)
	require.NoError(t, reg.Wait(context.Background(), "a"))
}

func TestRegistryBoundsConcurrency(t *testing.T) {
	reg := NewRegistry(2, nil)
	var running, peak int32
	release := make(chan struct{})
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, reg.Launch(id, func(ctx context.Context) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
		}))
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&running) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
	close(release)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, reg.Wait(context.Background(), id))
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
}

func TestRegistryCancel(t *testing.T) {
	reg := NewRegistry(1, nil)
	canceled := make(chan error, 1)
	require.NoError(t, reg.Launch("a", func(ctx context.Context) {
		<-ctx.Done()
		canceled <- ctx.Err()
	}))

	assert.True(t, reg.Cancel("a"))
	assert.ErrorIs(t, <-canceled, context.Canceled)
	require.NoError(t, reg.Wait(context.Background(), "a"))
	assert.False(t, reg.Cancel("missing"))
}

func TestRegistryCancelWhileWaitingForSlot(t *testing.T) {
	reg := NewRegistry(1, nil)
	release := make(chan struct{})
	require.NoError(t, reg.Launch("busy", func(ctx context.Context) { <-release }))

	got := make(chan error, 1)
	require.NoError(t, reg.Launch("queued", func(ctx context.Context) { got <- ctx.Err() }))
	assert.True(t, reg.Cancel("queued"))

	select {
	case err := <-got:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("queued job did not run after cancel")
	}
	close(release)
}

func TestRegistryWaitHonorsContext(t *testing.T) {
	reg := NewRegistry(1, nil)
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, reg.Launch("a", func(ctx context.Context) { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, reg.Wait(ctx, "a"), context.DeadlineExceeded)
}

func TestRegistryShutdown(t *testing.T) {
	reg := NewRegistry(2, nil)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, reg.Launch(id, func(ctx context.Context) { <-ctx.Done() }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, reg.Shutdown(ctx))
	assert.False(t, reg.Live("a"))
	require.ErrorIs(t, reg.Launch("c", func(ctx context.Context) {}), ErrShuttingDown)
}

func TestRegistryRecoversPanic(t *testing.T) {
	reg := NewRegistry(1, nil)
	require.NoError(t, reg.Launch("a", func(ctx context.Context) { panic("boom") }))
	require.NoError(t, reg.Wait(context.Background(), "a"))

	ran := make(chan struct{})
	require.NoError(t, reg.Launch("b", func(ctx context.Context) { close(ran) }))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("slot was not released after panic")
	}
}
