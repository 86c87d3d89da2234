package concurrent

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateReleasesWaiters(t *testing.T) {
	g := NewGate()
	assert.False(t, g.IsOpen())

	var released atomic.Int32
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Wait(context.Background()) == nil {
				released.Add(1)
			}
		}()
	}

	g.Open()
	wg.Wait()

	assert.EqualValues(t, 3, released.Load())
	assert.True(t, g.IsOpen())
	assert.True(t, g.WaitTimeout(time.Millisecond))
}

func TestGateRearm(t *testing.T) {
	g := NewGate()
	g.Open()
	g.Open()
	assert.EqualValues(t, 1, g.Version())

	g.Rearm()
	assert.False(t, g.IsOpen())
	assert.False(t, g.WaitTimeout(20*time.Millisecond))

	done := make(chan bool, 1)
	go func() { done <- g.WaitTimeout(2 * time.Second) }()

	time.Sleep(10 * time.Millisecond)
	g.Rearm()
	g.Open()

	require.True(t, <-done)
	assert.EqualValues(t, 2, g.Version())
}

func TestGateWaitHonoursContext(t *testing.T) {
	g := NewGate()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBlockerPauseResume(t *testing.T) {
	b := NewBlocker()
	b.MayWait()
	assert.False(t, b.Paused())

	b.Pause()
	assert.True(t, b.Paused())

	var passed atomic.Bool
	done := make(chan struct{})
	go func() {
		b.MayWait()
		passed.Store(true)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	assert.False(t, passed.Load())

	b.Resume()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer still blocked after resume")
	}
	assert.True(t, passed.Load())
}
