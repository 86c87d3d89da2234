// Package concurrent holds the small synchronisation primitives shared by the
// reader goroutine and caller goroutines.
package concurrent

import (
	"context"
	"sync"
	"time"
)

// Gate is a re-armable one-shot latch. Waiters block until Open; Rearm
// closes the gate again for the next cycle. Version increments on every
// Open so callers can tell cycles apart.
type Gate struct {
	mu      sync.Mutex
	ch      chan struct{}
	open    bool
	version uint64
}

func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Open releases all current and future waiters until the next Rearm.
// Opening an open gate is a no-op.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		return
	}
	g.open = true
	g.version++
	close(g.ch)
}

// Rearm closes an open gate. Rearming a closed gate is a no-op so that
// goroutines already waiting keep their channel.
func (g *Gate) Rearm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return
	}
	g.open = false
	g.ch = make(chan struct{})
}

func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

func (g *Gate) Version() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.version
}

// Done returns a channel closed when the gate is next open.
func (g *Gate) Done() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ch
}

// Wait blocks until the gate is open or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitTimeout reports whether the gate opened within d.
func (g *Gate) WaitTimeout(d time.Duration) bool {
	if g.IsOpen() {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-g.Done():
		return true
	case <-timer.C:
		return false
	}
}
