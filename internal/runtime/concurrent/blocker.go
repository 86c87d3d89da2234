package concurrent

import "sync"

// Blocker pauses a consumer loop. The loop calls MayWait before each unit of
// work; while paused MayWait blocks until Resume.
type Blocker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
}

func NewBlocker() *Blocker {
	b := &Blocker{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *Blocker) Pause() {
	b.mu.Lock()
	b.paused = true
	b.mu.Unlock()
}

func (b *Blocker) Resume() {
	b.mu.Lock()
	b.paused = false
	b.mu.Unlock()
	b.cond.Broadcast()
}

func (b *Blocker) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// MayWait returns immediately while running.
func (b *Blocker) MayWait() {
	b.mu.Lock()
	for b.paused {
		b.cond.Wait()
	}
	b.mu.Unlock()
}
