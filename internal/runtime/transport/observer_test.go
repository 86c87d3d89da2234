package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drblury/nanofix/internal/runtime/logging"
)

type countingObserver struct {
	established int
	closed      int
	onEvent     func()
}

func (c *countingObserver) ConnectionEstablished() {
	c.established++
	if c.onEvent != nil {
		c.onEvent()
	}
}

func (c *countingObserver) ConnectionClosed() { c.closed++ }

type panickingObserver struct{}

func (panickingObserver) ConnectionEstablished() { panic("observer failure") }
func (panickingObserver) ConnectionClosed()      {}

func TestPublishingObserverBroadcasts(t *testing.T) {
	p := NewPublishingObserver(logging.NewNopServiceLogger())
	a, b := &countingObserver{}, &countingObserver{}
	p.Register(a)
	p.Register(b)
	p.Register(a)
	assert.Equal(t, 2, p.Len())

	p.ConnectionEstablished()
	p.ConnectionClosed()

	assert.Equal(t, 1, a.established)
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.established)

	p.Unregister(a)
	p.ConnectionClosed()
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 2, b.closed)

	p.Unregister(a)
	p.Register(nil)
	assert.Equal(t, 1, p.Len())
}

func TestPublishingObserverSnapshotDuringBroadcast(t *testing.T) {
	p := NewPublishingObserver(nil)
	late := &countingObserver{}
	first := &countingObserver{}
	first.onEvent = func() {
		p.Register(late)
		p.Unregister(first)
	}
	p.Register(first)

	p.ConnectionEstablished()
	assert.Equal(t, 1, first.established)
	assert.Equal(t, 0, late.established)

	p.ConnectionEstablished()
	assert.Equal(t, 1, first.established)
	assert.Equal(t, 1, late.established)
}

func TestPublishingObserverSurvivesPanics(t *testing.T) {
	p := NewPublishingObserver(logging.NewNopServiceLogger())
	after := &countingObserver{}
	p.Register(panickingObserver{})
	p.Register(after)

	assert.NotPanics(t, p.ConnectionEstablished)
	assert.Equal(t, 1, after.established)
}
