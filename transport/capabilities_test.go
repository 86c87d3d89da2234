package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilities_CanInject(t *testing.T) {
	assert.True(t, Capabilities{SupportsSubscribe: true}.CanInject())
	assert.False(t, Capabilities{}.CanInject())
}

func TestCapabilities_Replayable(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		want bool
	}{
		{name: "durable and ordered", caps: Capabilities{Durable: true, SupportsOrdering: true}, want: true},
		{name: "durable only", caps: Capabilities{Durable: true}, want: false},
		{name: "ordered only", caps: Capabilities{SupportsOrdering: true}, want: false},
		{name: "neither", caps: Capabilities{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.caps.Replayable())
		})
	}
}

func TestCapabilities_Fits(t *testing.T) {
	unlimited := Capabilities{}
	assert.True(t, unlimited.Fits(10<<20))

	limited := Capabilities{MaxMessageSize: 100}
	assert.True(t, limited.Fits(100))
	assert.False(t, limited.Fits(101))
}

func TestPredefinedCapabilities(t *testing.T) {
	all := []Capabilities{
		ChannelCapabilities,
		KafkaCapabilities,
		RabbitMQCapabilities,
		NATSCapabilities,
		NATSJetStreamCapabilities,
		AWSCapabilities,
		HTTPCapabilities,
		IOCapabilities,
	}

	names := make(map[string]bool)
	for _, caps := range all {
		assert.NotEmpty(t, caps.Name)
		assert.False(t, names[caps.Name], "duplicate name %q", caps.Name)
		names[caps.Name] = true
		assert.True(t, caps.CanInject(), caps.Name)
	}

	assert.True(t, KafkaCapabilities.Replayable())
	assert.True(t, NATSJetStreamCapabilities.Replayable())
	assert.True(t, IOCapabilities.Replayable())
	assert.False(t, NATSCapabilities.Replayable())
	assert.False(t, AWSCapabilities.Fits(300000))
}

func TestGetCapabilitiesUnknownKeepsName(t *testing.T) {
	caps := GetCapabilities("does-not-exist")
	assert.Equal(t, "does-not-exist", caps.Name)
	assert.False(t, caps.CanInject())
}
