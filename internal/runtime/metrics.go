package runtime

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Parse error kinds used as the "kind" label.
const (
	ParseErrorFraming   = "framing"
	ParseErrorOversized = "oversized"
	ParseErrorTag       = "tag"
)

// Connection events used as the "event" label.
const (
	ConnectionEventEstablished = "established"
	ConnectionEventClosed      = "closed"
)

// Metrics tracks client traffic and connection statistics.
type Metrics struct {
	mu sync.RWMutex

	stats MetricsSnapshot

	// Prometheus collectors
	messagesTotal    *prometheus.CounterVec
	bytesTotal       *prometheus.CounterVec
	truncatedTotal   prometheus.Counter
	parseErrorsTotal *prometheus.CounterVec
	connectionEvents *prometheus.CounterVec
	sendFailures     prometheus.Counter
	connected        prometheus.Gauge
	messageSizeHist  *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// MetricsSnapshot provides a point-in-time view of the client metrics.
type MetricsSnapshot struct {
	MessagesReceived uint64            `json:"messages_received"`
	MessagesSent     uint64            `json:"messages_sent"`
	BytesReceived    uint64            `json:"bytes_received"`
	BytesSent        uint64            `json:"bytes_sent"`
	Truncated        uint64            `json:"truncated"`
	ParseErrors      map[string]uint64 `json:"parse_errors"`
	SendFailures     uint64            `json:"send_failures"`
	Connections      uint64            `json:"connections"`
	Disconnections   uint64            `json:"disconnections"`
	Connected        bool              `json:"connected"`
	LastMessageAt    time.Time         `json:"last_message_at,omitempty"`
	CollectedAt      time.Time         `json:"collected_at"`
}

const metricsNamespace = "nanofix"

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "client",
		Name:      name,
		Help:      help,
	})
}

// NewMetrics creates the client collectors. A nil registerer means the
// Prometheus default registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		stats:            MetricsSnapshot{ParseErrors: map[string]uint64{}},
		registerer:       registerer,
		messagesTotal:    newCounterVec("messages_total", "FIX messages sent and received", []string{"direction"}),
		bytesTotal:       newCounterVec("bytes_total", "FIX bytes sent and received", []string{"direction"}),
		truncatedTotal:   newCounter("truncated_messages_total", "Inbound messages delivered after the fragment buffer filled up"),
		parseErrorsTotal: newCounterVec("parse_errors_total", "Inbound messages that could not be framed or decoded", []string{"kind"}),
		connectionEvents: newCounterVec("connection_events_total", "Connection lifecycle transitions", []string{"event"}),
		sendFailures:     newCounter("send_failures_total", "Writes that failed and closed the connection"),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "connected",
			Help:      "1 while a connection is established",
		}),
		messageSizeHist: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "client",
				Name:      "message_size_bytes",
				Help:      "Size of FIX messages",
				Buckets:   []float64{64, 128, 256, 512, 1024, 2048, 4096, 8192},
			},
			[]string{"direction"},
		),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.messagesTotal,
		m.bytesTotal,
		m.truncatedTotal,
		m.parseErrorsTotal,
		m.connectionEvents,
		m.sendFailures,
		m.connected,
		m.messageSizeHist,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

func (m *Metrics) RecordReceived(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.MessagesReceived++
	m.stats.BytesReceived += uint64(size)
	m.stats.LastMessageAt = time.Now()

	m.messagesTotal.WithLabelValues(directionInbound).Inc()
	m.bytesTotal.WithLabelValues(directionInbound).Add(float64(size))
	m.messageSizeHist.WithLabelValues(directionInbound).Observe(float64(size))
}

func (m *Metrics) RecordSent(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.MessagesSent++
	m.stats.BytesSent += uint64(size)

	m.messagesTotal.WithLabelValues(directionOutbound).Inc()
	m.bytesTotal.WithLabelValues(directionOutbound).Add(float64(size))
	m.messageSizeHist.WithLabelValues(directionOutbound).Observe(float64(size))
}

func (m *Metrics) RecordTruncated() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Truncated++
	m.truncatedTotal.Inc()
}

func (m *Metrics) RecordParseError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.ParseErrors[kind]++
	m.parseErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordSendFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.SendFailures++
	m.sendFailures.Inc()
}

// RecordConnectionEvent also drives the connected gauge.
func (m *Metrics) RecordConnectionEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch event {
	case ConnectionEventEstablished:
		m.stats.Connections++
		m.stats.Connected = true
		m.connected.Set(1)
	case ConnectionEventClosed:
		m.stats.Disconnections++
		m.stats.Connected = false
		m.connected.Set(0)
	}
	m.connectionEvents.WithLabelValues(event).Inc()
}

// GetSnapshot returns a copy of the current counters.
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := m.stats
	snapshot.ParseErrors = make(map[string]uint64, len(m.stats.ParseErrors))
	for kind, n := range m.stats.ParseErrors {
		snapshot.ParseErrors[kind] = n
	}
	snapshot.CollectedAt = time.Now()
	return snapshot
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats = MetricsSnapshot{ParseErrors: map[string]uint64{}}
	m.messagesTotal.Reset()
	m.bytesTotal.Reset()
	m.parseErrorsTotal.Reset()
	m.connectionEvents.Reset()
	m.messageSizeHist.Reset()
	m.connected.Set(0)
}
