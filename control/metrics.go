// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the event loop. A nil *Metrics is a valid no-op
// receiver, so the loop never needs to nil-check.

package control

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hioload_sql"

// Close reasons recorded on connections_closed_total.
const (
	ReasonExit      = "exit"
	ReasonPeerRead  = "peer_closed_read"
	ReasonPeerWrite = "peer_closed_write"
	ReasonIOError   = "io_error"
	ReasonException = "exceptional"
	ReasonShutdown  = "shutdown"
	ReasonOversize  = "request_too_large"
)

// Request outcomes recorded on requests_total.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeExit  = "exit"
)

// Metrics groups the collectors updated by the event loop.
type Metrics struct {
	active          prometheus.Gauge
	accepted        prometheus.Counter
	closed          *prometheus.CounterVec
	requests        *prometheus.CounterVec
	bytesIn         prometheus.Counter
	bytesOut        prometheus.Counter
	pollTimeouts    prometheus.Counter
	handlerDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Client connections currently open.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Client connections accepted.",
		}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Client connections closed, by reason.",
		}, []string{"reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Complete requests received, by outcome.",
		}, []string{"outcome"}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes read from client sockets.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes written to client sockets.",
		}),
		pollTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_timeouts_total",
			Help:      "Multiplexer waits that returned with nothing ready.",
		}),
		handlerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Time spent in the query handler per request.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.active, m.accepted, m.closed, m.requests,
			m.bytesIn, m.bytesOut, m.pollTimeouts, m.handlerDuration)
	}
	return m
}

// ConnectionAccepted records a new connection.
func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
	m.active.Inc()
}

// ConnectionClosed records a connection teardown.
func (m *Metrics) ConnectionClosed(reason string) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.closed.WithLabelValues(reason).Inc()
}

// Request records a complete request and its outcome.
func (m *Metrics) Request(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	if outcome != OutcomeExit {
		m.handlerDuration.Observe(took.Seconds())
	}
}

// BytesReceived adds n to the inbound byte counter.
func (m *Metrics) BytesReceived(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesIn.Add(float64(n))
}

// BytesSent adds n to the outbound byte counter.
func (m *Metrics) BytesSent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesOut.Add(float64(n))
}

// PollTimeout records an idle multiplexer wait.
func (m *Metrics) PollTimeout() {
	if m == nil {
		return
	}
	m.pollTimeouts.Inc()
}
