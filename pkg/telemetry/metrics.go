package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what appenders do with the events they receive.
type Metrics struct {
	// Published counts messages accepted by the broker client.
	Published *prometheus.CounterVec
	// Failures counts connect, channel, declare and publish failures by kind.
	Failures *prometheus.CounterVec
	// Reconnects counts connections acquired after an earlier one was lost.
	Reconnects *prometheus.CounterVec
}

// NewMetrics registers the appender metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amqplog_published_total",
				Help: "Total number of log events published",
			},
			[]string{"appender"},
		),
		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amqplog_failures_total",
				Help: "Total number of appender failures by kind",
			},
			[]string{"appender", "kind"},
		),
		Reconnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "amqplog_reconnects_total",
				Help: "Total number of reconnections after a lost connection",
			},
			[]string{"appender"},
		),
	}
}

func (m *Metrics) IncPublished(appender string) {
	if m != nil {
		m.Published.WithLabelValues(appender).Inc()
	}
}

func (m *Metrics) IncFailure(appender, kind string) {
	if m != nil {
		m.Failures.WithLabelValues(appender, kind).Inc()
	}
}

func (m *Metrics) IncReconnect(appender string) {
	if m != nil {
		m.Reconnects.WithLabelValues(appender).Inc()
	}
}
