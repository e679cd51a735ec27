// Package metrics exposes acquisition and publication counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector of the daemon. It implements the publisher
// cache's Observer.
type Metrics struct {
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	sensorReads   *prometheus.CounterVec
	sensorUp      *prometheus.GaugeVec
	published     *prometheus.CounterVec
	publishFailed *prometheus.CounterVec
	declared      *prometheus.CounterVec
	declareFailed *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "navtel_cycles_total",
			Help: "Completed acquisition cycles.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "navtel_cycle_duration_seconds",
			Help:    "Time spent reading, encoding and publishing one cycle.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		sensorReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navtel_sensor_reads_total",
			Help: "Sensor reads by sensor and validity.",
		}, []string{"sensor", "result"}),
		sensorUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "navtel_sensor_available",
			Help: "Whether the sensor was found at startup (1) or not (0).",
		}, []string{"sensor"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navtel_publishes_total",
			Help: "Payloads handed to the broker.",
		}, []string{"topic"}),
		publishFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navtel_publish_failures_total",
			Help: "Payloads that could not be published.",
		}, []string{"topic"}),
		declared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navtel_endpoint_declarations_total",
			Help: "Publisher endpoints declared on the broker.",
		}, []string{"topic"}),
		declareFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "navtel_endpoint_declaration_failures_total",
			Help: "Publisher endpoint declarations refused by the broker.",
		}, []string{"topic"}),
	}

	reg.MustRegister(
		m.cycles, m.cycleDuration, m.sensorReads, m.sensorUp,
		m.published, m.publishFailed, m.declared, m.declareFailed,
	)
	return m
}

// ObserveCycle records one completed cycle.
func (m *Metrics) ObserveCycle(d time.Duration) {
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// ObserveRead records a sensor read outcome.
func (m *Metrics) ObserveRead(sensor string, valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	m.sensorReads.WithLabelValues(sensor, result).Inc()
}

// SetAvailable records whether a sensor was found.
func (m *Metrics) SetAvailable(sensor string, available bool) {
	v := 0.0
	if available {
		v = 1
	}
	m.sensorUp.WithLabelValues(sensor).Set(v)
}

func (m *Metrics) EndpointDeclared(topic string) { m.declared.WithLabelValues(topic).Inc() }
func (m *Metrics) DeclareFailed(topic string)    { m.declareFailed.WithLabelValues(topic).Inc() }
func (m *Metrics) Published(topic string)        { m.published.WithLabelValues(topic).Inc() }
func (m *Metrics) PublishFailed(topic string)    { m.publishFailed.WithLabelValues(topic).Inc() }
