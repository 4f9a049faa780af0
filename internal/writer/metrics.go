// internal/writer/metrics.go
package writer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tamzrod/ups-poller/internal/poller"
	"github.com/tamzrod/ups-poller/internal/status"
	"github.com/tamzrod/ups-poller/internal/ups"
)

// Metrics exports snapshots, status and cycle results to Prometheus.
// It implements SnapshotWriter, StatusWriter and the coordinator observer.
type Metrics struct {
	fields         *prometheus.GaugeVec
	cycles         *prometheus.CounterVec
	duration       prometheus.Histogram
	health         prometheus.Gauge
	secondsInError prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fields: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ups_field_value",
			Help: "Last published value of each UPS field.",
		}, []string{"key"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ups_poll_cycles_total",
			Help: "Poll cycles by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ups_poll_cycle_duration_seconds",
			Help:    "Duration of poll cycles, connect to close.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_health",
			Help: "Device health code (0 unknown, 1 ok, 2 error, 3 stale).",
		}),
		secondsInError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_seconds_in_error",
			Help: "Seconds since the first failure of the current error streak.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ups_last_success_timestamp_seconds",
			Help: "Unix time of the last successful cycle.",
		}),
	}

	reg.MustRegister(m.fields, m.cycles, m.duration, m.health, m.secondsInError, m.lastSuccess)
	return m
}

// WriteSnapshot sets one gauge per field.
func (m *Metrics) WriteSnapshot(s ups.Snapshot) error {
	for _, k := range s.Keys() {
		v, _ := s.Get(k)
		m.fields.WithLabelValues(k).Set(v)
	}
	return nil
}

// WriteStatus mirrors the device status.
func (m *Metrics) WriteStatus(s status.Snapshot) error {
	m.health.Set(float64(s.Health))
	m.secondsInError.Set(float64(s.SecondsInError))
	if !s.LastSuccess.IsZero() {
		m.lastSuccess.Set(float64(s.LastSuccess.Unix()))
	}
	return nil
}

// ObserveCycle counts one cycle result.
func (m *Metrics) ObserveCycle(res poller.PollResult) {
	result := "success"
	if res.Err != nil {
		result = "failure"
	}
	m.cycles.WithLabelValues(result).Inc()
	m.duration.Observe(res.Duration.Seconds())
}
