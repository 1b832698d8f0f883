package activity

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the tracker's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	events  *prometheus.CounterVec
	flushes *prometheus.CounterVec
	tracked prometheus.Gauge
}

// NewMetrics registers the tracker collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultactivity",
			Name:      "events_total",
			Help:      "Document events received, by kind and whether they were counted.",
		}, []string{"kind", "result"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultactivity",
			Name:      "flushes_total",
			Help:      "Writes of the activity database to storage.",
		}, []string{"result"}),
		tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vaultactivity",
			Name:      "tracked_documents",
			Help:      "Number of documents with an activity record.",
		}),
	}
	reg.MustRegister(m.events, m.flushes, m.tracked)
	return m
}

func (m *Metrics) event(kind, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) flush(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.flushes.WithLabelValues(result).Inc()
}

func (m *Metrics) setTracked(n int) {
	if m == nil {
		return
	}
	m.tracked.Set(float64(n))
}
