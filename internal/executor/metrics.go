package executor

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK       = "ok"
	resultTimeout  = "timeout"
	resultCanceled = "canceled"
)

// Metrics records executor outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	batches  *prometheus.CounterVec
	rounds   prometheus.Histogram
	timedOut prometheus.Counter
}

// NewMetrics creates executor metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ceilingd",
				Subsystem: "executor",
				Name:      "batches_total",
				Help:      "Command batches by result.",
			},
			[]string{"result"},
		),
		rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ceilingd",
			Subsystem: "executor",
			Name:      "rounds",
			Help:      "Retry rounds used per batch.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}),
		timedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ceilingd",
			Subsystem: "executor",
			Name:      "timed_out_operations_total",
			Help:      "Operations that never completed within their batch deadline.",
		}),
	}
	reg.MustRegister(m.batches, m.rounds, m.timedOut)
	return m
}

func (m *Metrics) observe(result string, rounds, failed int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(result).Inc()
	m.rounds.Observe(float64(rounds))
	if failed > 0 {
		m.timedOut.Add(float64(failed))
	}
}
