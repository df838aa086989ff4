package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/verifiquant/internal/core/domain"
)

// SolveMetrics records outcomes of the solve flow.
type SolveMetrics struct {
	service string

	outcomesTotal *prometheus.CounterVec
	candidates    *prometheus.HistogramVec
	fallbackTotal *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

func NewSolveMetrics(service string, registry prometheus.Registerer) *SolveMetrics {
	outcomesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vq",
			Subsystem: "solve",
			Name:      "outcomes_total",
			Help:      "Solve requests by final status.",
		},
		[]string{"service", "status"},
	)
	candidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vq",
			Subsystem: "retrieval",
			Name:      "candidates",
			Help:      "Cards returned by retrieval per solve request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vq",
			Subsystem: "calculation",
			Name:      "fallback_total",
			Help:      "Successful solves that used the external fallback evaluator.",
		},
		[]string{"service"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vq",
			Subsystem: "solve",
			Name:      "duration_seconds",
			Help:      "End-to-end solve duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(outcomesTotal, candidates, fallbackTotal, duration)

	return &SolveMetrics{
		service:       service,
		outcomesTotal: outcomesTotal,
		candidates:    candidates,
		fallbackTotal: fallbackTotal,
		duration:      duration,
	}
}

func (m *SolveMetrics) ObserveSolve(outcome *domain.SolveOutcome, candidates int, elapsed time.Duration, err error) {
	status := "error"
	if err == nil && outcome != nil {
		status = string(outcome.Status)
	}
	m.outcomesTotal.WithLabelValues(m.service, status).Inc()
	m.candidates.WithLabelValues(m.service).Observe(float64(candidates))
	m.duration.WithLabelValues(m.service, status).Observe(elapsed.Seconds())
	if err == nil && outcome != nil && outcome.Result != nil && outcome.Result.Fallback {
		m.fallbackTotal.WithLabelValues(m.service).Inc()
	}
}
