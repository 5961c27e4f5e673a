package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of one Server.
type Metrics struct {
	Validations       *prometheus.CounterVec
	Executions        *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	SimulatedCandles  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algoscript_validations_total",
			Help: "Programs validated, by outcome",
		}, []string{"valid"}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algoscript_executions_total",
			Help: "Execution requests, by endpoint and outcome",
		}, []string{"endpoint", "success"}),
		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "algoscript_execution_duration_seconds",
			Help:    "Wall time of execution requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		SimulatedCandles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "algoscript_simulated_candles_total",
			Help: "Candles appended through the market data endpoint",
		}, []string{"symbol"}),
	}

	registerer.MustRegister(m.Validations, m.Executions, m.ExecutionDuration, m.SimulatedCandles)

	return m
}

func (m *Metrics) observeExecution(endpoint string, success bool, seconds float64) {
	m.Executions.WithLabelValues(endpoint, strconv.FormatBool(success)).Inc()
	m.ExecutionDuration.WithLabelValues(endpoint).Observe(seconds)
}
