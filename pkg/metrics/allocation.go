package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RingOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackmotive_ring_operations_total",
			Help: "Total number of allocation ring operations",
		},
		[]string{"operation", "status"},
	)

	RingRecalculationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stackmotive_ring_recalculation_duration_seconds",
			Help:    "Time spent recalculating derived ring state",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	RingsNeedingRebalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stackmotive_rings_needing_rebalance",
			Help: "Rings whose drift exceeded the rebalancing threshold at the last monitor run",
		},
	)

	SuggestionsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackmotive_suggestions_generated_total",
			Help: "Rebalancing suggestions generated by type",
		},
		[]string{"type", "priority"},
	)

	RebalanceAnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackmotive_rebalance_analyses_total",
			Help: "Rebalancing analyses by outcome",
		},
		[]string{"status"}, // success, failed
	)

	RebalanceTradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackmotive_rebalance_trades_total",
			Help: "Trades submitted for execution",
		},
		[]string{"action", "status"},
	)

	PortfolioDriftHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stackmotive_portfolio_drift_percentage",
			Help:    "Maximum absolute variance observed per ring",
			Buckets: []float64{1, 2.5, 5, 7.5, 10, 15, 20, 30, 50},
		},
	)

	DriftMonitorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stackmotive_drift_monitor_runs_total",
			Help: "Drift monitor runs by outcome",
		},
		[]string{"status"},
	)

	DriftMonitorRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stackmotive_drift_monitor_run_duration_seconds",
			Help:    "Duration of a drift monitor run",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordRingOperation records the outcome of a ring operation
func RecordRingOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RingOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordSuggestion records a generated suggestion
func RecordSuggestion(suggestionType, priority string) {
	SuggestionsGeneratedTotal.WithLabelValues(suggestionType, priority).Inc()
}

// RecordRebalanceAnalysis records an analysis outcome
func RecordRebalanceAnalysis(success bool) {
	status := "success"
	if !success {
		status = "failed"
	}
	RebalanceAnalysesTotal.WithLabelValues(status).Inc()
}

// RecordRebalanceTrade records a trade submission
func RecordRebalanceTrade(action string, success bool) {
	status := "filled"
	if !success {
		status = "failed"
	}
	RebalanceTradesTotal.WithLabelValues(action, status).Inc()
}

// RecordDrift records the maximum absolute variance of a ring
func RecordDrift(maxAbsVariance float64) {
	PortfolioDriftHistogram.Observe(maxAbsVariance)
}

// RecordDriftMonitorRun records a completed drift monitor run
func RecordDriftMonitorRun(success bool, duration float64, needingRebalance int) {
	status := "success"
	if !success {
		status = "failed"
	}
	DriftMonitorRunsTotal.WithLabelValues(status).Inc()
	DriftMonitorRunDuration.Observe(duration)
	RingsNeedingRebalance.Set(float64(needingRebalance))
}
