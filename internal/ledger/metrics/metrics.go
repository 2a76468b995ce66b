// Package metrics exposes the ledger's Prometheus collectors: plan outcomes,
// plan execution latency, VOs selected per lock pool, and VO population by
// state.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/R3E-Network/valueledger/internal/domain/ledger"
)

// Registry holds the ledger's collectors, separate from the global
// prometheus.DefaultRegisterer so embedding callers can mount it under
// whatever path they choose.
var Registry = prometheus.NewRegistry()

var (
	planOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "valueledger",
			Subsystem: "plan",
			Name:      "executions_total",
			Help:      "Total execute_plan calls grouped by outcome.",
		},
		[]string{"outcome"},
	)

	planDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "valueledger",
			Subsystem: "plan",
			Name:      "execution_duration_seconds",
			Help:      "Duration of execute_plan calls, selection through commit.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"outcome"},
	)

	lockPoolSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "valueledger",
			Subsystem: "plan",
			Name:      "lock_pool_vo_count",
			Help:      "Number of Value Objects selected to satisfy one lock pool.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"state"},
	)

	voPopulation = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "valueledger",
			Subsystem: "store",
			Name:      "value_object_count",
			Help:      "Current Value Object population grouped by state.",
		},
		[]string{"asset_code", "state"},
	)
)

func init() {
	Registry.MustRegister(
		planOutcomes,
		planDuration,
		lockPoolSize,
		voPopulation,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the ledger's registered collectors for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordPlanExecution records one execute_plan call's outcome and latency.
// outcome should be a PlanOutcome label ("committed", a ledger.Kind name, or
// "error") — never the raw error string, to keep cardinality bounded.
func RecordPlanExecution(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	planOutcomes.WithLabelValues(outcome).Inc()
	planDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordLockPoolSize records how many VOs one pool's selection phase
// consumed to satisfy its requirement.
func RecordLockPoolSize(state string, count int) {
	lockPoolSize.WithLabelValues(state).Observe(float64(count))
}

// PlanOutcome classifies an ExecutePlan error into a bounded-cardinality
// label for RecordPlanExecution: "committed" on success, the ledger.Kind
// name on a typed failure, or "error" for anything unrecognized.
func PlanOutcome(err error) string {
	if err == nil {
		return "committed"
	}
	var lerr *ledger.Error
	if errors.As(err, &lerr) {
		return string(lerr.Kind)
	}
	return "error"
}

// SetValueObjectCount publishes the current population gauge for
// (assetCode, state). Callers are expected to call this periodically, not
// per-operation, since it requires a full scan on the in-memory backend.
func SetValueObjectCount(assetCode, state string, count int) {
	voPopulation.WithLabelValues(assetCode, state).Set(float64(count))
}
