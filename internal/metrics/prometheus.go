package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/apmflow/rebalance/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	assignmentDuration prometheus.Histogram
	assignmentRounds   *prometheus.CounterVec
	assignmentMembers  prometheus.Gauge
	configMismatches   prometheus.Counter
	unitsStarted       prometheus.Counter
	unitsRevoked       prometheus.Counter
	rebalanceDelay     prometheus.Gauge
	missingWorkers     prometheus.Gauge
	generationResets   prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "rebalance" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "rebalance"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.assignmentDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "assignor",
			Name:      "round_duration_seconds",
			Help:      "Time spent computing one assignment round.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		})
		p.assignmentRounds = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignor",
			Name:      "rounds_total",
			Help:      "Assignment rounds by outcome.",
		}, []string{"outcome"})
		p.assignmentMembers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "assignor",
			Name:      "members_current",
			Help:      "Members in the most recent assignment round.",
		})
		p.configMismatches = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignor",
			Name:      "config_mismatches_total",
			Help:      "Rounds rejected because the leader's config snapshot was stale.",
		})
		p.unitsStarted = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignor",
			Name:      "units_started_total",
			Help:      "Connectors and tasks newly started across all rounds.",
		})
		p.unitsRevoked = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignor",
			Name:      "units_revoked_total",
			Help:      "Connectors and tasks revoked across all rounds.",
		})
		p.rebalanceDelay = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "assignor",
			Name:      "rebalance_delay_seconds",
			Help:      "Scheduled-rebalance delay attached to the current round.",
		})
		p.missingWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "assignor",
			Name:      "missing_workers",
			Help:      "Workers held for during the active grace window.",
		})
		p.generationResets = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "assignor",
			Name:      "generation_resets_total",
			Help:      "Carried state resets due to generation mismatch.",
		})

		p.reg.MustRegister(
			p.assignmentDuration,
			p.assignmentRounds,
			p.assignmentMembers,
			p.configMismatches,
			p.unitsStarted,
			p.unitsRevoked,
			p.rebalanceDelay,
			p.missingWorkers,
			p.generationResets,
		)
	})
}

// AssignmentMetrics implementation

// RecordAssignmentDuration records the time taken for one assignment round.
func (p *PrometheusCollector) RecordAssignmentDuration(duration float64) {
	p.ensureRegistered()
	p.assignmentDuration.Observe(duration)
}

// RecordAssignmentRound records one assignment round attempt.
func (p *PrometheusCollector) RecordAssignmentRound(members int, success bool) {
	p.ensureRegistered()
	outcome := "success"
	if !success {
		outcome = "config_mismatch"
	}
	p.assignmentRounds.WithLabelValues(outcome).Inc()
	p.assignmentMembers.Set(float64(members))
}

// RecordConfigMismatch records a stale-leader rejection.
func (p *PrometheusCollector) RecordConfigMismatch() {
	p.ensureRegistered()
	p.configMismatches.Inc()
}

// RecordAllocationChange records units started and revoked this round.
func (p *PrometheusCollector) RecordAllocationChange(started, revoked int) {
	p.ensureRegistered()
	p.unitsStarted.Add(float64(started))
	p.unitsRevoked.Add(float64(revoked))
}

// DelayMetrics implementation

// RecordRebalanceDelay records the delay attached to the current round.
func (p *PrometheusCollector) RecordRebalanceDelay(delay float64) {
	p.ensureRegistered()
	p.rebalanceDelay.Set(delay)
}

// RecordMissingWorkers sets the missing worker count gauge.
func (p *PrometheusCollector) RecordMissingWorkers(count int) {
	p.ensureRegistered()
	p.missingWorkers.Set(float64(count))
}

// RecordGenerationReset records a carried-state reset.
func (p *PrometheusCollector) RecordGenerationReset() {
	p.ensureRegistered()
	p.generationResets.Inc()
}
