package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewPrometheus(reg, "test")

	collector.RecordAssignmentDuration(0.01)
	collector.RecordAssignmentRound(3, true)
	collector.RecordAssignmentRound(3, false)
	collector.RecordConfigMismatch()
	collector.RecordAllocationChange(5, 2)
	collector.RecordRebalanceDelay(60)
	collector.RecordMissingWorkers(1)
	collector.RecordGenerationReset()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}

	for _, want := range []string{
		"test_assignor_round_duration_seconds",
		"test_assignor_rounds_total",
		"test_assignor_members_current",
		"test_assignor_config_mismatches_total",
		"test_assignor_units_started_total",
		"test_assignor_units_revoked_total",
		"test_assignor_rebalance_delay_seconds",
		"test_assignor_missing_workers",
		"test_assignor_generation_resets_total",
	} {
		require.True(t, names[want], "missing metric family %s", want)
	}
}

func TestPrometheusCollector_Defaults(t *testing.T) {
	collector := NewPrometheus(prometheus.NewRegistry(), "")
	require.Equal(t, "rebalance", collector.namespace)
}
