package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNopMetrics(t *testing.T) {
	// Every method must be callable without side effects or panics.
	nop := NewNop()
	require.NotNil(t, nop)

	nop.RecordAssignmentDuration(0.5)
	nop.RecordAssignmentRound(3, true)
	nop.RecordAssignmentRound(0, false)
	nop.RecordConfigMismatch()
	nop.RecordAllocationChange(4, 2)
	nop.RecordRebalanceDelay(60)
	nop.RecordMissingWorkers(1)
	nop.RecordGenerationReset()
}
