package recording

import (
	"testing"

	"github.com/flying-pisces/mkd-automation-sub002/internal/domain/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func actionsAt(timestamps ...int64) []*capture.Action {
	actions := make([]*capture.Action, len(timestamps))
	for i, ts := range timestamps {
		actions[i] = &capture.Action{Type: capture.ActionClick, Timestamp: ts}
	}
	return actions
}

func TestComputeTimingUniformGaps(t *testing.T) {
	timing := ComputeTiming(actionsAt(1000, 1100, 1200, 1300))
	require.NotNil(t, timing)

	assert.InDelta(t, 100, timing.MeanGapMs, 0.001)
	assert.InDelta(t, 0, timing.StdDevGapMs, 0.001)
	assert.InDelta(t, 100, timing.P95GapMs, 0.001)
	assert.InDelta(t, 100, timing.MinGapMs, 0.001)
	assert.InDelta(t, 100, timing.MaxGapMs, 0.001)
}

func TestComputeTimingVariedGaps(t *testing.T) {
	// Gaps of 50, 150, 400
	timing := ComputeTiming(actionsAt(0, 50, 200, 600))
	require.NotNil(t, timing)

	assert.InDelta(t, 200, timing.MeanGapMs, 0.001)
	assert.Greater(t, timing.StdDevGapMs, 0.0)
	assert.InDelta(t, 50, timing.MinGapMs, 0.001)
	assert.InDelta(t, 400, timing.MaxGapMs, 0.001)
}

func TestComputeTimingUnsortedTimestamps(t *testing.T) {
	// Out-of-order arrival still yields chronological gaps
	timing := ComputeTiming(actionsAt(1200, 1000, 1100))
	require.NotNil(t, timing)
	assert.InDelta(t, 100, timing.MeanGapMs, 0.001)
}

func TestComputeTimingTooFewActions(t *testing.T) {
	assert.Nil(t, ComputeTiming(nil))
	assert.Nil(t, ComputeTiming(actionsAt(1000)))
}

func TestComputeTimingSingleGap(t *testing.T) {
	timing := ComputeTiming(actionsAt(1000, 1250))
	require.NotNil(t, timing)
	assert.InDelta(t, 250, timing.MeanGapMs, 0.001)
	assert.InDelta(t, 0, timing.StdDevGapMs, 0.001)
}
