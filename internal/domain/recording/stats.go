package recording

import (
	gomath "math"
	"sort"

	"github.com/flying-pisces/mkd-automation-sub002/internal/domain/capture"
	"gonum.org/v1/gonum/stat"
)

// Timing summarizes the gaps between consecutive actions in milliseconds
type Timing struct {
	MeanGapMs   float64 `json:"meanGapMs"`
	StdDevGapMs float64 `json:"stdDevGapMs"`
	P95GapMs    float64 `json:"p95GapMs"`
	MinGapMs    float64 `json:"minGapMs"`
	MaxGapMs    float64 `json:"maxGapMs"`
}

// ComputeTiming derives gap statistics from action timestamps.
// Returns nil when there are fewer than two actions, since a single
// action has no gaps to measure.
func ComputeTiming(actions []*capture.Action) *Timing {
	if len(actions) < 2 {
		return nil
	}

	timestamps := make([]float64, len(actions))
	for i, action := range actions {
		timestamps[i] = float64(action.Timestamp)
	}
	sort.Float64s(timestamps)

	gaps := make([]float64, 0, len(timestamps)-1)
	for i := 1; i < len(timestamps); i++ {
		gaps = append(gaps, timestamps[i]-timestamps[i-1])
	}
	sort.Float64s(gaps)

	mean := stat.Mean(gaps, nil)
	stddev := 0.0
	if len(gaps) > 1 {
		stddev = gomath.Sqrt(stat.Variance(gaps, nil))
	}

	return &Timing{
		MeanGapMs:   mean,
		StdDevGapMs: stddev,
		P95GapMs:    stat.Quantile(0.95, stat.Empirical, gaps, nil),
		MinGapMs:    gaps[0],
		MaxGapMs:    gaps[len(gaps)-1],
	}
}
