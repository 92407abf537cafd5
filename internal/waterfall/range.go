package waterfall

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/roman-kulish/radio-waterfall/internal/spectrum"
)

const (
	defaultMinStrength = -50.0
	defaultMaxStrength = -10.0
	defaultDeltaRange  = 1.0
)

// RangeState holds the normalization bounds: Min and Max for strength
// rendering, MaxDelta for difference rendering.
type RangeState struct {
	Min      float64 // Strength mapped to the weakest palette color
	Max      float64 // Strength mapped to the strongest palette color
	MaxDelta float64 // Difference mapped to the strongest palette color
}

func defaultRangeState() RangeState {
	return RangeState{
		Min:      defaultMinStrength,
		Max:      defaultMaxStrength,
		MaxDelta: defaultDeltaRange,
	}
}

// StrengthSpan returns Max - Min.
func (s RangeState) StrengthSpan() float64 {
	return s.Max - s.Min
}

// NormalizeStrength maps a strength onto [0,1]. NaN stays NaN.
func (s RangeState) NormalizeStrength(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return clamp01((v - s.Min) / s.StrengthSpan())
}

// NormalizeDelta maps a strength difference onto [0,1]. NaN stays NaN.
func (s RangeState) NormalizeDelta(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return clamp01(v / s.MaxDelta)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// EstimateRange derives new bounds from a scan pair.
//
// In ModeStrength the primary scan's valid samples set Min and Max. In
// ModeDifference, which requires equally long non-empty scans, MaxDelta becomes
// the largest StrengthDifference over the bins valid in both scans. The
// returned flag is false, and prev is returned unchanged, when nothing could be
// estimated.
func EstimateRange(prev RangeState, primary, secondary spectrum.BinArray, mode Mode) (RangeState, bool) {
	switch mode {
	case ModeStrength:
		lo, hi, ok := strengthBounds(primary)
		if !ok {
			return prev, false
		}
		prev.Min, prev.Max = lo, hi
		return prev, true

	case ModeDifference:
		delta, ok := maxDifference(primary, secondary)
		if !ok {
			return prev, false
		}
		prev.MaxDelta = delta
		return prev, true

	default:
		return prev, false
	}
}

func strengthBounds(array spectrum.BinArray) (lo, hi float64, ok bool) {
	if len(array) == 0 {
		return 0, 0, false
	}
	if !floats.HasNaN(array) {
		return floats.Min(array), floats.Max(array), true
	}

	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range array {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, !math.IsInf(lo, 1)
}

func maxDifference(primary, secondary spectrum.BinArray) (float64, bool) {
	if len(primary) == 0 || len(primary) != len(secondary) {
		return 0, false
	}

	sample := differenceSampler(primary, secondary)
	delta := math.Inf(-1)
	for i := range primary {
		if d := sample(i); !math.IsNaN(d) && d > delta {
			delta = d
		}
	}
	if math.IsInf(delta, -1) {
		return 0, false
	}
	return delta, true
}
