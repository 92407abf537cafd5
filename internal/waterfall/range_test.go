package waterfall

import (
	"math"
	"testing"

	"github.com/roman-kulish/radio-waterfall/internal/spectrum"
)

func TestEstimateRange_Strength(t *testing.T) {
	nan := math.NaN()
	prev := defaultRangeState()

	got, ok := EstimateRange(prev, spectrum.BinArray{-70, -30, -55}, nil, ModeStrength)
	if !ok {
		t.Fatal("Expected range to be estimated")
	}
	if got.Min != -70 || got.Max != -30 {
		t.Errorf("Expected [-70, -30], got [%g, %g]", got.Min, got.Max)
	}
	if got.MaxDelta != prev.MaxDelta {
		t.Errorf("Expected delta range to be untouched, got %g", got.MaxDelta)
	}

	got, ok = EstimateRange(prev, spectrum.BinArray{nan, -45, nan, -12}, nil, ModeStrength)
	if !ok || got.Min != -45 || got.Max != -12 {
		t.Errorf("Expected [-45, -12] ignoring NaN, got [%g, %g] ok=%v", got.Min, got.Max, ok)
	}

	for _, array := range []spectrum.BinArray{nil, {nan, nan}} {
		got, ok = EstimateRange(prev, array, nil, ModeStrength)
		if ok || got != prev {
			t.Errorf("Expected %v to leave the range unchanged, got %+v ok=%v", array, got, ok)
		}
	}
}

func TestEstimateRange_Difference(t *testing.T) {
	prev := defaultRangeState()

	got, ok := EstimateRange(prev,
		spectrum.BinArray{1, 5, 3, 8, 2},
		spectrum.BinArray{1, 5, 3, 16, 2},
		ModeDifference)
	if !ok {
		t.Fatal("Expected range to be estimated")
	}
	if !sameFloat(got.MaxDelta, 200) {
		t.Errorf("Expected delta range 200, got %g", got.MaxDelta)
	}
	if got.Min != prev.Min || got.Max != prev.Max {
		t.Errorf("Expected strength range to be untouched, got [%g, %g]", got.Min, got.Max)
	}

	if got, ok = EstimateRange(prev, spectrum.BinArray{1, 2}, spectrum.BinArray{1}, ModeDifference); ok || got != prev {
		t.Errorf("Expected mismatched lengths to leave the range unchanged, got %+v", got)
	}
	if _, ok = EstimateRange(prev, spectrum.BinArray{1}, spectrum.BinArray{1}, ModeOff); ok {
		t.Error("Expected no estimate when rendering is off")
	}
}

func TestRangeState_Normalize(t *testing.T) {
	s := RangeState{Min: -50, Max: -10, MaxDelta: 200}

	testCases := []struct {
		name string
		got  float64
		want float64
	}{
		{"strength midpoint", s.NormalizeStrength(-30), 0.5},
		{"strength scenario", s.NormalizeStrength(-20), 0.75},
		{"strength below", s.NormalizeStrength(-90), 0},
		{"strength above", s.NormalizeStrength(0), 1},
		{"delta", s.NormalizeDelta(50), 0.25},
		{"negative delta", s.NormalizeDelta(-50), 0},
		{"delta above", s.NormalizeDelta(500), 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if !sameFloat(tc.got, tc.want) {
				t.Errorf("Expected %g, got %g", tc.want, tc.got)
			}
		})
	}

	if !math.IsNaN(s.NormalizeStrength(math.NaN())) || !math.IsNaN(s.NormalizeDelta(math.NaN())) {
		t.Error("Expected NaN to pass through normalization")
	}
}
