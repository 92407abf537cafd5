package waterfall

import (
	"math"

	"github.com/roman-kulish/radio-waterfall/internal/spectrum"
)

// IsPeak reports whether array[i] is a local strict maximum. Boundary samples
// only have one neighbor to exceed and a single-sample array is its own peak.
// NaN samples are never peaks and NaN neighbors are ignored.
func IsPeak(array spectrum.BinArray, i int) bool {
	if !array.Valid(i) {
		return false
	}

	v := array[i]
	if array.Valid(i-1) && array[i-1] >= v {
		return false
	}
	if array.Valid(i+1) && array[i+1] >= v {
		return false
	}
	return true
}

// NearestPeak returns the index of the peak closest to index. At equal
// distance the lower index wins. ok is false when the array has no strict peak.
func NearestPeak(array spectrum.BinArray, index int) (peak int, ok bool) {
	if index < 0 || index >= len(array) {
		return 0, false
	}

	for d := 0; index-d >= 0 || index+d < len(array); d++ {
		if IsPeak(array, index-d) {
			return index - d, true
		}
		if d > 0 && IsPeak(array, index+d) {
			return index + d, true
		}
	}
	return 0, false
}

// NearestPeakStrength returns the strength of the peak closest to index.
// Arrays without a strict peak (flat or plateau-shaped) fall back to their
// maximum valid sample; an all-NaN array or an out-of-range index yields 0.
func NearestPeakStrength(array spectrum.BinArray, index int) float64 {
	if index < 0 || index >= len(array) {
		return 0
	}
	if peak, ok := NearestPeak(array, index); ok {
		return array[peak]
	}

	strength := math.Inf(-1)
	for _, v := range array {
		if !math.IsNaN(v) && v > strength {
			strength = v
		}
	}
	if math.IsInf(strength, -1) {
		return 0
	}
	return strength
}

// StrengthDifference expresses secondary[index] as a percentage of the
// strength of the primary peak nearest to index. It returns 0 when that peak
// is not positive, when index is outside either array or when
// secondary[index] is NaN. Negative secondary samples yield negative results.
func StrengthDifference(primary, secondary spectrum.BinArray, index int) float64 {
	if !secondary.Valid(index) || index >= len(primary) {
		return 0
	}

	peak := NearestPeakStrength(primary, index)
	if peak <= 0 {
		return 0
	}
	return secondary[index] / peak * 100
}

// StrengthRatio returns secondary[index] / primary[index], or 0 when the
// primary sample is zero, NaN or out of range.
func StrengthRatio(primary, secondary spectrum.BinArray, index int) float64 {
	if !primary.Valid(index) || !secondary.Valid(index) || primary[index] == 0 {
		return 0
	}
	return secondary[index] / primary[index]
}

// StrengthDelta returns secondary[index] - primary[index], or 0 when the
// primary sample is zero, NaN or out of range.
func StrengthDelta(primary, secondary spectrum.BinArray, index int) float64 {
	if !primary.Valid(index) || !secondary.Valid(index) || primary[index] == 0 {
		return 0
	}
	return secondary[index] - primary[index]
}

// SurroundNoiseFloor averages width samples centered on index. Windows that
// would cross an array boundary are shifted inwards, and windows wider than
// the array cover all of it. NaN samples are excluded from the mean.
func SurroundNoiseFloor(array spectrum.BinArray, index, width int) float64 {
	if len(array) == 0 || width <= 0 {
		return 0
	}
	width = min(width, len(array))

	start := index - width/2
	start = max(0, min(start, len(array)-width))

	var total float64
	var count int
	for _, v := range array[start : start+width] {
		if math.IsNaN(v) {
			continue
		}
		total += v
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// peakStrengths returns NearestPeakStrength for every index of array in
// linear time.
func peakStrengths(array spectrum.BinArray) []float64 {
	strengths := make([]float64, len(array))
	if len(array) == 0 {
		return strengths
	}

	left := make([]int, len(array)) // nearest peak at or below i, -1 if none
	last := -1
	for i := range array {
		if IsPeak(array, i) {
			last = i
		}
		left[i] = last
	}

	next := -1
	fallback := math.NaN()
	for i := len(array) - 1; i >= 0; i-- {
		if IsPeak(array, i) {
			next = i
		}

		peak := left[i]
		if next >= 0 && (peak < 0 || next-i < i-peak) {
			peak = next
		}

		if peak >= 0 {
			strengths[i] = array[peak]
			continue
		}
		if math.IsNaN(fallback) {
			fallback = NearestPeakStrength(array, i)
		}
		strengths[i] = fallback
	}
	return strengths
}

// differenceSampler adapts StrengthDifference to the column aggregator,
// reporting NaN for bins where either scan is invalid.
func differenceSampler(primary, secondary spectrum.BinArray) func(i int) float64 {
	peaks := peakStrengths(primary)
	return func(i int) float64 {
		if !primary.Valid(i) || !secondary.Valid(i) {
			return math.NaN()
		}
		if peaks[i] <= 0 {
			return 0
		}
		return secondary[i] / peaks[i] * 100
	}
}
