package waterfall

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/roman-kulish/radio-waterfall/internal/spectrum"
)

func TestAggregateColumns(t *testing.T) {
	nan := math.NaN()

	testCases := []struct {
		name       string
		array      spectrum.BinArray
		start, end float64
		width      int
		reduce     Reduce
		want       []float64
	}{
		{
			name:  "two bins per column max",
			array: spectrum.BinArray{1, 4, 2, 3, 9, 0, 5, 6},
			start: 0, end: 8, width: 4,
			want: []float64{4, 3, 9, 6},
		},
		{
			name:  "two bins per column min",
			array: spectrum.BinArray{1, 4, 2, 3, 9, 0, 5, 6},
			start: 0, end: 8, width: 4, reduce: ReduceMin,
			want: []float64{1, 2, 0, 5},
		},
		{
			name:  "sub window",
			array: spectrum.BinArray{1, 4, 2, 3, 9, 0, 5, 6},
			start: 2, end: 6, width: 2,
			want: []float64{3, 9},
		},
		{
			name:  "fewer bins than columns",
			array: spectrum.BinArray{7, 8},
			start: 0, end: 2, width: 4,
			want: []float64{7, 7, 8, 8},
		},
		{
			name:  "window past array end",
			array: spectrum.BinArray{1, 2, 3, 4},
			start: 2, end: 10, width: 8,
			want: []float64{3, 4, nan, nan, nan, nan, nan, nan},
		},
		{
			name:  "nan samples skipped",
			array: spectrum.BinArray{nan, 2, nan, nan, 5, nan},
			start: 0, end: 6, width: 3,
			want: []float64{2, nan, 5},
		},
		{
			name:  "single column covers window",
			array: spectrum.BinArray{-80, -20, -60, -40},
			start: 0, end: 4, width: 1,
			want: []float64{-20},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AggregateColumns(tc.array, tc.start, tc.end, tc.width, tc.reduce)
			if err != nil {
				t.Fatalf("Failed to aggregate: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("Expected %d columns, got %d", len(tc.want), len(got))
			}
			for i := range tc.want {
				if !sameFloat(got[i], tc.want[i]) {
					t.Errorf("Column %d: expected %g, got %g", i, tc.want[i], got[i])
				}
			}
		})
	}
}

func TestAggregateColumns_Invalid(t *testing.T) {
	array := spectrum.BinArray{1, 2, 3}

	testCases := []struct {
		name       string
		array      spectrum.BinArray
		start, end float64
		width      int
	}{
		{"empty array", nil, 0, 3, 2},
		{"zero width", array, 0, 3, 0},
		{"negative width", array, 0, 3, -1},
		{"empty window", array, 2, 2, 2},
		{"inverted window", array, 3, 1, 2},
		{"nan bound", array, math.NaN(), 3, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := AggregateColumns(tc.array, tc.start, tc.end, tc.width, ReduceMax); !errors.Is(err, ErrInvalidRange) {
				t.Errorf("Expected ErrInvalidRange, got %v", err)
			}
		})
	}
}

func TestAggregateColumns_NeverExceedsWindowMax(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 200; round++ {
		n := 1 + rng.Intn(300)
		array := make(spectrum.BinArray, n)
		for i := range array {
			array[i] = -100 + rng.Float64()*90
		}

		lower := rng.Intn(n)
		upper := lower + 1 + rng.Intn(n-lower)
		width := 1 + rng.Intn(120)

		windowMax := math.Inf(-1)
		for _, v := range array[lower:upper] {
			windowMax = math.Max(windowMax, v)
		}

		columns, err := AggregateColumns(array, float64(lower), float64(upper), width, ReduceMax)
		if err != nil {
			t.Fatalf("Round %d: failed to aggregate: %v", round, err)
		}
		for x, v := range columns {
			if v > windowMax {
				t.Fatalf("Round %d column %d: %g exceeds window max %g", round, x, v, windowMax)
			}
		}
	}
}

func TestReduce_String(t *testing.T) {
	if ReduceMax.String() != "max" || ReduceMin.String() != "min" {
		t.Errorf("Unexpected names: %s, %s", ReduceMax, ReduceMin)
	}
	if Reduce(9).String() != "Reduce(9)" {
		t.Errorf("Unexpected name for unknown reduce: %s", Reduce(9))
	}
}

func sameFloat(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) < 1e-9
}
