package waterfall

import (
	"fmt"
	"math"

	"github.com/roman-kulish/radio-waterfall/internal/spectrum"
)

// Reduce selects how the samples of one column are combined.
type Reduce int

const (
	ReduceMax Reduce = iota
	ReduceMin
)

func (r Reduce) String() string {
	switch r {
	case ReduceMax:
		return "max"
	case ReduceMin:
		return "min"
	default:
		return fmt.Sprintf("Reduce(%d)", int(r))
	}
}

// AggregateColumns downsamples array[rangeStart:rangeEnd] into width columns.
//
// The range is split into width sub-ranges of (rangeEnd-rangeStart)/width
// bins each. Column x covers the whole indices in
// [floor(index), floor(index+increment)) where index = rangeStart + x*increment,
// reduced with min or max. When a sub-range holds no whole index (fewer bins
// than columns) the column takes the sample at floor(index). Reads are clamped
// to the array, NaN samples are skipped and a column without valid samples is NaN.
func AggregateColumns(array spectrum.BinArray, rangeStart, rangeEnd float64, width int, reduce Reduce) ([]float64, error) {
	if len(array) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrInvalidRange)
	}
	return aggregate(len(array), rangeStart, rangeEnd, width, func(i int) float64 { return array[i] }, reduce)
}

// aggregate implements AggregateColumns over any indexable source of n samples.
func aggregate(n int, rangeStart, rangeEnd float64, width int, sample func(i int) float64, reduce Reduce) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: empty array", ErrInvalidRange)
	}
	if width <= 0 {
		return nil, fmt.Errorf("%w: output width %d", ErrInvalidRange, width)
	}
	if !(rangeStart < rangeEnd) {
		return nil, fmt.Errorf("%w: [%g, %g)", ErrInvalidRange, rangeStart, rangeEnd)
	}

	increment := (rangeEnd - rangeStart) / float64(width)
	columns := make([]float64, width)

	index := rangeStart
	for x := range columns {
		lo := int(math.Floor(index))
		hi := int(math.Floor(index + increment))

		value := math.NaN()
		if hi > lo {
			for j := max(lo, 0); j < min(hi, n); j++ {
				v := sample(j)
				if math.IsNaN(v) {
					continue
				}
				if math.IsNaN(value) || (reduce == ReduceMax && v > value) || (reduce == ReduceMin && v < value) {
					value = v
				}
			}
		} else {
			value = sample(max(0, min(lo, n-1)))
		}

		columns[x] = value
		index += increment
	}

	return columns, nil
}
