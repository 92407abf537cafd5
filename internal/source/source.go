package source

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/roman-kulish/radio-waterfall/internal/spectrum"
)

const (
	// DefaultBaselineAlpha is the weight of the newest sweep in the ambient baseline.
	DefaultBaselineAlpha = 0.1

	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5

	// MaxSweepBins caps the bins of one assembled sweep.
	MaxSweepBins = 1 << 22
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrClosed is returned by readers used after Close.
	ErrClosed = errors.New("source closed")
)

// Reader provides an iterator-based interface over scan pairs.
type Reader interface {
	// Next advances the iterator and returns true if there is another scan
	// pair to read, false when the iteration is complete or if an error occurred.
	Next(ctx context.Context) bool

	// Current returns the current scan pair. If called after Next() returns
	// false, the behavior is undefined.
	Current() *spectrum.ScanPair

	// Error returns any error that occurred during iteration. If Next()
	// returns false, Error() should be checked to distinguish between end of
	// data and an error condition.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}

// Baseline tracks an exponential moving average of sweeps. It turns a stream
// of single sweeps into scan pairs: the average so far is the ambient
// (primary) scan and the newest sweep the secondary one.
//
// A Baseline is not safe for concurrent use.
type Baseline struct {
	alpha   float64
	average spectrum.BinArray
}

// NewBaseline creates a baseline where each new sweep contributes alpha of
// the average. Alpha must be within (0, 1].
func NewBaseline(alpha float64) (*Baseline, error) {
	if !(alpha > 0 && alpha <= 1) {
		return nil, fmt.Errorf("invalid baseline alpha: %g, must be within (0, 1]", alpha)
	}
	return &Baseline{alpha: alpha}, nil
}

// Update returns the ambient scan to compare sweep against and then folds
// sweep into the average. The first sweep, and any sweep whose length differs
// from the average, restarts the average and is returned as its own baseline.
// NaN samples never enter the average.
func (b *Baseline) Update(sweep spectrum.BinArray) spectrum.BinArray {
	if len(b.average) != len(sweep) {
		b.average = sweep.Clone()
		return sweep.Clone()
	}

	ambient := b.average.Clone()
	for i, v := range sweep {
		switch {
		case math.IsNaN(v):
		case math.IsNaN(b.average[i]):
			b.average[i] = v
		default:
			b.average[i] += b.alpha * (v - b.average[i])
		}
	}
	return ambient
}

// Reset drops the accumulated average.
func (b *Baseline) Reset() {
	b.average = nil
}
