package spectrum

import (
	"math"
	"time"
)

// BinArray is a single scan: one signal strength sample per frequency bin,
// ordered by frequency. Invalid samples are represented by NaN.
type BinArray []float64

// Valid reports whether the sample at index i exists and is not NaN.
func (b BinArray) Valid(i int) bool {
	return i >= 0 && i < len(b) && !math.IsNaN(b[i])
}

// Clone returns an independent copy of the array.
func (b BinArray) Clone() BinArray {
	if b == nil {
		return nil
	}
	c := make(BinArray, len(b))
	copy(c, b)
	return c
}

// ScanPair represents two synchronized scans captured at the same tick.
// Primary is the ambient (series 1) scan and Secondary the one inspected
// for reradiation (series 2). LowerIndex and UpperIndex describe the
// [lower, upper) bin window currently on display.
type ScanPair struct {
	Timestamp      time.Time `json:"timestamp"`      // When the secondary scan was completed
	Primary        BinArray  `json:"primary"`        // Series 1 bins
	Secondary      BinArray  `json:"secondary"`      // Series 2 bins
	LowerIndex     int       `json:"lowerIndex"`     // First displayed bin
	UpperIndex     int       `json:"upperIndex"`     // One past the last displayed bin
	FrequencyStart float64   `json:"frequencyStart"` // Center frequency of bin 0 in Hz
	BinWidth       float64   `json:"binWidth"`       // Frequency bin width in Hz
}

// Frequency returns the center frequency of bin i in Hz.
func (p *ScanPair) Frequency(i int) float64 {
	return p.FrequencyStart + float64(i)*p.BinWidth
}

// FrequencyRange returns the frequencies covered by the displayed window.
func (p *ScanPair) FrequencyRange() (lo, hi float64) {
	return p.Frequency(p.LowerIndex), p.Frequency(p.UpperIndex)
}
