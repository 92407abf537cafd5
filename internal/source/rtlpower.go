package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/roman-kulish/radio-waterfall/internal/spectrum"
)

const timestampLayout = "2006-01-02 15:04:05"

// Segment is one line of rtl_power output: the bins of a single tuner hop.
type Segment struct {
	Timestamp     time.Time
	FrequencyLow  float64 // Hz low
	FrequencyHigh float64 // Hz high
	BinWidth      float64 // Hz step/bin width
	NumSamples    int     // Number of samples used for this measurement
	Powers        spectrum.BinArray
}

// ParseLine parses a line of rtl_power CSV output, which hackrf_sweep also
// writes with fractional seconds:
//
//	date, time, Hz low, Hz high, Hz step, samples, dB, dB, ...
//
// Power values that cannot be parsed, or are infinite, are kept as NaN so
// the remaining bins stay at their frequencies.
func ParseLine(line string) (*Segment, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 7 {
		return nil, fmt.Errorf("invalid rtl_power output: not enough fields")
	}

	dateTime := strings.TrimSpace(fields[0]) + " " + strings.TrimSpace(fields[1])
	timestamp, err := time.Parse(timestampLayout, dateTime)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}

	freqLow, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid start frequency: %w", err)
	}

	freqHigh, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid end frequency: %w", err)
	}

	if !isFinite(freqLow) || !isFinite(freqHigh) || freqHigh < freqLow {
		return nil, fmt.Errorf("invalid frequency range: %g - %g", freqLow, freqHigh)
	}

	binSize, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid bin size: %w", err)
	}
	if !(binSize > 0) || math.IsInf(binSize, 0) {
		return nil, fmt.Errorf("invalid bin size: %g", binSize)
	}

	numSamples, err := strconv.Atoi(strings.TrimSpace(fields[5]))
	if err != nil {
		return nil, fmt.Errorf("invalid number of samples: %w", err)
	}

	powers := make(spectrum.BinArray, 0, len(fields)-6)
	for _, field := range fields[6:] {
		power, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil || math.IsInf(power, 0) {
			power = math.NaN()
		}
		powers = append(powers, power)
	}

	return &Segment{
		Timestamp:     timestamp.UTC(),
		FrequencyLow:  freqLow,
		FrequencyHigh: freqHigh,
		BinWidth:      binSize,
		NumSamples:    numSamples,
		Powers:        powers,
	}, nil
}

// WithLogger sets the logger for the reader
func WithLogger(logger *slog.Logger) func(r *PowerReader) {
	return func(r *PowerReader) {
		r.logger = logger.With(slog.String("source", "rtl_power"))
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(r *PowerReader) {
	return func(r *PowerReader) {
		r.parseErrorsThreshold = threshold
	}
}

// WithBaseline sets the baseline sweeps are compared against
func WithBaseline(b *Baseline) func(r *PowerReader) {
	return func(r *PowerReader) {
		r.baseline = b
	}
}

// WithLinearPower converts dB readings to linear power before they are
// paired. Peak-relative differences are only meaningful for positive
// strengths, which dB readings below 0 are not.
func WithLinearPower() func(r *PowerReader) {
	return func(r *PowerReader) {
		r.linear = true
	}
}

// PowerReader reads rtl_power CSV output and assembles the tuner hops of
// every sweep into one scan. Each completed sweep becomes the secondary scan
// of a pair whose primary scan is the baseline of the sweeps before it.
//
// A sweep is complete when a hop starts at or below the frequency the
// current sweep started at, or when the input ends.
type PowerReader struct {
	scanner *bufio.Scanner
	closer  io.Closer

	baseline *Baseline
	linear   bool

	pending []*Segment
	current *spectrum.ScanPair
	sweeps  int
	eof     bool
	closed  bool
	err     error

	parseErrors          uint8
	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewPowerReader creates a reader over r. When r is an io.Closer it is
// closed by Close.
func NewPowerReader(r io.Reader, options ...func(r *PowerReader)) *PowerReader {
	baseline, _ := NewBaseline(DefaultBaselineAlpha)

	pr := PowerReader{
		scanner:              bufio.NewScanner(r),
		baseline:             baseline,
		parseErrorsThreshold: ParseErrorsThreshold,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}
	if c, ok := r.(io.Closer); ok {
		pr.closer = c
	}

	// Hops of wide sweeps with small bins easily exceed the default token size.
	pr.scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for _, option := range options {
		option(&pr)
	}

	return &pr
}

// Next reads until the next sweep is complete.
func (r *PowerReader) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	if r.closed {
		r.err = ErrClosed
		return false
	}

	for {
		if err := ctx.Err(); err != nil {
			r.err = err
			return false
		}

		if r.eof {
			if len(r.pending) == 0 {
				return false
			}
			return r.emit(nil)
		}

		if !r.scanner.Scan() {
			r.eof = true
			if err := r.scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
				r.err = fmt.Errorf("reading rtl_power output: %w", err)
				return false
			}
			continue
		}

		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}

		segment, err := ParseLine(line)
		if err != nil {
			r.parseErrors++
			r.logger.Warn(fmt.Sprintf("error parsing sweep: %s", err.Error()), slog.String("line", line))

			if r.parseErrors >= r.parseErrorsThreshold {
				r.err = ErrTooManyParseErrors
				return false
			}
			continue
		}
		r.parseErrors = 0 // reset counter

		if len(r.pending) > 0 && segment.FrequencyLow <= r.pending[0].FrequencyLow {
			return r.emit(segment)
		}
		r.pending = append(r.pending, segment)
	}
}

// emit turns the pending hops into the current pair and starts a new sweep
// with next.
func (r *PowerReader) emit(next *Segment) bool {
	sweep := assembleSweep(r.pending, r.logger)

	r.pending = r.pending[:0]
	if next != nil {
		r.pending = append(r.pending, next)
	}

	if r.linear {
		for i, v := range sweep.bins {
			sweep.bins[i] = math.Pow(10, v/10)
		}
	}

	r.sweeps++
	r.current = &spectrum.ScanPair{
		Timestamp:      sweep.timestamp,
		Primary:        r.baseline.Update(sweep.bins),
		Secondary:      sweep.bins,
		LowerIndex:     0,
		UpperIndex:     len(sweep.bins),
		FrequencyStart: sweep.frequencyLow + sweep.binWidth/2,
		BinWidth:       sweep.binWidth,
	}

	r.logger.Debug("sweep assembled",
		slog.Int("sweep", r.sweeps),
		slog.Int("bins", len(sweep.bins)),
		slog.Time("timestamp", sweep.timestamp))
	return true
}

func (r *PowerReader) Current() *spectrum.ScanPair {
	return r.current
}

func (r *PowerReader) Error() error {
	return r.err
}

// Sweeps returns the number of sweeps read so far.
func (r *PowerReader) Sweeps() int {
	return r.sweeps
}

func (r *PowerReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

type sweep struct {
	timestamp    time.Time
	frequencyLow float64
	binWidth     float64
	bins         spectrum.BinArray
}

// assembleSweep places the hops of one sweep on a common bin grid starting at
// the lowest hop. Bins no hop covers are NaN; where hops overlap the later
// one wins. Hops with a bin width different from the first, or landing past
// MaxSweepBins, are dropped.
func assembleSweep(segments []*Segment, logger *slog.Logger) sweep {
	ordered := slices.Clone(segments)
	slices.SortStableFunc(ordered, func(a, b *Segment) int {
		switch {
		case a.FrequencyLow < b.FrequencyLow:
			return -1
		case a.FrequencyLow > b.FrequencyLow:
			return 1
		default:
			return 0
		}
	})

	first := ordered[0]
	s := sweep{
		timestamp:    first.Timestamp,
		frequencyLow: first.FrequencyLow,
		binWidth:     first.BinWidth,
	}

	size := 0
	offsets := make([]int, len(ordered))
	for i, seg := range ordered {
		if seg.BinWidth != s.binWidth {
			offsets[i] = -1
			continue
		}
		offset := math.Round((seg.FrequencyLow - s.frequencyLow) / s.binWidth)
		if !(offset+float64(len(seg.Powers)) <= MaxSweepBins) {
			offsets[i] = -1
			logger.Warn("hop dropped: too far from sweep start",
				slog.Float64("sweepStart", s.frequencyLow),
				slog.Float64("hopStart", seg.FrequencyLow),
				slog.Float64("binWidth", s.binWidth))
			continue
		}
		offsets[i] = int(offset)
		size = max(size, offsets[i]+len(seg.Powers))

		if seg.Timestamp.After(s.timestamp) {
			s.timestamp = seg.Timestamp
		}
	}

	s.bins = make(spectrum.BinArray, size)
	for i := range s.bins {
		s.bins[i] = math.NaN()
	}
	for i, seg := range ordered {
		if offsets[i] < 0 {
			continue
		}
		copy(s.bins[offsets[i]:], seg.Powers)
	}
	return s
}
