package waterfall

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roman-kulish/radio-waterfall/internal/spectrum"
)

// Mode selects what a waterfall row encodes.
type Mode int

const (
	ModeOff        Mode = iota // Rendering disabled
	ModeStrength               // Absolute signal strength of the primary scan
	ModeDifference             // Peak-relative difference between the two scans
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeStrength:
		return "strength"
	case ModeDifference:
		return "difference"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a render mode name as returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "off":
		return ModeOff, nil
	case "strength":
		return ModeStrength, nil
	case "difference":
		return ModeDifference, nil
	default:
		return ModeOff, fmt.Errorf("invalid waterfall mode: %s", s)
	}
}

// RangeMode selects where normalization bounds come from.
type RangeMode int

const (
	RangeAuto  RangeMode = iota // Bounds re-estimated from every tick's scans
	RangeFixed                  // Bounds set by the operator
)

func (m RangeMode) String() string {
	switch m {
	case RangeAuto:
		return "auto"
	case RangeFixed:
		return "fixed"
	default:
		return fmt.Sprintf("RangeMode(%d)", int(m))
	}
}

// ParseRangeMode parses a range mode name as returned by RangeMode.String.
func ParseRangeMode(s string) (RangeMode, error) {
	switch strings.ToLower(s) {
	case "auto":
		return RangeAuto, nil
	case "fixed":
		return RangeFixed, nil
	default:
		return RangeAuto, fmt.Errorf("invalid range mode: %s", s)
	}
}

// WithLogger sets the logger for the waterfall
func WithLogger(logger *slog.Logger) func(w *Waterfall) {
	return func(w *Waterfall) {
		w.logger = logger.With(slog.String("component", "waterfall"))
	}
}

// WithPalette sets the color gradient rows are painted with
func WithPalette(p *Palette) func(w *Waterfall) {
	return func(w *Waterfall) {
		w.palette = p
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *Metrics) func(w *Waterfall) {
	return func(w *Waterfall) {
		w.metrics = m
	}
}

// WithRedraw sets the function called after every rendered row. It runs on
// the goroutine that called Refresh, after the surface has been released.
func WithRedraw(fn func()) func(w *Waterfall) {
	return func(w *Waterfall) {
		w.redraw = fn
	}
}

// Waterfall renders one row per scan tick onto a Surface, scrolling older
// rows down.
//
// Only one tick renders at a time. A Refresh call made while another is in
// flight is dropped with ErrTickDropped rather than queued, so a slow surface
// never builds a backlog of stale scans. Settings may be changed from any
// goroutine and take effect on the next tick.
type Waterfall struct {
	surface Surface
	palette *Palette
	metrics *Metrics
	redraw  func()
	logger  *slog.Logger

	tick sync.Mutex // held for the duration of a tick

	mu        sync.RWMutex // guards the fields below
	mode      Mode
	rangeMode RangeMode
	bounds    RangeState
}

// New creates a waterfall in strength mode with automatic ranging.
func New(surface Surface, options ...func(w *Waterfall)) *Waterfall {
	w := Waterfall{
		surface:   surface,
		palette:   DefaultPalette(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		mode:      ModeStrength,
		rangeMode: RangeAuto,
		bounds:    defaultRangeState(),
	}

	for _, option := range options {
		option(&w)
	}

	w.metrics.observeRange(w.bounds)
	return &w
}

// Refresh renders one tick: it optionally re-estimates the range, scrolls the
// surface down by one row and paints the new row from the [lowerIndex,
// upperIndex) window of the scans.
//
// Malformed input (empty scans, inverted windows, mismatched scan lengths in
// difference mode, degenerate ranges) skips the tick and returns nil. Surface
// failures are returned after the surface has been released.
func (w *Waterfall) Refresh(primary, secondary spectrum.BinArray, lowerIndex, upperIndex int) error {
	started := time.Now()

	if !w.tick.TryLock() {
		mode := w.Mode()
		w.metrics.observeTick(mode, OutcomeDropped, started)
		w.logger.Debug("tick dropped, previous tick still rendering", slog.String("mode", mode.String()))
		return ErrTickDropped
	}
	defer w.tick.Unlock()

	mode, rangeMode := w.Mode(), w.RangeMode()
	if mode == ModeOff {
		return nil
	}

	if rangeMode == RangeAuto {
		w.CalculateRanges(primary, secondary)
	}
	bounds := w.Bounds()

	width, err := surfaceWidth(w.surface)
	if err != nil {
		w.metrics.observeTick(mode, OutcomeFailed, started)
		w.logger.Error(err.Error(), slog.String("mode", mode.String()))
		return fmt.Errorf("refreshing waterfall: %w", err)
	}

	row, err := w.renderRow(mode, bounds, primary, secondary, lowerIndex, upperIndex, width)
	if err != nil {
		w.metrics.observeTick(mode, OutcomeSkipped, started)
		w.logger.Debug("tick skipped",
			slog.String("mode", mode.String()),
			slog.String("reason", err.Error()),
			slog.Int("primaryBins", len(primary)),
			slog.Int("secondaryBins", len(secondary)))
		return nil
	}

	err = WithRaster(w.surface, func(r *Raster) error {
		r.Scroll()
		return r.SetRow(0, row)
	})
	if err != nil {
		w.metrics.observeTick(mode, OutcomeFailed, started)
		w.logger.Error(err.Error(), slog.String("mode", mode.String()))
		return fmt.Errorf("refreshing waterfall: %w", err)
	}

	w.metrics.observeTick(mode, OutcomeRendered, started)
	if w.redraw != nil {
		w.redraw()
	}
	return nil
}

// renderRow computes the colors of the newest row.
func (w *Waterfall) renderRow(mode Mode, bounds RangeState, primary, secondary spectrum.BinArray, lowerIndex, upperIndex, width int) ([]color.RGBA, error) {
	var columns []float64
	var normalize func(float64) float64
	var err error

	switch mode {
	case ModeStrength:
		if !(bounds.StrengthSpan() > 0) {
			return nil, fmt.Errorf("%w: strength range [%g, %g]", ErrInvalidRange, bounds.Min, bounds.Max)
		}
		columns, err = AggregateColumns(primary, float64(lowerIndex), float64(upperIndex), width, ReduceMax)
		normalize = bounds.NormalizeStrength

	case ModeDifference:
		if !(bounds.MaxDelta > 0) {
			return nil, fmt.Errorf("%w: delta range %g", ErrInvalidRange, bounds.MaxDelta)
		}
		if len(primary) == 0 || len(primary) != len(secondary) {
			return nil, fmt.Errorf("%w: scan lengths %d and %d", ErrInvalidRange, len(primary), len(secondary))
		}
		columns, err = aggregate(len(primary), float64(lowerIndex), float64(upperIndex), width,
			differenceSampler(primary, secondary), ReduceMax)
		normalize = bounds.NormalizeDelta

	default:
		return nil, fmt.Errorf("%w: mode %s", ErrInvalidRange, mode)
	}
	if err != nil {
		return nil, err
	}

	row := make([]color.RGBA, len(columns))
	for x, v := range columns {
		row[x] = w.palette.Color(normalize(v))
	}
	return row, nil
}

func surfaceWidth(s Surface) (int, error) {
	width, height := s.Size()
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrUnsupportedFormat, width, height)
	}
	if _, err := BytesPerPixel(s.Depth()); err != nil {
		return 0, err
	}
	return width, nil
}

// CalculateRanges re-estimates the normalization bounds for the current
// mode. It does nothing in fixed range mode and reports whether the bounds
// changed.
func (w *Waterfall) CalculateRanges(primary, secondary spectrum.BinArray) bool {
	w.mu.RLock()
	mode, rangeMode, prev := w.mode, w.rangeMode, w.bounds
	w.mu.RUnlock()

	if rangeMode != RangeAuto {
		return false
	}

	next, ok := EstimateRange(prev, primary, secondary, mode)
	if !ok {
		return false
	}

	w.mu.Lock()
	if mode == ModeStrength {
		w.bounds.Min, w.bounds.Max = next.Min, next.Max
	} else {
		w.bounds.MaxDelta = next.MaxDelta
	}
	bounds := w.bounds
	w.mu.Unlock()

	w.metrics.observeRange(bounds)
	return true
}

// Clear paints the whole surface with NoDataColor.
func (w *Waterfall) Clear() error {
	w.tick.Lock()
	defer w.tick.Unlock()

	if err := WithRaster(w.surface, func(r *Raster) error {
		r.Fill(NoDataColor)
		return nil
	}); err != nil {
		return fmt.Errorf("clearing waterfall: %w", err)
	}
	return nil
}

// Surface returns the surface the waterfall draws on.
func (w *Waterfall) Surface() Surface {
	return w.surface
}

// Palette returns the color gradient in use.
func (w *Waterfall) Palette() *Palette {
	return w.palette
}

// Bounds returns a snapshot of the current normalization bounds.
func (w *Waterfall) Bounds() RangeState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.bounds
}

func (w *Waterfall) SetMode(mode Mode) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mode = mode
}

func (w *Waterfall) Mode() Mode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.mode
}

func (w *Waterfall) SetRangeMode(mode RangeMode) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rangeMode = mode
}

func (w *Waterfall) RangeMode() RangeMode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rangeMode
}

func (w *Waterfall) SetStrengthRange(min, max float64) {
	w.updateBounds(func(s *RangeState) { s.Min, s.Max = min, max })
}

func (w *Waterfall) SetStrengthMinimum(min float64) {
	w.updateBounds(func(s *RangeState) { s.Min = min })
}

func (w *Waterfall) SetStrengthMaximum(max float64) {
	w.updateBounds(func(s *RangeState) { s.Max = max })
}

func (w *Waterfall) StrengthMinimum() float64 {
	return w.Bounds().Min
}

func (w *Waterfall) StrengthMaximum() float64 {
	return w.Bounds().Max
}

// SetDeltaRange sets the difference that maps to the strongest color.
func (w *Waterfall) SetDeltaRange(delta float64) {
	w.updateBounds(func(s *RangeState) { s.MaxDelta = delta })
}

func (w *Waterfall) DeltaRange() float64 {
	return w.Bounds().MaxDelta
}

func (w *Waterfall) updateBounds(fn func(s *RangeState)) {
	w.mu.Lock()
	fn(&w.bounds)
	bounds := w.bounds
	w.mu.Unlock()

	w.metrics.observeRange(bounds)
}

// IsSkip reports whether err marks a tick that was skipped or dropped
// rather than failed.
func IsSkip(err error) bool {
	return errors.Is(err, ErrInvalidRange) || errors.Is(err, ErrTickDropped)
}
