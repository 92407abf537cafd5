package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/roman-kulish/radio-waterfall/internal/spectrum"
)

const (
	demoNoiseFloor     = 4.0  // Mean noise level
	demoNoiseSpread    = 1.5  // Noise standard deviation
	demoReradiationMax = 30.0 // Peak height of the reradiation bump
)

// demoCarrier is a steady transmitter present in both scans.
type demoCarrier struct {
	position float64 // Fraction of the band
	width    float64 // Fraction of the band (half-width)
	level    float64
}

var demoCarriers = []demoCarrier{
	{position: 0.12, width: 0.004, level: 42},
	{position: 0.37, width: 0.010, level: 28},
	{position: 0.58, width: 0.002, level: 48},
	{position: 0.81, width: 0.006, level: 35},
}

// WithDemoInterval sets the time between generated pairs
func WithDemoInterval(interval time.Duration) func(d *Demo) {
	return func(d *Demo) {
		d.interval = interval
	}
}

// WithDemoSeed makes the generated noise reproducible
func WithDemoSeed(seed uint64) func(d *Demo) {
	return func(d *Demo) {
		d.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithDemoCount stops the source after count pairs. Zero means unlimited.
func WithDemoCount(count int) func(d *Demo) {
	return func(d *Demo) {
		d.count = count
	}
}

// WithDemoBand sets the frequency of the first bin and the bin width in Hz
func WithDemoBand(frequencyStart, binWidth float64) func(d *Demo) {
	return func(d *Demo) {
		d.frequencyStart = frequencyStart
		d.binWidth = binWidth
	}
}

// WithDemoLogger sets the logger for the demo source
func WithDemoLogger(logger *slog.Logger) func(d *Demo) {
	return func(d *Demo) {
		d.logger = logger.With(slog.String("source", "demo"))
	}
}

// Demo generates synthetic scan pairs: a noisy band with a few steady
// carriers, plus a reradiation bump that only the secondary scan sees. The
// bump drifts across the band and pulses in strength, so difference
// rendering has something to find. Strengths are positive, in dB above
// the zero reference.
type Demo struct {
	bins           int
	interval       time.Duration
	count          int
	frequencyStart float64
	binWidth       float64

	rng    *rand.Rand
	ticker *time.Ticker
	tick   int
	closed bool

	current *spectrum.ScanPair
	err     error
	logger  *slog.Logger
}

// NewDemo creates a demo source producing scans of bins samples.
func NewDemo(bins int, options ...func(d *Demo)) (*Demo, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("invalid demo bin count: %d", bins)
	}

	d := Demo{
		bins:           bins,
		frequencyStart: 433_050_000,
		binWidth:       1_000,
		rng:            rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1)),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&d)
	}

	if d.interval < 0 {
		return nil, fmt.Errorf("invalid demo interval: %s", d.interval)
	}
	if d.interval > 0 {
		d.ticker = time.NewTicker(d.interval)
	}

	return &d, nil
}

func (d *Demo) Next(ctx context.Context) bool {
	if d.err != nil {
		return false
	}
	if d.closed {
		d.err = ErrClosed
		return false
	}
	if d.count > 0 && d.tick >= d.count {
		return false
	}

	if d.ticker != nil && d.tick > 0 {
		select {
		case <-ctx.Done():
			d.err = ctx.Err()
			return false
		case <-d.ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		d.err = err
		return false
	}

	primary, secondary := d.generate()
	d.current = &spectrum.ScanPair{
		Timestamp:      time.Now().UTC(),
		Primary:        primary,
		Secondary:      secondary,
		LowerIndex:     0,
		UpperIndex:     d.bins,
		FrequencyStart: d.frequencyStart,
		BinWidth:       d.binWidth,
	}
	d.tick++

	return true
}

// generate builds one pair for the current tick.
func (d *Demo) generate() (primary, secondary spectrum.BinArray) {
	primary = make(spectrum.BinArray, d.bins)
	secondary = make(spectrum.BinArray, d.bins)

	// The bump travels once across the band every 200 ticks.
	phase := float64(d.tick%200) / 200
	bumpCenter := 0.05 + 0.9*phase
	bumpLevel := demoReradiationMax * (0.6 + 0.4*math.Sin(float64(d.tick)/7))
	bumpWidth := 0.008

	for i := range primary {
		f := float64(i) / float64(max(1, d.bins-1))

		ambient := 0.0
		for _, c := range demoCarriers {
			ambient = math.Max(ambient, c.level*gaussian(f, c.position, c.width))
		}

		primary[i] = math.Max(0, ambient+demoNoiseFloor+d.rng.NormFloat64()*demoNoiseSpread)
		secondary[i] = math.Max(0, ambient+demoNoiseFloor+d.rng.NormFloat64()*demoNoiseSpread+
			bumpLevel*gaussian(f, bumpCenter, bumpWidth))
	}

	return primary, secondary
}

func gaussian(x, center, width float64) float64 {
	d := (x - center) / width
	return math.Exp(-0.5 * d * d)
}

func (d *Demo) Current() *spectrum.ScanPair {
	return d.current
}

func (d *Demo) Error() error {
	return d.err
}

func (d *Demo) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	if d.ticker != nil {
		d.ticker.Stop()
	}
	d.logger.Debug("demo source closed", slog.Int("pairs", d.tick))
	return nil
}
