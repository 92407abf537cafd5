package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/roman-kulish/radio-waterfall/internal/snapshot"
	"github.com/roman-kulish/radio-waterfall/internal/source"
	"github.com/roman-kulish/radio-waterfall/internal/spectrum"
	"github.com/roman-kulish/radio-waterfall/internal/surface"
	"github.com/roman-kulish/radio-waterfall/internal/waterfall"
)

// progressRows is the number of rendered rows between progress log lines.
const progressRows = 100

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if config.Metrics.Listen != "" {
		server, err := serveMetrics(config.Metrics.Listen, reg, logger)
		if err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
		defer server.Close()
	}

	bitmap, err := surface.NewBitmap(config.Waterfall.Width, config.Waterfall.Height, config.Waterfall.Depth)
	if err != nil {
		return fmt.Errorf("creating surface: %w", err)
	}

	hist := newHistory(config.Waterfall.Height)
	wf, err := createWaterfall(&config.Waterfall, bitmap, reg, hist, logger)
	if err != nil {
		return fmt.Errorf("creating waterfall: %w", err)
	}

	var snap *snapshotWriter
	if config.Snapshot.Path != "" {
		if snap, err = newSnapshotWriter(config, bitmap, wf, hist, logger); err != nil {
			return fmt.Errorf("creating snapshot writer: %w", err)
		}
	}

	reader, err := openSource(ctx, &config.Source, logger)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer reader.Close()

	logger.Info("waterfall started",
		slog.String("source", config.Source.Type),
		slog.String("mode", wf.Mode().String()),
		slog.String("range", wf.RangeMode().String()),
		slog.String("size", fmt.Sprintf("%dx%d@%dbpp", config.Waterfall.Width, config.Waterfall.Height, config.Waterfall.Depth)))

	err = render(ctx, reader, wf, hist, snap, logger)

	logger.Info("waterfall stopped",
		slog.String("rows", humanize.Comma(int64(hist.rows))),
		slog.Any("bounds", wf.Bounds()))

	return err
}

// render feeds scan pairs from reader to the waterfall until the source is
// exhausted or a tick fails. The final snapshot is written either way.
func render(ctx context.Context, reader source.Reader, wf *waterfall.Waterfall, hist *history, snap *snapshotWriter, logger *slog.Logger) error {
	var renderErr error
	for reader.Next(ctx) {
		pair := reader.Current()

		hist.pending = pair
		err := wf.Refresh(pair.Primary, pair.Secondary, pair.LowerIndex, pair.UpperIndex)
		hist.pending = nil
		if err != nil {
			if waterfall.IsSkip(err) {
				continue
			}
			renderErr = err
			break
		}

		if snap != nil && snap.due() {
			if err = snap.write(); err != nil {
				logger.Error(err.Error(), slog.String("path", snap.path))
			}
		}
	}

	var err error
	if renderErr == nil {
		err = reader.Error()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if err != nil {
			err = fmt.Errorf("reading scans: %w", err)
		}
	}
	err = errors.Join(renderErr, err)

	if snap != nil {
		if sErr := snap.write(); sErr != nil {
			err = errors.Join(err, sErr)
		}
	}
	return err
}

func createWaterfall(config *WaterfallConfig, s waterfall.Surface, reg prometheus.Registerer, hist *history, logger *slog.Logger) (*waterfall.Waterfall, error) {
	palette, err := waterfall.NewPalette(waterfall.Theme(config.Theme))
	if err != nil {
		return nil, err
	}
	mode, err := waterfall.ParseMode(config.Mode)
	if err != nil {
		return nil, err
	}
	rangeMode, err := waterfall.ParseRangeMode(config.RangeMode)
	if err != nil {
		return nil, err
	}

	wf := waterfall.New(s,
		waterfall.WithLogger(logger),
		waterfall.WithPalette(palette),
		waterfall.WithMetrics(waterfall.NewMetrics(reg)),
		waterfall.WithRedraw(func() {
			hist.add()
			if hist.rows%progressRows == 0 {
				logger.Info("rendering", slog.String("rows", humanize.Comma(int64(hist.rows))))
			}
		}))

	wf.SetMode(mode)
	wf.SetRangeMode(rangeMode)
	wf.SetStrengthRange(config.MinStrength, config.MaxStrength)
	wf.SetDeltaRange(config.DeltaRange)

	if err = wf.Clear(); err != nil {
		return nil, err
	}
	return wf, nil
}

func openSource(ctx context.Context, config *SourceConfig, logger *slog.Logger) (source.Reader, error) {
	if config.Type == SourceDemo {
		return source.NewDemo(config.Demo.Bins, demoOptions(&config.Demo, logger)...)
	}

	baseline, err := source.NewBaseline(config.BaselineAlpha)
	if err != nil {
		return nil, err
	}

	options := []func(r *source.PowerReader){
		source.WithLogger(logger),
		source.WithBaseline(baseline),
	}
	if config.Linear {
		options = append(options, source.WithLinearPower())
	}

	switch config.Type {
	case SourceFile:
		if config.File == "-" {
			// Do not close stdin with the reader.
			return source.NewPowerReader(struct{ io.Reader }{os.Stdin}, options...), nil
		}

		f, err := os.Open(config.File)
		if err != nil {
			return nil, fmt.Errorf("opening rtl_power output: %w", err)
		}
		return source.NewPowerReader(f, options...), nil

	case SourceRTLPower:
		return config.RTLPower.Start(ctx, options...)

	case SourceHackRF:
		return config.HackRF.Start(ctx, options...)

	default:
		return nil, fmt.Errorf("unknown source type '%s'", config.Type)
	}
}

func demoOptions(config *DemoConfig, logger *slog.Logger) []func(d *source.Demo) {
	options := []func(d *source.Demo){
		source.WithDemoLogger(logger),
		source.WithDemoInterval(config.Interval.Std()),
		source.WithDemoCount(config.Count),
	}
	if config.Seed != 0 {
		options = append(options, source.WithDemoSeed(config.Seed))
	}
	return options
}

// history remembers when the rows currently on the surface were captured.
// It is only used from the goroutine running the render loop.
type history struct {
	height  int
	rows    int
	times   []time.Time // oldest first, at most height entries
	pending *spectrum.ScanPair
	last    *spectrum.ScanPair
}

func newHistory(height int) *history {
	return &history{height: height, times: make([]time.Time, 0, height)}
}

// add records the pending pair as the newest rendered row.
func (h *history) add() {
	if h.pending == nil {
		return
	}
	if len(h.times) == h.height {
		h.times = append(h.times[:0], h.times[1:]...)
	}
	h.times = append(h.times, h.pending.Timestamp)
	h.last = h.pending
	h.rows++
}

func (h *history) info(wf *waterfall.Waterfall) snapshot.Info {
	info := snapshot.Info{
		Rows:   h.rows,
		Mode:   wf.Mode(),
		Bounds: wf.Bounds(),
	}
	if len(h.times) > 0 {
		info.Oldest = h.times[0]
		info.Newest = h.times[len(h.times)-1]
	}
	if h.last != nil {
		info.FrequencyMin, info.FrequencyMax = h.last.FrequencyRange()
	}
	return info
}

type snapshotWriter struct {
	path     string
	format   snapshot.Format
	interval time.Duration
	written  time.Time

	bitmap   *surface.Bitmap
	wf       *waterfall.Waterfall
	hist     *history
	renderer *snapshot.Renderer
	logger   *slog.Logger
}

func newSnapshotWriter(config *Config, bitmap *surface.Bitmap, wf *waterfall.Waterfall, hist *history, logger *slog.Logger) (*snapshotWriter, error) {
	format, err := config.SnapshotFormat()
	if err != nil {
		return nil, err
	}
	renderer, err := snapshot.NewRenderer(snapshot.Config{})
	if err != nil {
		return nil, err
	}

	return &snapshotWriter{
		path:     config.Snapshot.Path,
		format:   format,
		interval: config.Snapshot.Interval.Std(),
		written:  time.Now(),
		bitmap:   bitmap,
		wf:       wf,
		hist:     hist,
		renderer: renderer,
		logger:   logger,
	}, nil
}

func (s *snapshotWriter) due() bool {
	return s.interval > 0 && time.Since(s.written) >= s.interval
}

func (s *snapshotWriter) write() error {
	img, err := s.renderer.Render(s.bitmap.Image(), s.hist.info(s.wf))
	if err != nil {
		return fmt.Errorf("rendering snapshot: %w", err)
	}
	if err = snapshot.WriteFile(s.path, img, s.format); err != nil {
		return err
	}

	s.written = time.Now()
	s.logger.Info("snapshot written",
		slog.String("path", s.path),
		slog.String("rows", humanize.Comma(int64(s.hist.rows))))
	return nil
}
