package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/radio-waterfall/internal/snapshot"
	"github.com/roman-kulish/radio-waterfall/internal/source"
	"github.com/roman-kulish/radio-waterfall/internal/waterfall"
)

const (
	SourceRTLPower = "rtl_power"
	SourceHackRF   = "hackrf"
	SourceFile     = "file"
	SourceDemo     = "demo"
)

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Source    SourceConfig    `yaml:"source"`
	Waterfall WaterfallConfig `yaml:"waterfall"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// SourceConfig selects where scan pairs come from
type SourceConfig struct {
	Type          string             `yaml:"type"`          // rtl_power, hackrf, file or demo
	BaselineAlpha float64            `yaml:"baselineAlpha"` // Weight of the newest sweep in the ambient baseline
	Linear        bool               `yaml:"linear"`        // Convert dB readings to linear power
	File          string             `yaml:"file"`          // rtl_power CSV file, "-" for stdin
	RTLPower      source.Command     `yaml:"rtlPower"`
	HackRF        source.HackRFSweep `yaml:"hackrf"`
	Demo          DemoConfig         `yaml:"demo"`
}

// DemoConfig configures the synthetic source
type DemoConfig struct {
	Bins     int             `yaml:"bins"`
	Interval source.Duration `yaml:"interval"`
	Count    int             `yaml:"count"` // 0 runs until interrupted
	Seed     uint64          `yaml:"seed"`  // 0 picks a random seed
}

// WaterfallConfig configures the rendering surface and controller
type WaterfallConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	Depth       int     `yaml:"depth"` // Bits per pixel: 8, 24 or 32
	Mode        string  `yaml:"mode"`
	RangeMode   string  `yaml:"rangeMode"`
	MinStrength float64 `yaml:"minStrength"`
	MaxStrength float64 `yaml:"maxStrength"`
	DeltaRange  float64 `yaml:"deltaRange"`
	Theme       string  `yaml:"theme"`
}

// SnapshotConfig configures the image written on exit
type SnapshotConfig struct {
	Path     string          `yaml:"path"`     // Empty disables snapshots
	Format   string          `yaml:"format"`   // Derived from the path when empty
	Interval source.Duration `yaml:"interval"` // Also write while running, 0 only on exit
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Listen string `yaml:"listen"` // Empty disables the endpoint
}

// NewConfig returns a configuration with defaults applied
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Source: SourceConfig{
			Type:          SourceDemo,
			BaselineAlpha: source.DefaultBaselineAlpha,
			File:          "-",
			Demo: DemoConfig{
				Bins:     1024,
				Interval: source.Duration(100 * time.Millisecond),
			},
		},
		Waterfall: WaterfallConfig{
			Width:       1024,
			Height:      512,
			Depth:       32,
			Mode:        waterfall.ModeStrength.String(),
			RangeMode:   waterfall.RangeAuto.String(),
			MinStrength: -50,
			MaxStrength: -10,
			DeltaRange:  1,
			Theme:       string(waterfall.RainbowTheme),
		},
	}
}

// LoadConfig reads the YAML file at path over the defaults
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening configuration file: %w", err)
	}
	defer f.Close()

	return DecodeConfig(f)
}

// DecodeConfig reads YAML configuration over the defaults
func DecodeConfig(r io.Reader) (*Config, error) {
	c := NewConfig()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	return c, nil
}

// NewConfigFromCLI loads the file named by -c, if any, and applies the
// remaining flags on top of it.
func NewConfigFromCLI(args []string) (*Config, error) {
	fs := flag.NewFlagSet("waterfall", flag.ContinueOnError)

	var (
		configPath, sourceType, file, mode, rangeMode, theme, output, listen string
		minStrength, maxStrength                                            float64
	)
	fs.StringVar(&configPath, "c", "", "Path to the configuration file")
	fs.StringVar(&sourceType, "source", "", "Scan source. [rtl_power, hackrf, file, demo]")
	fs.StringVar(&file, "i", "", "rtl_power CSV input file, - for stdin (implies -source file)")
	fs.StringVar(&mode, "mode", "", "Render mode. [off, strength, difference]")
	fs.StringVar(&rangeMode, "range", "", "Range mode. [auto, fixed]")
	fs.StringVar(&theme, "theme", "", "Color theme. [rainbow, classic, grayscale, thermal, marine]")
	fs.Float64Var(&minStrength, "min-strength", 0, "Strength mapped to the weakest color (format nn.n)")
	fs.Float64Var(&maxStrength, "max-strength", 0, "Strength mapped to the strongest color (format nn.n)")
	fs.StringVar(&output, "o", "", "Write a snapshot image to this path on exit")
	fs.StringVar(&listen, "metrics", "", "Serve Prometheus metrics on this address")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c := NewConfig()
	if configPath != "" {
		var err error
		if c, err = LoadConfig(configPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			c.Source.Type = sourceType
		case "i":
			c.Source.Type, c.Source.File = SourceFile, file
		case "mode":
			c.Waterfall.Mode = mode
		case "range":
			c.Waterfall.RangeMode = rangeMode
		case "theme":
			c.Waterfall.Theme = theme
		case "min-strength":
			c.Waterfall.MinStrength = minStrength
		case "max-strength":
			c.Waterfall.MaxStrength = maxStrength
		case "o":
			c.Snapshot.Path = output
		case "metrics":
			c.Metrics.Listen = listen
		}
	})

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level: %s", c.Settings.LogLevel)
	}
	return level, nil
}

func (c *Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return err
	}

	switch c.Source.Type {
	case SourceRTLPower:
		if err := c.Source.RTLPower.Validate(); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	case SourceHackRF:
		if err := c.Source.HackRF.Validate(); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	case SourceFile:
		if c.Source.File == "" {
			return errors.New("source: file path is required")
		}
	case SourceDemo:
		if c.Source.Demo.Bins <= 0 {
			return fmt.Errorf("source: demo bins must be positive: %d", c.Source.Demo.Bins)
		}
		if c.Source.Demo.Interval < 0 || c.Source.Demo.Count < 0 {
			return errors.New("source: demo interval and count must not be negative")
		}
	default:
		return fmt.Errorf("source: unknown type '%s'", c.Source.Type)
	}
	if !(c.Source.BaselineAlpha > 0 && c.Source.BaselineAlpha <= 1) {
		return fmt.Errorf("source: baseline alpha must be within (0, 1]: %g", c.Source.BaselineAlpha)
	}

	w := c.Waterfall
	if w.Width <= 0 || w.Height <= 0 {
		return fmt.Errorf("waterfall: invalid size %dx%d", w.Width, w.Height)
	}
	if _, err := waterfall.BytesPerPixel(w.Depth); err != nil {
		return fmt.Errorf("waterfall: %w", err)
	}
	if _, err := waterfall.ParseMode(w.Mode); err != nil {
		return fmt.Errorf("waterfall: %w", err)
	}
	rangeMode, err := waterfall.ParseRangeMode(w.RangeMode)
	if err != nil {
		return fmt.Errorf("waterfall: %w", err)
	}
	if rangeMode == waterfall.RangeFixed && !(w.MaxStrength > w.MinStrength) {
		return fmt.Errorf("waterfall: max strength must be greater than min: %g <= %g", w.MaxStrength, w.MinStrength)
	}
	if !(w.DeltaRange > 0) {
		return fmt.Errorf("waterfall: delta range must be positive: %g", w.DeltaRange)
	}
	if w.Theme != "" && !waterfall.ValidTheme(waterfall.Theme(w.Theme)) {
		return fmt.Errorf("waterfall: invalid theme: %s", w.Theme)
	}

	if c.Snapshot.Path != "" {
		if _, err = c.SnapshotFormat(); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}
	if c.Snapshot.Interval < 0 {
		return fmt.Errorf("snapshot: interval must not be negative: %s", c.Snapshot.Interval)
	}

	return nil
}

// SnapshotFormat returns the configured snapshot format, falling back to the
// path's extension.
func (c *Config) SnapshotFormat() (snapshot.Format, error) {
	if c.Snapshot.Format != "" {
		return snapshot.ParseFormat(c.Snapshot.Format)
	}
	return snapshot.FormatFromPath(c.Snapshot.Path)
}
