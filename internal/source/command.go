package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// Runtime is the rtl_power executable looked up in PATH.
	Runtime = "rtl_power"

	BinWidthMin = 1
	BinWidthMax = 2_800_000
)

var (
	validWindowFunctions = map[string]struct{}{
		"rectangle":       {},
		"hamming":         {},
		"blackman":        {},
		"blackman-harris": {},
		"hann-poisson":    {},
		"bartlett":        {},
		"youssef":         {},
		"kaiser":          {},
	}

	validSmoothingMethods = map[string]struct{}{
		"avg": {},
		"iir": {},
	}
)

// Command is the `rtl_power` tool configuration.
// See https://manpages.debian.org/bookworm/rtl-sdr/rtl_power.1.en.html
type Command struct {
	// Required
	FrequencyStart int64 `yaml:"frequencyStart" json:"frequencyStart"` // -f lower Frequency range start (Hz)
	FrequencyEnd   int64 `yaml:"frequencyEnd" json:"frequencyEnd"`     // -f upper Frequency range end (Hz)
	BinWidth       int64 `yaml:"binWidth" json:"binWidth"`             // -f bin_size Bin size in Hz (valid range 1Hz - 2.8MHz)

	Interval    Duration `yaml:"interval" json:"interval"`       // -i integration_interval (default: 10 seconds)
	DeviceIndex int      `yaml:"deviceIndex" json:"deviceIndex"` // -d device_index (default: 0)
	Gain        int      `yaml:"gain" json:"gain"`               // -g tuner_gain (default: automatic)
	PPMError    int      `yaml:"ppmError" json:"ppmError"`       // -p ppm_error (default: 0)

	Smoothing      string  `yaml:"smoothing" json:"smoothing"`           // -s [avg|iir] Smoothing (default: avg)
	WindowFunction string  `yaml:"windowFunction" json:"windowFunction"` // -w window (default: rectangle)
	Crop           float32 `yaml:"crop" json:"crop"`                     // -c crop_percent (default: 0%, recommended: 20%-50%)

	PeakHold bool `yaml:"peakHold" json:"peakHold"` // -P enables peak hold (default: off)
	BiasTee  bool `yaml:"biasTee" json:"biasTee"`   // -T enable bias-tee (default: off)
}

func (c *Command) Validate() error {
	if c.FrequencyStart <= 0 {
		return fmt.Errorf("rtl_power: frequency start must be positive: %d", c.FrequencyStart)
	}
	if c.FrequencyEnd <= c.FrequencyStart {
		return fmt.Errorf("rtl_power: frequency end must be greater than start: %d <= %d", c.FrequencyEnd, c.FrequencyStart)
	}
	if c.BinWidth < BinWidthMin || c.BinWidth > BinWidthMax {
		return fmt.Errorf("rtl_power: invalid bin width: %d, must be between %d and %d Hz", c.BinWidth, BinWidthMin, BinWidthMax)
	}

	if c.Interval < 0 || (c.Interval > 0 && c.Interval.Std() < time.Second) {
		return fmt.Errorf("rtl_power: interval must be at least 1 second: %s given", c.Interval)
	}
	if c.Interval.Std()%time.Second != 0 {
		return fmt.Errorf("rtl_power: interval must be whole seconds: %s given", c.Interval)
	}

	if c.WindowFunction != "" {
		if _, ok := validWindowFunctions[c.WindowFunction]; !ok {
			return fmt.Errorf("rtl_power: invalid window function: %s", c.WindowFunction)
		}
	}
	if c.Smoothing != "" {
		if _, ok := validSmoothingMethods[c.Smoothing]; !ok {
			return fmt.Errorf("rtl_power: invalid smoothing method: %s", c.Smoothing)
		}
	}
	if c.Crop < 0 || c.Crop > 1 {
		return fmt.Errorf("rtl_power: crop percent must be between 0 and 1: %0.2f given", c.Crop)
	}

	return nil
}

// Args returns the command line arguments for `rtl_power`.
func (c *Command) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-f", fmt.Sprintf("%d:%d:%d", c.FrequencyStart, c.FrequencyEnd, c.BinWidth),
	}

	if c.Interval > 0 {
		args = append(args, "-i", c.Interval.String())
	}

	args = append(args, "-d", strconv.Itoa(c.DeviceIndex)) // 0 is the default device index

	if c.Gain > 0 {
		args = append(args, "-g", strconv.Itoa(c.Gain))
	}
	if c.PPMError != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMError))
	}
	if c.Smoothing != "" {
		args = append(args, "-s", c.Smoothing)
	}
	if c.WindowFunction != "" {
		args = append(args, "-w", c.WindowFunction)
	}
	if c.Crop > 0 {
		args = append(args, "-c", strconv.FormatFloat(float64(c.Crop), 'f', 2, 32))
	}
	if c.PeakHold {
		args = append(args, "-P")
	}
	if c.BiasTee {
		args = append(args, "-T")
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

func (c *Command) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("rtl_power: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", Runtime, strings.Join(args, " "))
}

// Start launches rtl_power and returns a reader over its output. The process
// is stopped when ctx is done or the reader is closed. Its stderr is logged
// as warnings.
func (c *Command) Start(ctx context.Context, options ...func(r *PowerReader)) (*PowerReader, error) {
	args, err := c.Args()
	if err != nil {
		return nil, err
	}
	return startProcess(ctx, Runtime, args, options...)
}

// startProcess runs a sweeper binary writing rtl_power compatible CSV to
// stdout and returns a reader over it.
func startProcess(ctx context.Context, runtime string, args []string, options ...func(r *PowerReader)) (*PowerReader, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return nil, fmt.Errorf("finding `%s` in PATH: %w", runtime, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, binPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	p := &process{cmd: cmd, cancel: cancel}
	r := NewPowerReader(stdout, options...)
	r.closer = p

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		handleStderr(stderr, runtime, r.logger)
	}()

	r.logger.Info(fmt.Sprintf("%s started", runtime), slog.String("args", strings.Join(args, " ")))
	return r, nil
}

// process stops a sweeper child when its reader is closed.
type process struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (p *process) Close() error {
	p.cancel()
	p.wg.Wait()

	if err := p.cmd.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && !exitErr.Exited() {
			return nil // killed by cancel
		}
		return fmt.Errorf("command exited with error: %w", err)
	}
	return nil
}

// handleStderr reads from stderr and logs every line.
func handleStderr(stderr io.Reader, runtime string, logger *slog.Logger) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Warn(fmt.Sprintf("%s >> %s", runtime, line))
	}
}
