package source

import (
	"strings"
	"testing"
	"time"
)

func TestCommand_Args(t *testing.T) {
	c := Command{
		FrequencyStart: 88_000_000,
		FrequencyEnd:   108_000_000,
		BinWidth:       125_000,
		Interval:       Duration(5 * time.Minute),
		Gain:           30,
		Smoothing:      "iir",
		WindowFunction: "hamming",
		Crop:           0.25,
		PeakHold:       true,
	}

	args, err := c.Args()
	if err != nil {
		t.Fatalf("Failed to build args: %v", err)
	}

	want := "-f 88000000:108000000:125000 -i 5m -d 0 -g 30 -s iir -w hamming -c 0.25 -P -"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if got := c.String(); got != Runtime+" "+want {
		t.Errorf("Unexpected command string: %s", got)
	}
}

func TestCommand_Validate(t *testing.T) {
	valid := func() Command {
		return Command{FrequencyStart: 88_000_000, FrequencyEnd: 108_000_000, BinWidth: 125_000}
	}

	testCases := []struct {
		name   string
		modify func(c *Command)
	}{
		{"zero start", func(c *Command) { c.FrequencyStart = 0 }},
		{"end below start", func(c *Command) { c.FrequencyEnd = 1 }},
		{"bin too narrow", func(c *Command) { c.BinWidth = 0 }},
		{"bin too wide", func(c *Command) { c.BinWidth = BinWidthMax + 1 }},
		{"sub-second interval", func(c *Command) { c.Interval = Duration(500 * time.Millisecond) }},
		{"fractional interval", func(c *Command) { c.Interval = Duration(1500 * time.Millisecond) }},
		{"unknown window", func(c *Command) { c.WindowFunction = "triangle" }},
		{"unknown smoothing", func(c *Command) { c.Smoothing = "median" }},
		{"crop above one", func(c *Command) { c.Crop = 1.5 }},
	}

	c := valid()
	if err := c.Validate(); err != nil {
		t.Fatalf("Expected valid command, got %v", err)
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.modify(&c)
			if err := c.Validate(); err == nil {
				t.Error("Expected validation error")
			}
			if _, err := c.Args(); err == nil {
				t.Error("Expected Args to fail validation")
			}
		})
	}
}

func TestHackRFSweep_Args(t *testing.T) {
	lna, vga := 16, 20
	c := HackRFSweep{
		FrequencyStart: 824_000_000,
		FrequencyEnd:   849_000_000,
		BinWidth:       100_000,
		LNAGain:        &lna,
		VGAGain:        &vga,
		EnableAmp:      true,
	}

	args, err := c.Args()
	if err != nil {
		t.Fatalf("Failed to build args: %v", err)
	}

	want := "-f 824:849 -w 100000 -l 16 -g 20 -a 1"
	if got := strings.Join(args, " "); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if got := c.String(); got != HackRFRuntime+" "+want {
		t.Errorf("Unexpected command string: %s", got)
	}
}

func TestHackRFSweep_Validate(t *testing.T) {
	badLNA, badVGA := 12, 63

	testCases := []struct {
		name   string
		config HackRFSweep
	}{
		{"same MHz", HackRFSweep{FrequencyStart: 100_000_000, FrequencyEnd: 100_500_000}},
		{"LNA step", HackRFSweep{FrequencyStart: 1e8, FrequencyEnd: 2e8, LNAGain: &badLNA}},
		{"VGA range", HackRFSweep{FrequencyStart: 1e8, FrequencyEnd: 2e8, VGAGain: &badVGA}},
		{"samples", HackRFSweep{FrequencyStart: 1e8, FrequencyEnd: 2e8, NumSamples: 1024}},
		{"sweeps", HackRFSweep{FrequencyStart: 1e8, FrequencyEnd: 2e8, NumSweeps: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.config.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestParseLine_HackRFTimestamp(t *testing.T) {
	s, err := ParseLine("2024-01-15, 10:30:00.123456, 2400000000, 2405000000, 1000000.00, 20, -70.1, -68.2, -71.3, -69.4, -72.5")
	if err != nil {
		t.Fatalf("Failed to parse hackrf_sweep line: %v", err)
	}
	if s.Timestamp.Nanosecond() != 123456000 {
		t.Errorf("Expected fractional seconds, got %d ns", s.Timestamp.Nanosecond())
	}
	if len(s.Powers) != 5 {
		t.Errorf("Expected 5 powers, got %d", len(s.Powers))
	}
}
