package source

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/radio-waterfall/internal/spectrum"
)

func TestNewBaseline_Validation(t *testing.T) {
	for _, alpha := range []float64{0, -0.5, 1.5, math.NaN()} {
		if _, err := NewBaseline(alpha); err == nil {
			t.Errorf("Expected error for alpha %g", alpha)
		}
	}
	if _, err := NewBaseline(1); err != nil {
		t.Errorf("Expected alpha 1 to be valid, got %v", err)
	}
}

func TestBaseline_Update(t *testing.T) {
	b, err := NewBaseline(0.5)
	if err != nil {
		t.Fatalf("Failed to create baseline: %v", err)
	}

	steps := []struct {
		sweep spectrum.BinArray
		want  spectrum.BinArray
	}{
		{spectrum.BinArray{2, 4}, spectrum.BinArray{2, 4}},
		{spectrum.BinArray{4, 8}, spectrum.BinArray{2, 4}},
		{spectrum.BinArray{4, 8}, spectrum.BinArray{3, 6}},
		{spectrum.BinArray{1, 2, 3}, spectrum.BinArray{1, 2, 3}}, // length change restarts
	}

	for i, step := range steps {
		if got := b.Update(step.sweep); !equalBins(got, step.want) {
			t.Errorf("Step %d: expected %v, got %v", i, step.want, got)
		}
	}
}

func TestBaseline_NaN(t *testing.T) {
	nan := math.NaN()
	b, _ := NewBaseline(0.5)

	b.Update(spectrum.BinArray{nan, 4})
	b.Update(spectrum.BinArray{6, nan})

	if got := b.Update(spectrum.BinArray{0, 0}); !equalBins(got, spectrum.BinArray{6, 4}) {
		t.Errorf("Expected NaN samples to be filled and skipped, got %v", got)
	}

	b.Reset()
	if got := b.Update(spectrum.BinArray{9, 9}); !equalBins(got, spectrum.BinArray{9, 9}) {
		t.Errorf("Expected reset baseline to restart, got %v", got)
	}
}

func TestBaseline_DoesNotAliasInput(t *testing.T) {
	b, _ := NewBaseline(0.5)
	sweep := spectrum.BinArray{1, 1}

	ambient := b.Update(sweep)
	sweep[0] = 100
	ambient[1] = 100

	if got := b.Update(spectrum.BinArray{1, 1}); !equalBins(got, spectrum.BinArray{1, 1}) {
		t.Errorf("Expected baseline to be unaffected by caller mutations, got %v", got)
	}
}

func TestDemo(t *testing.T) {
	d, err := NewDemo(256, WithDemoSeed(1), WithDemoCount(3), WithDemoBand(100_000_000, 5_000))
	if err != nil {
		t.Fatalf("Failed to create demo source: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	pairs := 0
	for d.Next(ctx) {
		pair := d.Current()
		pairs++

		if len(pair.Primary) != 256 || len(pair.Secondary) != 256 {
			t.Fatalf("Expected 256 bins, got %d and %d", len(pair.Primary), len(pair.Secondary))
		}
		if pair.LowerIndex != 0 || pair.UpperIndex != 256 {
			t.Errorf("Expected full window, got [%d, %d)", pair.LowerIndex, pair.UpperIndex)
		}
		if pair.FrequencyStart != 100_000_000 || pair.BinWidth != 5_000 {
			t.Errorf("Unexpected band: %g, %g", pair.FrequencyStart, pair.BinWidth)
		}
		for i := range pair.Primary {
			if pair.Primary[i] < 0 || pair.Secondary[i] < 0 || math.IsNaN(pair.Primary[i]) {
				t.Fatalf("Bin %d: expected non-negative strengths, got %g and %g", i, pair.Primary[i], pair.Secondary[i])
			}
		}

		var excess float64
		for i := range pair.Primary {
			excess = math.Max(excess, pair.Secondary[i]-pair.Primary[i])
		}
		if excess < 10 {
			t.Errorf("Expected a reradiation bump in the secondary scan, max excess %g", excess)
		}
	}

	if pairs != 3 {
		t.Errorf("Expected 3 pairs, got %d", pairs)
	}
	if err = d.Error(); err != nil {
		t.Errorf("Expected clean end, got %v", err)
	}
}

func TestDemo_Reproducible(t *testing.T) {
	a, _ := NewDemo(64, WithDemoSeed(42))
	b, _ := NewDemo(64, WithDemoSeed(42))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if !a.Next(ctx) || !b.Next(ctx) {
			t.Fatal("Expected unlimited demo sources to keep producing")
		}
		if !equalBins(a.Current().Secondary, b.Current().Secondary) {
			t.Fatalf("Pair %d: expected equal scans for equal seeds", i)
		}
	}
}

func TestDemo_StopsOnContextAndClose(t *testing.T) {
	if _, err := NewDemo(0); err == nil {
		t.Error("Expected error for zero bins")
	}
	if _, err := NewDemo(8, WithDemoInterval(-time.Second)); err == nil {
		t.Error("Expected error for negative interval")
	}

	d, _ := NewDemo(8, WithDemoInterval(time.Hour))
	defer d.Close()
	ctx, cancel := context.WithCancel(context.Background())

	if !d.Next(ctx) {
		t.Fatal("Expected the first pair without waiting")
	}

	cancel()
	if d.Next(ctx) {
		t.Fatal("Expected no pair after cancel")
	}
	if !errors.Is(d.Error(), context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", d.Error())
	}

	d2, _ := NewDemo(8)
	_ = d2.Close()
	if d2.Next(context.Background()) || !errors.Is(d2.Error(), ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", d2.Error())
	}
}

func TestDuration_YAML(t *testing.T) {
	var v struct {
		Interval Duration `yaml:"interval"`
	}

	if err := yaml.Unmarshal([]byte("interval: 15m"), &v); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if v.Interval.Std() != 15*time.Minute {
		t.Errorf("Expected 15m, got %s", v.Interval.Std())
	}

	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if string(out) != "interval: 15m\n" {
		t.Errorf("Unexpected YAML: %q", out)
	}

	if err = yaml.Unmarshal([]byte("interval: soon"), &v); err == nil {
		t.Error("Expected error for invalid duration")
	}
}
