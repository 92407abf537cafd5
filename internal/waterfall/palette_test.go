package waterfall

import (
	"image/color"
	"math"
	"testing"
)

func TestDefaultPalette_Sweep(t *testing.T) {
	p := DefaultPalette()

	if p.Len() != PaletteSize || PaletteSize != 1020 {
		t.Fatalf("Expected %d colors, got %d", 1020, p.Len())
	}

	expected := map[int]color.RGBA{
		0:    {R: 255, G: 0, B: 0, A: 0xff},   // red
		254:  {R: 255, G: 254, B: 0, A: 0xff}, // almost yellow
		255:  {R: 255, G: 255, B: 0, A: 0xff}, // yellow
		510:  {R: 0, G: 255, B: 0, A: 0xff},   // green
		765:  {R: 0, G: 255, B: 255, A: 0xff}, // cyan
		1019: {R: 0, G: 1, B: 255, A: 0xff},   // almost blue
	}
	for i, want := range expected {
		if got := p.At(i); got != want {
			t.Errorf("Color %d: expected %v, got %v", i, want, got)
		}
	}

	seen := make(map[color.RGBA]struct{}, p.Len())
	for i := 0; i < p.Len(); i++ {
		seen[p.At(i)] = struct{}{}
	}
	if len(seen) != p.Len() {
		t.Errorf("Expected %d distinct colors, got %d", p.Len(), len(seen))
	}

	if DefaultPalette() != p {
		t.Error("Expected the default palette to be built once")
	}
}

func TestPalette_Index(t *testing.T) {
	p := DefaultPalette()

	testCases := []struct {
		normalized float64
		want       int
	}{
		{1, 0},
		{0, 1019},
		{0.75, 254}, // (1-0.75)*1019 = 254.75
		{1.5, 0},
		{-3, 1019},
	}

	for _, tc := range testCases {
		if got := p.Index(tc.normalized); got != tc.want {
			t.Errorf("Index(%g): expected %d, got %d", tc.normalized, tc.want, got)
		}
	}

	if got := p.Color(math.NaN()); got != NoDataColor {
		t.Errorf("Expected no-data color for NaN, got %v", got)
	}
	if got := p.At(5000); got != p.At(1019) {
		t.Errorf("Expected At to clamp, got %v", got)
	}
}

func TestNewPalette_Themes(t *testing.T) {
	for _, theme := range []Theme{RainbowTheme, ClassicTheme, GrayscaleTheme, ThermalTheme, MarineTheme} {
		t.Run(string(theme), func(t *testing.T) {
			p, err := NewPalette(theme)
			if err != nil {
				t.Fatalf("Failed to create palette: %v", err)
			}
			if p.Len() != PaletteSize {
				t.Errorf("Expected %d colors, got %d", PaletteSize, p.Len())
			}
			if p.Theme() != theme {
				t.Errorf("Expected theme %s, got %s", theme, p.Theme())
			}
			if !ValidTheme(theme) {
				t.Errorf("Expected %s to be a valid theme", theme)
			}
		})
	}

	gray, _ := NewPalette(GrayscaleTheme)
	if got := gray.At(0); got != (color.RGBA{R: 255, G: 255, B: 255, A: 0xff}) {
		t.Errorf("Expected strongest grayscale color to be white, got %v", got)
	}
	if got := gray.At(PaletteSize - 1); got != (color.RGBA{A: 0xff}) {
		t.Errorf("Expected weakest grayscale color to be black, got %v", got)
	}

	if _, err := NewPalette("sepia"); err == nil {
		t.Error("Expected error for unknown theme")
	}
}
