package waterfall

import (
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// Theme names a predefined color gradient. Every theme produces a palette of
// PaletteSize colors ordered from the strongest signal (index 0) to the weakest.
type Theme string

const (
	RainbowTheme   Theme = "rainbow"   // Red to yellow to green to cyan to blue
	ClassicTheme   Theme = "classic"   // Red to blue through the HSV hue circle
	GrayscaleTheme Theme = "grayscale" // White to black
	ThermalTheme   Theme = "thermal"   // White to yellow to red to black
	MarineTheme    Theme = "marine"    // White to cyan to deep blue

	// PaletteSize is the number of colors in a palette: four linear phases of
	// 255 steps each.
	PaletteSize = 4 * phaseSteps

	phaseSteps = 255
)

// NoDataColor is painted for columns without a single valid sample.
var NoDataColor = colornames.Black

var themes = map[Theme]func() []color.RGBA{
	RainbowTheme:   rainbowColors,
	ClassicTheme:   gradientColors(classicGradient),
	GrayscaleTheme: gradientColors(grayscaleGradient),
	ThermalTheme:   gradientColors(thermalGradient),
	MarineTheme:    gradientColors(marineGradient),
}

// DefaultPalette returns the shared rainbow palette. It is built on first use.
var DefaultPalette = sync.OnceValue(func() *Palette {
	return &Palette{theme: RainbowTheme, colors: rainbowColors()}
})

// Palette is an immutable, ordered color gradient. It is safe for concurrent use.
type Palette struct {
	theme  Theme
	colors []color.RGBA
}

// NewPalette builds the palette for the given theme.
func NewPalette(theme Theme) (*Palette, error) {
	if theme == "" || theme == RainbowTheme {
		return DefaultPalette(), nil
	}
	build, ok := themes[theme]
	if !ok {
		return nil, fmt.Errorf("unknown color theme: %s", theme)
	}
	return &Palette{theme: theme, colors: build()}, nil
}

// ValidTheme reports whether a theme name is known.
func ValidTheme(theme Theme) bool {
	_, ok := themes[theme]
	return ok
}

// Theme returns the palette's theme name.
func (p *Palette) Theme() Theme {
	return p.theme
}

// Len returns the number of colors in the palette.
func (p *Palette) Len() int {
	return len(p.colors)
}

// At returns the color at index i, clamped to the palette bounds.
func (p *Palette) At(i int) color.RGBA {
	return p.colors[max(0, min(i, len(p.colors)-1))]
}

// Index maps a normalized value in [0,1] to a palette index. The mapping is
// inverted: 1 (strongest) maps to index 0. Values outside [0,1] are clamped.
func (p *Palette) Index(normalized float64) int {
	n := math.Max(0, math.Min(1, normalized))
	return int((1 - n) * float64(len(p.colors)-1))
}

// Color returns the color for a normalized value, or NoDataColor for NaN.
func (p *Palette) Color(normalized float64) color.RGBA {
	if math.IsNaN(normalized) {
		return NoDataColor
	}
	return p.colors[p.Index(normalized)]
}

// rainbowColors sweeps the RGB cube edges in four phases:
// green rises, red falls, blue rises, green falls.
func rainbowColors() []color.RGBA {
	colors := make([]color.RGBA, 0, PaletteSize)
	for i := 0; i < phaseSteps; i++ {
		colors = append(colors, color.RGBA{R: 255, G: uint8(i), A: 0xff})
	}
	for i := 0; i < phaseSteps; i++ {
		colors = append(colors, color.RGBA{R: uint8(255 - i), G: 255, A: 0xff})
	}
	for i := 0; i < phaseSteps; i++ {
		colors = append(colors, color.RGBA{G: 255, B: uint8(i), A: 0xff})
	}
	for i := 0; i < phaseSteps; i++ {
		colors = append(colors, color.RGBA{G: uint8(255 - i), B: 255, A: 0xff})
	}
	return colors
}

// gradientColors samples a [0,1] -> color function so that index 0 holds
// the color for power 1.
func gradientColors(fn func(power float64) color.RGBA) func() []color.RGBA {
	return func() []color.RGBA {
		colors := make([]color.RGBA, PaletteSize)
		for i := range colors {
			colors[i] = fn(1 - float64(i)/float64(PaletteSize-1))
		}
		return colors
	}
}

func hsv(h, s, v float64) color.RGBA {
	r, g, b := colorful.Hsv(h, s, v).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func classicGradient(power float64) color.RGBA { // Blue -> Red
	return hsv(240-(power*240), 0.9+(power*0.1), math.Pow(power, 0.7))
}

func grayscaleGradient(power float64) color.RGBA { // Black -> White
	v := uint8(math.Pow(power, 0.7) * 255)
	return color.RGBA{R: v, G: v, B: v, A: 0xff}
}

func thermalGradient(power float64) color.RGBA { // Black -> Red -> Yellow -> White
	switch {
	case power < 0.33:
		return color.RGBA{R: uint8(power * 3 * 255), A: 0xff}
	case power < 0.66:
		return color.RGBA{R: 255, G: uint8((power - 0.33) * 3 * 255), A: 0xff}
	default:
		return color.RGBA{R: 255, G: 255, B: uint8(math.Min(1, (power-0.66)*3) * 255), A: 0xff}
	}
}

func marineGradient(power float64) color.RGBA { // Deep Blue -> Cyan -> White
	return hsv(240-(power*60), 1.0-(power*0.8), 0.3+(math.Pow(power, 0.6)*0.7))
}
