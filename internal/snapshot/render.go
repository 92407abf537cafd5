package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/radio-waterfall/internal/waterfall"
)

const (
	dpi            = 72.0
	fontSize       = 12.0
	tickMarkHeight = 5
	pixelsPerLabel = 150.0

	// Default border sizes in pixels
	defaultTopBorder    = 30
	defaultLeftBorder   = 70
	defaultBottomBorder = 30
	defaultRightBorder  = 20

	defaultTimeFormat     = "15:04:05"
	defaultDatetimeFormat = time.DateTime
)

// BorderConfig defines the sizes of white space around the waterfall
type BorderConfig struct {
	Top    int // Space for frequency scale
	Left   int // Space for time scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

// Config holds the snapshot layout options
type Config struct {
	TimeFormat     string         // Format string for time labels (e.g. "15:04:05")
	DatetimeFormat string         // Format string for the info bar
	Location       *time.Location // Timezone for time display
	FontSize       float64        // Font size in points
	BorderConfig   BorderConfig
}

// Info describes what a waterfall image shows.
type Info struct {
	FrequencyMin float64   // Frequency at the left edge in Hz
	FrequencyMax float64   // Frequency at the right edge in Hz
	Oldest       time.Time // Time of the bottom-most rendered row
	Newest       time.Time // Time of the top row
	Rows         int       // Rows rendered so far, may exceed the image height
	Mode         waterfall.Mode
	Bounds       waterfall.RangeState
}

// Renderer frames a waterfall image with a frequency scale, a time scale and
// an information bar.
type Renderer struct {
	config Config
	font   *truetype.Font
}

// NewRenderer creates a renderer, filling zero config values with defaults.
func NewRenderer(config Config) (*Renderer, error) {
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	return &Renderer{config: config, font: parsedFont}, nil
}

// Render copies src into a new image surrounded by annotations.
func (r *Renderer) Render(src image.Image, info Info) (*image.RGBA, error) {
	size := src.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("empty waterfall image: %dx%d", size.X, size.Y)
	}

	borders := r.config.BorderConfig
	img := image.NewRGBA(image.Rect(0, 0,
		size.X+borders.Left+borders.Right,
		size.Y+borders.Top+borders.Bottom))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	ann := r.newAnnotator(img, size)
	defer ann.Close()

	if err := ann.annotate(info); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	area := image.Rect(borders.Left, borders.Top, borders.Left+size.X, borders.Top+size.Y)
	draw.Draw(img, area, src, src.Bounds().Min, draw.Src)

	return img, nil
}

type annotator struct {
	img      *image.RGBA
	area     image.Point // waterfall size
	config   Config
	context  *freetype.Context
	fontFace font.Face
}

func (r *Renderer) newAnnotator(img *image.RGBA, area image.Point) *annotator {
	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(r.font)
	ctx.SetFontSize(r.config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	return &annotator{
		img:     img,
		area:    area,
		config:  r.config,
		context: ctx,
		fontFace: truetype.NewFace(r.font, &truetype.Options{
			Size:    r.config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}
}

func (a *annotator) Close() error {
	return a.fontFace.Close()
}

func (a *annotator) annotate(info Info) error {
	if err := a.drawFrequencyScale(info); err != nil {
		return fmt.Errorf("drawing frequency scale: %w", err)
	}
	if err := a.drawTimeScale(info); err != nil {
		return fmt.Errorf("drawing time scale: %w", err)
	}
	if err := a.drawInfoBar(info); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}
	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawFrequencyScale(info Info) error {
	span := info.FrequencyMax - info.FrequencyMin
	if !(span > 0) {
		return nil // nothing to scale
	}

	step := niceFrequencyStep(span, a.area.X)
	textY := a.config.BorderConfig.Top - tickMarkHeight - a.fontHeight()/3

	for freq := math.Ceil(info.FrequencyMin/step) * step; freq <= info.FrequencyMax; freq += step {
		x := a.config.BorderConfig.Left + int((freq-info.FrequencyMin)/span*float64(a.area.X))

		for y := a.config.BorderConfig.Top - tickMarkHeight; y < a.config.BorderConfig.Top; y++ {
			a.img.Set(x, y, color.Black)
		}

		label := formatFrequency(freq)
		width := font.MeasureString(a.fontFace, label).Round()
		if _, err := a.context.DrawString(label, freetype.Pt(x-width/2, textY)); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

// drawTimeScale labels the newest row at the top and the oldest rendered row.
func (a *annotator) drawTimeScale(info Info) error {
	if info.Newest.IsZero() || info.Rows <= 0 {
		return nil
	}

	type timeLabel struct {
		row int
		at  time.Time
	}

	labels := []timeLabel{{0, info.Newest}}
	if last := min(info.Rows, a.area.Y) - 1; last > 0 && !info.Oldest.IsZero() {
		labels = append(labels, timeLabel{last, info.Oldest})
	}

	for _, l := range labels {
		y := a.config.BorderConfig.Top + l.row
		for x := a.config.BorderConfig.Left - tickMarkHeight; x < a.config.BorderConfig.Left; x++ {
			a.img.Set(x, y, color.Black)
		}

		label := l.at.In(a.config.Location).Format(a.config.TimeFormat)
		pt := freetype.Pt(3, y+a.fontHeight()/3)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(info Info) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Freq: %s - %s", formatFrequency(info.FrequencyMin), formatFrequency(info.FrequencyMax)))
	if a.area.X > 0 && info.FrequencyMax > info.FrequencyMin {
		sb.WriteString(fmt.Sprintf("; 1px = %s", formatFrequency((info.FrequencyMax-info.FrequencyMin)/float64(a.area.X))))
	}

	switch info.Mode {
	case waterfall.ModeStrength:
		sb.WriteString(fmt.Sprintf("; Strength %.1f to %.1f", info.Bounds.Min, info.Bounds.Max))
	case waterfall.ModeDifference:
		sb.WriteString(fmt.Sprintf("; Difference 0 to %.0f%%", info.Bounds.MaxDelta))
	}

	if !info.Newest.IsZero() {
		sb.WriteString(fmt.Sprintf("; %s rows, last %s",
			humanize.Comma(int64(info.Rows)),
			info.Newest.In(a.config.Location).Format(a.config.DatetimeFormat)))
	}

	metrics := a.fontFace.Metrics()
	textY := a.img.Bounds().Max.Y - (a.config.BorderConfig.Bottom-a.fontHeight())/2 - metrics.Descent.Round()

	if _, err := a.context.DrawString(sb.String(), freetype.Pt(a.config.BorderConfig.Left, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// niceFrequencyStep picks a 1-2-5 step giving roughly one label per
// pixelsPerLabel pixels.
func niceFrequencyStep(span float64, width int) float64 {
	target := span / math.Max(1, float64(width)/pixelsPerLabel)
	magnitude := math.Pow(10, math.Floor(math.Log10(target)))

	for _, m := range []float64{1, 2, 5, 10} {
		if step := m * magnitude; step >= target {
			return step
		}
	}
	return 10 * magnitude
}

func formatFrequency(hz float64) string {
	value, prefix := humanize.ComputeSI(hz)
	return humanize.FtoaWithDigits(value, 3) + " " + prefix + "Hz"
}
