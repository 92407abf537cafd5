package waterfall

import (
	"errors"
	"fmt"
	"image/color"
)

// Surface is the image a waterfall is drawn on. Raw pixel data is laid out
// row by row, top to bottom, with depth/8 bytes per pixel in B,G,R(,A) order
// (or a single gray byte at 8 bits per pixel).
type Surface interface {
	// Size returns the surface dimensions in pixels.
	Size() (width, height int)

	// Depth returns the color depth in bits per pixel.
	Depth() int

	// ReadPixels copies the raw pixel data into dst.
	ReadPixels(dst []byte) error

	// WritePixels replaces the raw pixel data with src.
	WritePixels(src []byte) error
}

// BytesPerPixel returns the pixel stride for a supported color depth.
func BytesPerPixel(depth int) (int, error) {
	switch depth {
	case 8, 24, 32:
		return depth / 8, nil
	default:
		return 0, fmt.Errorf("%w: %d bpp, only 8, 24 and 32 bpp are supported", ErrUnsupportedFormat, depth)
	}
}

// Raster is an owned working copy of a surface's pixels. It is obtained with
// Lock and must be committed back with Unlock; WithRaster does both.
type Raster struct {
	Pix []byte

	surface       Surface
	width, height int
	depth         int
	stride        int // bytes per pixel
	locked        bool
}

// Lock validates the surface format and copies its pixels into a new Raster.
func Lock(s Surface) (*Raster, error) {
	width, height := s.Size()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrUnsupportedFormat, width, height)
	}

	depth := s.Depth()
	stride, err := BytesPerPixel(depth)
	if err != nil {
		return nil, err
	}

	r := &Raster{
		Pix:     make([]byte, width*height*stride),
		surface: s,
		width:   width,
		height:  height,
		depth:   depth,
		stride:  stride,
	}
	if err = s.ReadPixels(r.Pix); err != nil {
		return nil, fmt.Errorf("reading pixels: %w", err)
	}

	r.locked = true
	return r, nil
}

// Unlock commits the working copy back to the surface. Calling Unlock on a
// raster that is not locked is a no-op.
func (r *Raster) Unlock() error {
	if !r.locked {
		return nil
	}
	r.locked = false

	if err := r.surface.WritePixels(r.Pix); err != nil {
		return fmt.Errorf("writing pixels: %w", err)
	}
	return nil
}

// WithRaster locks the surface, runs fn on the working copy and always
// commits it back, including when fn fails or panics.
func WithRaster(s Surface, fn func(r *Raster) error) (err error) {
	r, err := Lock(s)
	if err != nil {
		return err
	}
	defer func() {
		if uErr := r.Unlock(); uErr != nil {
			err = errors.Join(err, uErr)
		}
	}()

	return fn(r)
}

// Locked reports whether the raster still holds the surface lock.
func (r *Raster) Locked() bool {
	return r.locked
}

// Width returns the raster width in pixels.
func (r *Raster) Width() int {
	return r.width
}

// Height returns the raster height in pixels.
func (r *Raster) Height() int {
	return r.height
}

// Depth returns the color depth in bits per pixel.
func (r *Raster) Depth() int {
	return r.depth
}

func (r *Raster) offset(x, y int) (int, error) {
	if x < 0 || y < 0 || x >= r.width || y >= r.height {
		return 0, fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrOutOfRange, x, y, r.width, r.height)
	}

	i := ((y * r.width) + x) * r.stride
	if i > len(r.Pix)-r.stride {
		return 0, fmt.Errorf("%w: offset %d past buffer end", ErrOutOfRange, i)
	}
	return i, nil
}

// Pixel returns the color at (x, y). At 8 bits per pixel the gray value is
// broadcast to all three channels; 24 bits per pixel reads as opaque.
func (r *Raster) Pixel(x, y int) (color.RGBA, error) {
	i, err := r.offset(x, y)
	if err != nil {
		return color.RGBA{}, err
	}

	switch r.depth {
	case 32:
		return color.RGBA{B: r.Pix[i], G: r.Pix[i+1], R: r.Pix[i+2], A: r.Pix[i+3]}, nil
	case 24:
		return color.RGBA{B: r.Pix[i], G: r.Pix[i+1], R: r.Pix[i+2], A: 0xff}, nil
	default:
		c := r.Pix[i]
		return color.RGBA{R: c, G: c, B: c, A: 0xff}, nil
	}
}

// SetPixel writes c at (x, y). At 8 bits per pixel the color's luminance is
// stored, so gray colors round-trip exactly.
func (r *Raster) SetPixel(x, y int, c color.RGBA) error {
	i, err := r.offset(x, y)
	if err != nil {
		return err
	}

	r.put(i, c)
	return nil
}

func (r *Raster) put(i int, c color.RGBA) {
	switch r.depth {
	case 32:
		r.Pix[i], r.Pix[i+1], r.Pix[i+2], r.Pix[i+3] = c.B, c.G, c.R, c.A
	case 24:
		r.Pix[i], r.Pix[i+1], r.Pix[i+2] = c.B, c.G, c.R
	default:
		r.Pix[i] = color.GrayModel.Convert(c).(color.Gray).Y
	}
}

// Scroll moves every row down by one. The bottom row is discarded and the top
// row keeps its previous content until it is overwritten.
func (r *Raster) Scroll() {
	row := r.width * r.stride
	if r.height < 2 {
		return
	}
	copy(r.Pix[row:], r.Pix[:len(r.Pix)-row])
}

// SetRow writes one color per column into row y. Extra colors are ignored.
func (r *Raster) SetRow(y int, colors []color.RGBA) error {
	if _, err := r.offset(0, y); err != nil {
		return err
	}

	n := min(len(colors), r.width)
	for x := 0; x < n; x++ {
		r.put(((y*r.width)+x)*r.stride, colors[x])
	}
	return nil
}

// Fill paints every pixel with c.
func (r *Raster) Fill(c color.RGBA) {
	for i := 0; i+r.stride <= len(r.Pix); i += r.stride {
		r.put(i, c)
	}
}
