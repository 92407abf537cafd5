package surface

import (
	"fmt"
	"image"
	"image/color"
	"sync"
)

// Bitmap is an in-memory surface storing pixels in B,G,R(,A) byte order at
// 24 or 32 bits per pixel, or as single gray bytes at 8 bits per pixel.
// It satisfies waterfall.Surface and is safe for concurrent use.
type Bitmap struct {
	width, height int
	depth         int

	mu  sync.RWMutex
	pix []byte
}

// NewBitmap allocates a black bitmap. Width and height must be positive and
// depth one of 8, 24 or 32.
func NewBitmap(width, height, depth int) (*Bitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid bitmap size: %dx%d", width, height)
	}
	if depth != 8 && depth != 24 && depth != 32 {
		return nil, fmt.Errorf("invalid bitmap depth: %d bpp", depth)
	}

	b := &Bitmap{
		width:  width,
		height: height,
		depth:  depth,
		pix:    make([]byte, width*height*depth/8),
	}
	if depth == 32 {
		for i := 3; i < len(b.pix); i += 4 {
			b.pix[i] = 0xff
		}
	}
	return b, nil
}

func (b *Bitmap) Size() (width, height int) {
	return b.width, b.height
}

func (b *Bitmap) Depth() int {
	return b.depth
}

// ReadPixels copies the raw pixel data into dst, which must be exactly as
// long as the bitmap data.
func (b *Bitmap) ReadPixels(dst []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(dst) != len(b.pix) {
		return fmt.Errorf("reading pixels: buffer is %d bytes, bitmap is %d", len(dst), len(b.pix))
	}
	copy(dst, b.pix)
	return nil
}

// WritePixels replaces the raw pixel data with src, which must be exactly as
// long as the bitmap data.
func (b *Bitmap) WritePixels(src []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(src) != len(b.pix) {
		return fmt.Errorf("writing pixels: buffer is %d bytes, bitmap is %d", len(src), len(b.pix))
	}
	copy(b.pix, src)
	return nil
}

// Image returns an RGBA copy of the bitmap suitable for encoding.
func (b *Bitmap) Image() *image.RGBA {
	b.mu.RLock()
	defer b.mu.RUnlock()

	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	stride := b.depth / 8
	for i, o := 0, 0; i < len(b.pix); i, o = i+stride, o+4 {
		var c color.RGBA
		switch b.depth {
		case 32:
			c = color.RGBA{B: b.pix[i], G: b.pix[i+1], R: b.pix[i+2], A: b.pix[i+3]}
		case 24:
			c = color.RGBA{B: b.pix[i], G: b.pix[i+1], R: b.pix[i+2], A: 0xff}
		default:
			c = color.RGBA{R: b.pix[i], G: b.pix[i], B: b.pix[i], A: 0xff}
		}
		img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = c.R, c.G, c.B, c.A
	}
	return img
}
