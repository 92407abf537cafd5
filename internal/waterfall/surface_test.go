package waterfall

import (
	"errors"
	"fmt"
)

var errWriteFailed = errors.New("write failed")

// memSurface is a minimal Surface used by the tests.
type memSurface struct {
	width, height int
	depth         int
	pix           []byte

	reads, writes int
	failWrite     bool
}

func newMemSurface(width, height, depth int) *memSurface {
	n := 0
	if width > 0 && height > 0 && depth > 0 {
		n = width * height * depth / 8
	}
	return &memSurface{width: width, height: height, depth: depth, pix: make([]byte, n)}
}

func (s *memSurface) Size() (int, int) { return s.width, s.height }

func (s *memSurface) Depth() int { return s.depth }

func (s *memSurface) ReadPixels(dst []byte) error {
	s.reads++
	if len(dst) != len(s.pix) {
		return fmt.Errorf("short buffer: %d != %d", len(dst), len(s.pix))
	}
	copy(dst, s.pix)
	return nil
}

func (s *memSurface) WritePixels(src []byte) error {
	s.writes++
	if s.failWrite {
		return errWriteFailed
	}
	copy(s.pix, src)
	return nil
}

func (s *memSurface) snapshot() []byte {
	c := make([]byte, len(s.pix))
	copy(c, s.pix)
	return c
}
