package waterfall

import "errors"

var (
	// ErrUnsupportedFormat is returned when a surface has non-positive
	// dimensions or a color depth other than 8, 24 or 32 bits per pixel.
	ErrUnsupportedFormat = errors.New("unsupported surface format")

	// ErrOutOfRange is returned when a pixel coordinate lies outside the raster.
	ErrOutOfRange = errors.New("pixel out of range")

	// ErrInvalidRange is returned for empty or inverted index ranges, mismatched
	// scan lengths and non-positive normalization ranges. Refresh treats it as
	// a skipped tick rather than a failure.
	ErrInvalidRange = errors.New("invalid range")

	// ErrTickDropped is returned by Refresh when another tick is still rendering.
	ErrTickDropped = errors.New("tick dropped: render in progress")
)
