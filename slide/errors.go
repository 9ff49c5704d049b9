package slide

import (
	"errors"

	"github.com/cocosip/go-wsi/pyramid"
)

// Geometry errors are shared with the pyramid package so callers can match
// them with errors.Is no matter which layer reported the problem.
var (
	// ErrInvalidLevel is returned when a level index is out of range
	ErrInvalidLevel = pyramid.ErrInvalidLevel

	// ErrInvalidTile is returned when a tile coordinate is out of range
	ErrInvalidTile = pyramid.ErrInvalidTile

	// ErrInvalidPlane is returned when a focal plane index is out of range
	ErrInvalidPlane = pyramid.ErrInvalidPlane
)

var (
	// ErrClosed is returned when a handle is used after Close
	ErrClosed = errors.New("slide handle is closed")

	// ErrUnknownFormat is returned when no driver claims a container
	ErrUnknownFormat = errors.New("unknown container format")

	// ErrDriverExists is returned when a driver name is registered twice
	ErrDriverExists = errors.New("driver already registered")

	// ErrInvalidRegion is returned when a region does not intersect the level
	ErrInvalidRegion = errors.New("region outside level bounds")

	// ErrInvalidBuffer is returned when a destination buffer does not match
	// the requested dimensions
	ErrInvalidBuffer = errors.New("buffer size does not match region")

	// ErrInvalidChannel is returned when a channel index is out of range
	ErrInvalidChannel = errors.New("channel index out of range")

	// ErrInvalidQuality is returned when a jpeg quality is outside [0,99]
	ErrInvalidQuality = errors.New("jpeg quality outside [0,99]")

	// ErrTileNotStored is returned by sparse backends for tile positions
	// without data; the compositor turns it into background fill
	ErrTileNotStored = errors.New("tile has no stored data")

	// ErrNotExist marks an optional asset that is absent, not broken
	ErrNotExist = errors.New("asset not present")

	// ErrBrightfield is returned when a channel operation is issued on a
	// brightfield slide
	ErrBrightfield = errors.New("operation requires a fluorescence slide")

	// ErrFluorescence is returned when color correction is requested on a
	// fluorescence slide
	ErrFluorescence = errors.New("color correction requires a brightfield slide")

	// ErrUnsupportedPayload is returned for tile payload formats the
	// engine recognizes but cannot decode
	ErrUnsupportedPayload = errors.New("unsupported tile payload format")
)
