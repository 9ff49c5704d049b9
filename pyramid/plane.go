package pyramid

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidPlane is returned when a focal plane index is out of range
	ErrInvalidPlane = errors.New("focal plane index out of range")

	// ErrInvalidDownsample is returned when a downsample factor is not positive
	ErrInvalidDownsample = errors.New("downsample must be positive")
)

// PlaneResolver maps focal plane indices to their pixel offsets.
//
// Plane 0 is the plane farthest from the slide surface; increasing index
// moves toward the surface. Offsets are stored at level-0 scale relative to
// the reference plane, which is the middle plane of the stack.
type PlaneResolver struct {
	count   int
	offsets [][2]int
}

// NewPlaneResolver builds a resolver for count planes with the given
// level-0 offsets. A nil offsets slice means no acquisition drift (all
// zero). The reference plane's own offset must be zero.
func NewPlaneResolver(count int, offsets [][2]int) (*PlaneResolver, error) {
	if count < 1 {
		return nil, fmt.Errorf("plane count %d must be at least 1", count)
	}
	r := &PlaneResolver{count: count, offsets: make([][2]int, count)}
	if offsets != nil {
		if len(offsets) != count {
			return nil, fmt.Errorf("got %d offsets for %d planes", len(offsets), count)
		}
		copy(r.offsets, offsets)
	}
	if ref := r.offsets[count/2]; ref[0] != 0 || ref[1] != 0 {
		return nil, fmt.Errorf("reference plane %d offset must be zero, got (%d,%d)", count/2, ref[0], ref[1])
	}
	return r, nil
}

// Count returns the number of focal planes.
func (r *PlaneResolver) Count() int {
	return r.count
}

// Reference returns the index of the reference plane, the middle of the stack.
func (r *PlaneResolver) Reference() int {
	return r.count / 2
}

// Offset returns the plane's pixel offset at a level with the given
// downsample, rounded to the nearest pixel. Requests for an unknown plane
// or a non-positive downsample fail without side effects.
func (r *PlaneResolver) Offset(plane int, downsample float64) (int, int, error) {
	if plane < 0 || plane >= r.count {
		return 0, 0, ErrInvalidPlane
	}
	if downsample <= 0 {
		return 0, 0, ErrInvalidDownsample
	}
	dx := int(math.Round(float64(r.offsets[plane][0]) / downsample))
	dy := int(math.Round(float64(r.offsets[plane][1]) / downsample))
	return dx, dy, nil
}
