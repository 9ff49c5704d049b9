package colorcorrect

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidStyle is returned for an unknown correction style
	ErrInvalidStyle = errors.New("unknown color correction style")

	// ErrInvalidParams is returned when correction parameters are out of range
	ErrInvalidParams = errors.New("invalid color correction parameters")

	// ErrInvalidBuffer is returned when a pixel buffer does not match its dimensions
	ErrInvalidBuffer = errors.New("buffer size does not match dimensions")

	// ErrNilTable is returned when Apply is called without a built table
	ErrNilTable = errors.New("nil color table")
)

// Style selects how a color table is built and applied.
type Style int

const (
	// StyleReal corrects each channel independently through 256-entry curves.
	StyleReal Style = iota

	// StyleGorgeous adds cross-channel and HSV interaction through a
	// combined lookup cube.
	StyleGorgeous
)

// String returns the lowercase style name.
func (s Style) String() string {
	switch s {
	case StyleReal:
		return "real"
	case StyleGorgeous:
		return "gorgeous"
	default:
		return fmt.Sprintf("style(%d)", int(s))
	}
}

// ParseStyle maps a style name to its value. The empty string maps to
// StyleReal, the default style.
func ParseStyle(name string) (Style, error) {
	switch name {
	case "", "real":
		return StyleReal, nil
	case "gorgeous":
		return StyleGorgeous, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStyle, name)
	}
}

// Params are the knobs a slide container ships for color correction:
// a 3x3 color correction matrix, a gamma exponent, per-channel RGB gains
// and HSV gains for the gorgeous style. All values describe the transform
// in RGB channel order.
type Params struct {
	RGBRate [3]float64 `yaml:"rgb_rate"`
	HSVRate [3]float64 `yaml:"hsv_rate"`
	Gamma   float64    `yaml:"gamma"`
	CCM     [9]float64 `yaml:"ccm"` // row-major 3x3
}

// DefaultParams returns the identity parameter set: unity gains, gamma 1,
// identity matrix. A table built from it leaves pixels unchanged.
func DefaultParams() Params {
	return Params{
		RGBRate: [3]float64{1, 1, 1},
		HSVRate: [3]float64{1, 1, 1},
		Gamma:   1,
		CCM:     [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
}

// Matrix returns the CCM as a dense 3x3 matrix.
func (p Params) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, p.CCM[:])
}

// Validate rejects parameter sets no table can be built from.
func (p Params) Validate() error {
	for i, r := range p.RGBRate {
		if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("%w: rgb rate[%d] = %v", ErrInvalidParams, i, r)
		}
	}
	for i, r := range p.HSVRate {
		if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("%w: hsv rate[%d] = %v", ErrInvalidParams, i, r)
		}
	}
	if p.Gamma <= 0 || math.IsNaN(p.Gamma) || math.IsInf(p.Gamma, 0) {
		return fmt.Errorf("%w: gamma = %v", ErrInvalidParams, p.Gamma)
	}
	for i, v := range p.CCM {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: ccm[%d] = %v", ErrInvalidParams, i, v)
		}
	}
	return nil
}

var identity3 = mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})

// Identity reports whether the parameters describe a no-op transform.
func (p Params) Identity() bool {
	if p.Gamma != 1 {
		return false
	}
	for _, r := range p.RGBRate {
		if r != 1 {
			return false
		}
	}
	for _, r := range p.HSVRate {
		if r != 1 {
			return false
		}
	}
	return mat.Equal(p.Matrix(), identity3)
}
