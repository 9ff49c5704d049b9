package fusion

import (
	"errors"
	"fmt"
)

var (
	// ErrNoChannels is returned when a fuse request selects no channels
	ErrNoChannels = errors.New("no channels selected")

	// ErrChannelMismatch is returned when channel and color counts differ
	ErrChannelMismatch = errors.New("channel and color counts differ")

	// ErrInvalidBuffer is returned when a buffer does not match the pixel count
	ErrInvalidBuffer = errors.New("buffer size does not match pixel count")
)

// scale weights one color component by a grayscale intensity, rounding to
// nearest. Fuse and Render share it so fusing a single channel matches the
// dedicated pseudo-color render exactly.
func scale(c uint8, intensity int) int {
	return (int(c)*intensity + 127) / 255
}

// Fuse overlays the selected fluorescence channels into dst.
//
// Every channel buffer holds BGRA pixels with grayscale intensity
// replicated across B/G/R. Per pixel, each channel's pseudo-color is
// weighted by its intensity, the weighted components are summed as
// integers and clamped to 255 once, so the result does not depend on
// channel order. Alpha is fixed opaque.
func Fuse(dst []byte, channels [][]byte, colors []Color, pixels int) error {
	if len(channels) == 0 {
		return ErrNoChannels
	}
	if len(channels) != len(colors) {
		return fmt.Errorf("%w: %d channels, %d colors", ErrChannelMismatch, len(channels), len(colors))
	}
	if pixels < 1 || len(dst) != pixels*4 {
		return fmt.Errorf("%w: dst %d bytes for %d pixels", ErrInvalidBuffer, len(dst), pixels)
	}
	for k, ch := range channels {
		if len(ch) != pixels*4 {
			return fmt.Errorf("%w: channel %d has %d bytes for %d pixels", ErrInvalidBuffer, k, len(ch), pixels)
		}
	}

	for px := 0; px < pixels; px++ {
		i := px * 4
		var b, g, r int
		for k, ch := range channels {
			in := int(ch[i])
			b += scale(colors[k].B, in)
			g += scale(colors[k].G, in)
			r += scale(colors[k].R, in)
		}
		dst[i+0] = clamp255(b)
		dst[i+1] = clamp255(g)
		dst[i+2] = clamp255(r)
		dst[i+3] = 0xFF
	}
	return nil
}

// Render produces single-channel output without fusion. With pseudo false
// the grayscale intensity is replicated across B/G/R; with pseudo true the
// channel's color is weighted by intensity. Alpha is fixed opaque.
func Render(dst, src []byte, color Color, pseudo bool, pixels int) error {
	if pixels < 1 || len(dst) != pixels*4 {
		return fmt.Errorf("%w: dst %d bytes for %d pixels", ErrInvalidBuffer, len(dst), pixels)
	}
	if len(src) != pixels*4 {
		return fmt.Errorf("%w: src %d bytes for %d pixels", ErrInvalidBuffer, len(src), pixels)
	}

	for px := 0; px < pixels; px++ {
		i := px * 4
		in := int(src[i])
		if pseudo {
			dst[i+0] = uint8(scale(color.B, in))
			dst[i+1] = uint8(scale(color.G, in))
			dst[i+2] = uint8(scale(color.R, in))
		} else {
			v := uint8(in)
			dst[i+0] = v
			dst[i+1] = v
			dst[i+2] = v
		}
		dst[i+3] = 0xFF
	}
	return nil
}

func clamp255(v int) uint8 {
	if v > 255 {
		return 255
	}
	return uint8(v)
}
