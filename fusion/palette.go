package fusion

import "math"

// Color is a channel's display pseudo-color in the engine's BGRA component
// order.
type Color struct {
	B, G, R uint8
}

// ColorForWavelength maps a center wavelength in nanometers onto a display
// color using the classic piecewise-linear fit of the visible spectrum,
// with intensity falloff toward both ends. Wavelengths outside [380,780]
// return the zero color; callers should fall back to a fixed palette.
func ColorForWavelength(nm float64) Color {
	var r, g, b float64
	switch {
	case nm >= 380 && nm < 440:
		r = -(nm - 440) / 60
		b = 1
	case nm >= 440 && nm < 490:
		g = (nm - 440) / 50
		b = 1
	case nm >= 490 && nm < 510:
		g = 1
		b = -(nm - 510) / 20
	case nm >= 510 && nm < 580:
		r = (nm - 510) / 70
		g = 1
	case nm >= 580 && nm < 645:
		r = 1
		g = -(nm - 645) / 65
	case nm >= 645 && nm <= 780:
		r = 1
	default:
		return Color{}
	}

	factor := 1.0
	switch {
	case nm < 420:
		factor = 0.3 + 0.7*(nm-380)/40
	case nm > 700:
		factor = 0.3 + 0.7*(780-nm)/80
	}

	return Color{
		B: uint8(math.Round(b * factor * 255)),
		G: uint8(math.Round(g * factor * 255)),
		R: uint8(math.Round(r * factor * 255)),
	}
}

// fallbackPalette covers channels without a usable wavelength; entries are
// chosen to stay distinct when several unnamed channels are overlaid.
var fallbackPalette = []Color{
	{B: 255, G: 64, R: 0},    // blue
	{B: 0, G: 255, R: 0},     // green
	{B: 0, G: 0, R: 255},     // red
	{B: 255, G: 255, R: 0},   // cyan
	{B: 255, G: 0, R: 255},   // magenta
	{B: 0, G: 255, R: 255},   // yellow
	{B: 0, G: 128, R: 255},   // orange
	{B: 255, G: 255, R: 255}, // white
}

// FallbackColor returns a fixed distinct color for channel index i.
func FallbackColor(i int) Color {
	if i < 0 {
		i = -i
	}
	return fallbackPalette[i%len(fallbackPalette)]
}

// ChannelColor picks the display color for a channel: the spectrum color
// of its center wavelength when one is recorded, a fixed palette entry
// otherwise.
func ChannelColor(centerWavelength float64, index int) Color {
	if c := ColorForWavelength(centerWavelength); c != (Color{}) {
		return c
	}
	return FallbackColor(index)
}
