package jpegcodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
)

// DefaultQuality is the engine-wide default JPEG quality.
const DefaultQuality = 75

var (
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	ErrInvalidBuffer     = errors.New("buffer size does not match dimensions")
	ErrEmptyData         = errors.New("empty jpeg data")
)

// ClampQuality limits an encode quality to the valid [1,99] range.
func ClampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 99 {
		return 99
	}
	return q
}

// Encode compresses a BGRA buffer to baseline JPEG.
// The buffer must hold exactly width*height*4 bytes; quality is clamped
// to [1,99]. Alpha is discarded, JPEG carries no alpha channel.
func Encode(bgra []byte, width, height, quality int) ([]byte, error) {
	if width < 1 || height < 1 {
		return nil, ErrInvalidDimensions
	}
	if len(bgra) != width*height*4 {
		return nil, fmt.Errorf("%w: got %d bytes for %dx%d", ErrInvalidBuffer, len(bgra), width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i*4+0] = bgra[i*4+2]
		img.Pix[i*4+1] = bgra[i*4+1]
		img.Pix[i*4+2] = bgra[i*4+0]
		img.Pix[i*4+3] = 0xFF
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: ClampQuality(quality)}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode expands a JPEG stream into a BGRA buffer.
// Grayscale sources replicate intensity across B/G/R; alpha is forced
// opaque. Truncated or invalid streams fail without partial output.
func Decode(data []byte) ([]byte, int, int, error) {
	if len(data) == 0 {
		return nil, 0, 0, ErrEmptyData
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("jpeg decode: %w", err)
	}
	bgra, w, h := FromImage(img)
	return bgra, w, h, nil
}

// FromImage converts any decoded image to a tightly packed BGRA buffer.
func FromImage(img image.Image) ([]byte, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, w*h*4)

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w]
			for x, v := range row {
				i := (y*w + x) * 4
				out[i+0] = v
				out[i+1] = v
				out[i+2] = v
				out[i+3] = 0xFF
			}
		}
	case *image.RGBA:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				s := y*src.Stride + x*4
				i := (y*w + x) * 4
				out[i+0] = src.Pix[s+2]
				out[i+1] = src.Pix[s+1]
				out[i+2] = src.Pix[s+0]
				out[i+3] = 0xFF
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				i := (y*w + x) * 4
				out[i+0] = byte(bl >> 8)
				out[i+1] = byte(g >> 8)
				out[i+2] = byte(r >> 8)
				out[i+3] = 0xFF
			}
		}
	}
	return out, w, h
}

// ToImage wraps a BGRA buffer in an RGBA image for the stdlib drawing and
// scaling machinery. The returned image owns a fresh pixel slice.
func ToImage(bgra []byte, width, height int) (*image.RGBA, error) {
	if width < 1 || height < 1 {
		return nil, ErrInvalidDimensions
	}
	if len(bgra) != width*height*4 {
		return nil, fmt.Errorf("%w: got %d bytes for %dx%d", ErrInvalidBuffer, len(bgra), width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i*4+0] = bgra[i*4+2]
		img.Pix[i*4+1] = bgra[i*4+1]
		img.Pix[i*4+2] = bgra[i*4+0]
		img.Pix[i*4+3] = bgra[i*4+3]
	}
	return img, nil
}
