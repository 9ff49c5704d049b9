package slide

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/cocosip/go-wsi/jpegcodec"
)

// AssociatedImage returns a non-pyramidal companion image (label,
// thumbnail, macrograph) as the container stores it, typically JPEG
// bytes. Archives without the asset return ErrNotExist.
func (s *Slide) AssociatedImage(kind AssociatedImageKind) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.backend.AssociatedImage(kind)
}

// Thumbnail composites the smallest pyramid level covering the requested
// box and scales it to fit, preserving aspect ratio and never upscaling.
// Returns BGRA pixels with their final dimensions.
func (s *Slide) Thumbnail(maxW, maxH int) ([]byte, int, int, error) {
	if s.closed.Load() {
		return nil, 0, 0, ErrClosed
	}
	if maxW < 1 || maxH < 1 {
		return nil, 0, 0, fmt.Errorf("thumbnail box %dx%d: %w", maxW, maxH, ErrInvalidRegion)
	}

	lv0, err := s.pyr.Level(0)
	if err != nil {
		return nil, 0, 0, err
	}
	d := max(float64(lv0.WidthWithoutEdge)/float64(maxW),
		float64(lv0.HeightWithoutEdge)/float64(maxH))
	if d < 1 {
		d = 1
	}
	level := s.pyr.BestLevelForDownsample(d)
	lv, err := s.pyr.Level(level)
	if err != nil {
		return nil, 0, 0, err
	}

	src := make([]byte, lv.WidthWithoutEdge*lv.HeightWithoutEdge*4)
	if err := s.ReadRegionBGRA(src, level, 0, 0, lv.WidthWithoutEdge, lv.HeightWithoutEdge); err != nil {
		return nil, 0, 0, err
	}

	outW, outH := fitBox(lv.WidthWithoutEdge, lv.HeightWithoutEdge, maxW, maxH)
	if outW == lv.WidthWithoutEdge && outH == lv.HeightWithoutEdge {
		return src, outW, outH, nil
	}
	srcImg, err := jpegcodec.ToImage(src, lv.WidthWithoutEdge, lv.HeightWithoutEdge)
	if err != nil {
		return nil, 0, 0, err
	}
	dstImg := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dstImg, dstImg.Bounds(), srcImg, srcImg.Bounds(), draw.Src, nil)
	out, _, _ := jpegcodec.FromImage(dstImg)
	return out, outW, outH, nil
}

// fitBox scales (w, h) to fit inside (maxW, maxH) preserving aspect
// ratio, never upscaling, with a one-pixel floor.
func fitBox(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	outW, outH := int(float64(w)*scale+0.5), int(float64(h)*scale+0.5)
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	return outW, outH
}
