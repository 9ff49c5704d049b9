package slide

import (
	"errors"
	"fmt"

	"github.com/cocosip/go-wsi/fusion"
	"github.com/cocosip/go-wsi/jpegcodec"
)

// SetJPEGQuality sets the encode quality for subsequent JPEG reads.
// Valid range is [0,99]; the effective encode quality clamps to [1,99].
// Not safe to call concurrently with reads.
func (s *Slide) SetJPEGQuality(q int) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if q < 0 || q > 99 {
		return fmt.Errorf("quality %d outside [0,99]: %w", q, ErrInvalidQuality)
	}
	s.quality = q
	return nil
}

// JPEGQuality returns the current encode quality.
func (s *Slide) JPEGQuality() int { return s.quality }

// EncodeBGRA encodes a BGRA buffer as baseline JPEG at the handle
// quality.
func (s *Slide) EncodeBGRA(bgra []byte, w, h int) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return jpegcodec.Encode(bgra, w, h, s.quality)
}

// ReadRegionJPEG composites a BGRA region and encodes it at the handle
// quality. Region semantics match ReadRegionBGRA.
func (s *Slide) ReadRegionJPEG(level, x, y, w, h int) ([]byte, error) {
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("region %dx%d: %w", w, h, ErrInvalidRegion)
	}
	dst := make([]byte, w*h*4)
	if err := s.ReadRegionBGRA(dst, level, x, y, w, h); err != nil {
		return nil, err
	}
	return jpegcodec.Encode(dst, w, h, s.quality)
}

// ReadTileJPEG returns one tile of the reference focal plane as JPEG.
// When the stored tile is already JPEG and no color correction is
// active, the original compressed bytes are returned unmodified and the
// handle quality does not apply; otherwise the tile is decoded,
// processed and re-encoded.
func (s *Slide) ReadTileJPEG(level, tileX, tileY int) ([]byte, error) {
	return s.ReadTileJPEGByPlane(level, tileX, tileY, s.planes.Reference())
}

// ReadTileJPEGByPlane is ReadTileJPEG for one focal plane.
func (s *Slide) ReadTileJPEGByPlane(level, tileX, tileY, plane int) ([]byte, error) {
	if err := s.tileCheck(level, tileX, tileY, plane); err != nil {
		return nil, err
	}
	ref := TileRef{Level: level, X: tileX, Y: tileY, Plane: plane, Channel: CompositeChannel}
	payload, err := s.backend.Tile(ref)
	if err != nil {
		if s.info.Sparse && errors.Is(err, ErrTileNotStored) {
			return s.encodeTilePadded(nil, 0, 0)
		}
		return nil, fmt.Errorf("tile (%d,%d) level %d: %w", tileX, tileY, level, err)
	}
	if payload.Format == FormatJPEG && !s.correcting() {
		return payload.Data, nil
	}
	bgra, tw, th, err := decodePayload(payload)
	if err != nil {
		return nil, err
	}
	return s.encodeTilePadded(bgra, tw, th)
}

// ReadTileJPEGByChannel returns one stored channel tile as JPEG. Stored
// JPEG channel tiles pass through unmodified unless pseudo-coloring
// forces a re-encode.
func (s *Slide) ReadTileJPEGByChannel(level, tileX, tileY, plane, channel int, pseudo bool) ([]byte, error) {
	if _, err := s.channelArgs([]int{channel}); err != nil {
		return nil, err
	}
	if err := s.tileCheck(level, tileX, tileY, plane); err != nil {
		return nil, err
	}
	ref := TileRef{Level: level, X: tileX, Y: tileY, Plane: plane, Channel: channel}
	payload, err := s.backend.Tile(ref)
	if err != nil {
		if s.info.Sparse && errors.Is(err, ErrTileNotStored) {
			return s.encodeTilePadded(nil, 0, 0)
		}
		return nil, fmt.Errorf("tile (%d,%d) level %d channel %d: %w", tileX, tileY, level, channel, err)
	}
	if payload.Format == FormatJPEG && !pseudo {
		return payload.Data, nil
	}
	bgra, tw, th, err := decodePayload(payload)
	if err != nil {
		return nil, err
	}
	if pseudo {
		colored := make([]byte, tw*th*4)
		if err := fusion.Render(colored, bgra, s.channelColor(channel), true, tw*th); err != nil {
			return nil, err
		}
		bgra = colored
	}
	return s.encodeTilePadded(bgra, tw, th)
}

// encodeTilePadded pads decoded pixels to the full tile extent, applies
// any active correction and encodes at the handle quality. Nil pixels
// encode the zero background tile.
func (s *Slide) encodeTilePadded(bgra []byte, tw, th int) ([]byte, error) {
	tileW, tileH := s.pyr.TileSize()
	dst := make([]byte, tileW*tileH*4)
	cw, ch := min(tw, tileW), min(th, tileH)
	for yy := 0; yy < ch; yy++ {
		copy(dst[yy*tileW*4:yy*tileW*4+cw*4], bgra[yy*tw*4:yy*tw*4+cw*4])
	}
	if err := s.correctInPlace(dst, tileW, tileH); err != nil {
		return nil, err
	}
	return jpegcodec.Encode(dst, tileW, tileH, s.quality)
}
