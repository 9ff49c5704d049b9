package slide

import (
	"fmt"

	"github.com/cocosip/go-wsi/fusion"
	"github.com/cocosip/go-wsi/pyramid"
)

// regionSetup validates a region request and resolves the plane shift.
// The returned origin is in the plane's own pixel space.
func (s *Slide) regionSetup(dst []byte, level, x, y, w, h, plane int) (pyramid.Level, int, int, error) {
	if s.closed.Load() {
		return pyramid.Level{}, 0, 0, ErrClosed
	}
	lv, err := s.pyr.Level(level)
	if err != nil {
		return pyramid.Level{}, 0, 0, err
	}
	if w < 1 || h < 1 {
		return pyramid.Level{}, 0, 0, fmt.Errorf("region %dx%d: %w", w, h, ErrInvalidRegion)
	}
	if len(dst) != w*h*4 {
		return pyramid.Level{}, 0, 0, fmt.Errorf("dst is %d bytes for a %dx%d region: %w",
			len(dst), w, h, ErrInvalidBuffer)
	}
	dx, dy, err := s.planes.Offset(plane, lv.Downsample)
	if err != nil {
		return pyramid.Level{}, 0, 0, err
	}
	return lv, x + dx, y + dy, nil
}

// tileSetup validates exact tile addressing and the destination buffer,
// which must hold one full tile.
func (s *Slide) tileSetup(dst []byte, level, tileX, tileY, plane int) error {
	if err := s.tileCheck(level, tileX, tileY, plane); err != nil {
		return err
	}
	tw, th := s.pyr.TileSize()
	if len(dst) != tw*th*4 {
		return fmt.Errorf("dst is %d bytes for a %dx%d tile: %w", len(dst), tw, th, ErrInvalidBuffer)
	}
	return nil
}

// tileCheck validates tile addressing without a destination buffer.
func (s *Slide) tileCheck(level, tileX, tileY, plane int) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.pyr.TileBounds(level, tileX, tileY); err != nil {
		return err
	}
	if plane < 0 || plane >= s.planes.Count() {
		return fmt.Errorf("plane %d of %d: %w", plane, s.planes.Count(), ErrInvalidPlane)
	}
	return nil
}

// channelArgs validates a channel selection against the slide type and
// resolves each channel's display color.
func (s *Slide) channelArgs(channels []int) ([]fusion.Color, error) {
	if s.info.Type != Fluorescence {
		return nil, ErrBrightfield
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels selected: %w", ErrInvalidChannel)
	}
	colors := make([]fusion.Color, len(channels))
	for k, ch := range channels {
		if ch < 0 || ch >= len(s.info.Channels) {
			return nil, fmt.Errorf("channel %d of %d: %w", ch, len(s.info.Channels), ErrInvalidChannel)
		}
		colors[k] = s.channelColor(ch)
	}
	return colors, nil
}

// ReadRegionBGRA fills dst with the wxh region at origin (x, y) of the
// reference focal plane, in level-local pixels. dst must hold exactly
// w*h*4 bytes; the engine never resizes it. A region entirely outside
// the level's true bounds fails with dst untouched; a partial overlap is
// clipped and uncovered pixels keep the zero background.
func (s *Slide) ReadRegionBGRA(dst []byte, level, x, y, w, h int) error {
	return s.ReadRegionBGRAByPlane(dst, level, x, y, w, h, s.planes.Reference())
}

// ReadRegionBGRAByPlane is ReadRegionBGRA for one focal plane. The origin
// shifts by the plane's offset at the level's downsample before tile
// coverage is computed.
func (s *Slide) ReadRegionBGRAByPlane(dst []byte, level, x, y, w, h, plane int) error {
	lv, sx, sy, err := s.regionSetup(dst, level, x, y, w, h, plane)
	if err != nil {
		return err
	}
	err = s.composeRegion(dst, level, lv, sx, sy, w, h, func(tx, ty int) ([]byte, int, int, error) {
		return s.fetchTile(TileRef{Level: level, X: tx, Y: ty, Plane: plane, Channel: CompositeChannel})
	})
	if err != nil {
		return err
	}
	return s.correctInPlace(dst, w, h)
}

// ReadRegionBGRAByChannel reads one fluorescence channel. With pseudo
// false the grayscale intensity is replicated across B/G/R; with pseudo
// true it is weighted by the channel's pseudo-color.
func (s *Slide) ReadRegionBGRAByChannel(dst []byte, level, x, y, w, h, plane, channel int, pseudo bool) error {
	colors, err := s.channelArgs([]int{channel})
	if err != nil {
		return err
	}
	lv, sx, sy, err := s.regionSetup(dst, level, x, y, w, h, plane)
	if err != nil {
		return err
	}
	color := colors[0]
	return s.composeRegion(dst, level, lv, sx, sy, w, h, func(tx, ty int) ([]byte, int, int, error) {
		tile, tw, th, err := s.fetchTile(TileRef{Level: level, X: tx, Y: ty, Plane: plane, Channel: channel})
		if err != nil || tile == nil {
			return tile, tw, th, err
		}
		if pseudo {
			colored := make([]byte, tw*th*4)
			if err := fusion.Render(colored, tile, color, true, tw*th); err != nil {
				return nil, 0, 0, err
			}
			tile = colored
		}
		return tile, tw, th, nil
	})
}

// ReadRegionBGRAByChannels fuses the selected fluorescence channels into
// a pseudo-color composite. A single-channel selection is served by the
// plain pseudo-color path.
func (s *Slide) ReadRegionBGRAByChannels(dst []byte, level, x, y, w, h, plane int, channels []int) error {
	if len(channels) == 1 {
		return s.ReadRegionBGRAByChannel(dst, level, x, y, w, h, plane, channels[0], true)
	}
	colors, err := s.channelArgs(channels)
	if err != nil {
		return err
	}
	lv, sx, sy, err := s.regionSetup(dst, level, x, y, w, h, plane)
	if err != nil {
		return err
	}
	return s.composeRegion(dst, level, lv, sx, sy, w, h, func(tx, ty int) ([]byte, int, int, error) {
		return s.fetchFusedTile(level, tx, ty, plane, channels, colors)
	})
}

// ReadTileBGRA fills dst with one stored tile of the reference focal
// plane, pad included. dst must hold exactly tileW*tileH*4 bytes. Tile
// addressing is exact: out-of-range indices fail, nothing is clipped.
func (s *Slide) ReadTileBGRA(dst []byte, level, tileX, tileY int) error {
	return s.ReadTileBGRAByPlane(dst, level, tileX, tileY, s.planes.Reference())
}

// ReadTileBGRAByPlane is ReadTileBGRA for one focal plane. No offset
// shift applies; the tile is addressed as stored.
func (s *Slide) ReadTileBGRAByPlane(dst []byte, level, tileX, tileY, plane int) error {
	if err := s.tileSetup(dst, level, tileX, tileY, plane); err != nil {
		return err
	}
	err := s.composeTile(dst, func() ([]byte, int, int, error) {
		return s.fetchTile(TileRef{Level: level, X: tileX, Y: tileY, Plane: plane, Channel: CompositeChannel})
	})
	if err != nil {
		return err
	}
	tw, th := s.pyr.TileSize()
	return s.correctInPlace(dst, tw, th)
}

// ReadTileBGRAByChannel reads one stored channel tile, optionally
// weighted by the channel's pseudo-color.
func (s *Slide) ReadTileBGRAByChannel(dst []byte, level, tileX, tileY, plane, channel int, pseudo bool) error {
	colors, err := s.channelArgs([]int{channel})
	if err != nil {
		return err
	}
	if err := s.tileSetup(dst, level, tileX, tileY, plane); err != nil {
		return err
	}
	color := colors[0]
	return s.composeTile(dst, func() ([]byte, int, int, error) {
		tile, tw, th, err := s.fetchTile(TileRef{Level: level, X: tileX, Y: tileY, Plane: plane, Channel: channel})
		if err != nil || tile == nil {
			return tile, tw, th, err
		}
		if pseudo {
			colored := make([]byte, tw*th*4)
			if err := fusion.Render(colored, tile, color, true, tw*th); err != nil {
				return nil, 0, 0, err
			}
			tile = colored
		}
		return tile, tw, th, nil
	})
}

// ReadTileBGRAByChannels fuses the selected channels of one stored tile.
func (s *Slide) ReadTileBGRAByChannels(dst []byte, level, tileX, tileY, plane int, channels []int) error {
	if len(channels) == 1 {
		return s.ReadTileBGRAByChannel(dst, level, tileX, tileY, plane, channels[0], true)
	}
	colors, err := s.channelArgs(channels)
	if err != nil {
		return err
	}
	if err := s.tileSetup(dst, level, tileX, tileY, plane); err != nil {
		return err
	}
	return s.composeTile(dst, func() ([]byte, int, int, error) {
		return s.fetchFusedTile(level, tileX, tileY, plane, channels, colors)
	})
}
