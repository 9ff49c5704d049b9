package slide

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/cocosip/go-wsi/fusion"
	"github.com/cocosip/go-wsi/pyramid"
)

// tileFetch produces the decoded BGRA pixels of one tile, or nil pixels
// when the tile is absent from a sparse archive.
type tileFetch func(tx, ty int) (bgra []byte, width, height int, err error)

// fetchTile fetches and decodes one stored tile. On a sparse archive a
// missing tile yields nil pixels and no error so the caller leaves the
// background in place.
func (s *Slide) fetchTile(ref TileRef) ([]byte, int, int, error) {
	payload, err := s.backend.Tile(ref)
	if err != nil {
		if s.info.Sparse && errors.Is(err, ErrTileNotStored) {
			return nil, 0, 0, nil
		}
		return nil, 0, 0, fmt.Errorf("tile (%d,%d) level %d: %w", ref.X, ref.Y, ref.Level, err)
	}
	return decodePayload(payload)
}

// fetchFusedTile fetches the selected channel tiles at one tile position
// and fuses them. Channels missing from a sparse archive contribute
// nothing; if every channel is missing the tile itself is absent.
func (s *Slide) fetchFusedTile(level, tx, ty, plane int, channels []int, colors []fusion.Color) ([]byte, int, int, error) {
	var (
		bufs   [][]byte
		used   []fusion.Color
		tw, th int
	)
	for k, ch := range channels {
		tile, w, h, err := s.fetchTile(TileRef{Level: level, X: tx, Y: ty, Plane: plane, Channel: ch})
		if err != nil {
			return nil, 0, 0, err
		}
		if tile == nil {
			continue
		}
		if len(bufs) == 0 {
			tw, th = w, h
		} else if w != tw || h != th {
			return nil, 0, 0, fmt.Errorf("channel %d tile is %dx%d, want %dx%d: %w",
				ch, w, h, tw, th, ErrInvalidBuffer)
		}
		bufs = append(bufs, tile)
		used = append(used, colors[k])
	}
	if len(bufs) == 0 {
		return nil, 0, 0, nil
	}
	fused := make([]byte, tw*th*4)
	if err := fusion.Fuse(fused, bufs, used, tw*th); err != nil {
		return nil, 0, 0, err
	}
	return fused, tw, th, nil
}

// composeRegion fills dst with the region at origin (x, y), size wxh, in
// level-local pixels. The origin is already plane-shifted. The region was
// validated to intersect the level's true bounds; uncovered pixels keep
// the zero background. Tiles run on the handle pool; each writes a
// disjoint destination sub-rectangle, so no locking is needed on dst. The
// first hard failure wins while in-flight tiles complete.
func (s *Slide) composeRegion(dst []byte, level int, lv pyramid.Level, x, y, w, h int, fetch tileFetch) error {
	tileW, tileH := s.pyr.TileSize()
	bounds := image.Rect(0, 0, lv.WidthWithoutEdge, lv.HeightWithoutEdge)
	visible := image.Rect(x, y, x+w, y+h).Intersect(bounds)
	if visible.Empty() {
		return fmt.Errorf("region (%d,%d) %dx%d outside level %d bounds %dx%d: %w",
			x, y, w, h, level, lv.WidthWithoutEdge, lv.HeightWithoutEdge, ErrInvalidRegion)
	}
	clear(dst)

	txStart, txEnd := visible.Min.X/tileW, (visible.Max.X-1)/tileW
	tyStart, tyEnd := visible.Min.Y/tileH, (visible.Max.Y-1)/tileH

	var (
		once     sync.Once
		firstErr error
	)
	tasks := make([]func(), 0, (txEnd-txStart+1)*(tyEnd-tyStart+1))
	for ty := tyStart; ty <= tyEnd; ty++ {
		for tx := txStart; tx <= txEnd; tx++ {
			tasks = append(tasks, func() {
				tile, tw, th, err := fetch(tx, ty)
				if err != nil {
					Logger().Debug("tile read failed",
						"level", level, "tile_x", tx, "tile_y", ty, "err", err)
					once.Do(func() { firstErr = err })
					return
				}
				if tile == nil {
					return
				}
				origin := image.Pt(tx*tileW, ty*tileH)
				overlap := image.Rect(origin.X, origin.Y, origin.X+tw, origin.Y+th).Intersect(visible)
				if overlap.Empty() {
					return
				}
				rowLen := overlap.Dx() * 4
				for yy := overlap.Min.Y; yy < overlap.Max.Y; yy++ {
					srcOff := ((yy-origin.Y)*tw + overlap.Min.X - origin.X) * 4
					dstOff := ((yy-y)*w + overlap.Min.X - x) * 4
					copy(dst[dstOff:dstOff+rowLen], tile[srcOff:srcOff+rowLen])
				}
			})
		}
	}
	s.pool.ExecuteAll(tasks)
	return firstErr
}

// composeTile fills dst with the full stored extent of a single tile,
// pad included. Absent sparse tiles leave the zero background; undersized
// payloads fill from the tile origin.
func (s *Slide) composeTile(dst []byte, fetch func() ([]byte, int, int, error)) error {
	tileW, tileH := s.pyr.TileSize()
	clear(dst)
	tile, tw, th, err := fetch()
	if err != nil {
		return err
	}
	if tile == nil {
		return nil
	}
	cw, ch := min(tw, tileW), min(th, tileH)
	for yy := 0; yy < ch; yy++ {
		copy(dst[yy*tileW*4:yy*tileW*4+cw*4], tile[yy*tw*4:yy*tw*4+cw*4])
	}
	return nil
}

// channelColor resolves a channel's display color from its center
// wavelength, falling back to the fixed palette for channels without one.
func (s *Slide) channelColor(i int) fusion.Color {
	return fusion.ChannelColor(s.info.Channels[i].CenterWL, i)
}
