package pyramid

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrInvalidLevel is returned when a level index is out of range
	ErrInvalidLevel = errors.New("level index out of range")

	// ErrInvalidTile is returned when a tile coordinate is out of range
	ErrInvalidTile = errors.New("tile index out of range")
)

// Level describes the geometry of one pyramid level.
//
// Width and Height are the stored (tile-padded) extents; WidthWithoutEdge
// and HeightWithoutEdge are the true pixel extents. The padding lives inside
// the rightmost column and bottommost row of tiles.
type Level struct {
	Width             int     // stored width, TileCountX * tile width
	Height            int     // stored height, TileCountY * tile height
	WidthWithoutEdge  int     // true pixel width
	HeightWithoutEdge int     // true pixel height
	TileCountX        int     // tiles per row
	TileCountY        int     // tiles per column
	RightPad          int     // padding inside the rightmost tile column
	BottomPad         int     // padding inside the bottommost tile row
	Downsample        float64 // scale factor relative to level 0
}

// Index holds the immutable per-level geometry of a slide pyramid.
// Level 0 is full resolution; increasing index means more downsampled.
type Index struct {
	tileWidth  int
	tileHeight int
	levels     []Level
}

// NewIndex validates the level set and builds an index over it.
//
// Every level must satisfy TileCountX*tileWidth - RightPad == WidthWithoutEdge
// (and the height analogue), pads must be smaller than the tile size, and
// downsample factors must be positive and non-decreasing with level index.
func NewIndex(tileWidth, tileHeight int, levels []Level) (*Index, error) {
	if tileWidth < 1 || tileHeight < 1 {
		return nil, fmt.Errorf("tile size %dx%d must be at least 1x1", tileWidth, tileHeight)
	}
	if len(levels) == 0 {
		return nil, errors.New("pyramid needs at least one level")
	}
	for i, lv := range levels {
		if lv.TileCountX < 1 || lv.TileCountY < 1 {
			return nil, fmt.Errorf("level %d: tile counts %dx%d must be at least 1x1", i, lv.TileCountX, lv.TileCountY)
		}
		if lv.RightPad < 0 || lv.RightPad >= tileWidth || lv.BottomPad < 0 || lv.BottomPad >= tileHeight {
			return nil, fmt.Errorf("level %d: pads %d,%d outside [0,%d)x[0,%d)", i, lv.RightPad, lv.BottomPad, tileWidth, tileHeight)
		}
		if lv.Width != lv.TileCountX*tileWidth || lv.Height != lv.TileCountY*tileHeight {
			return nil, fmt.Errorf("level %d: stored size %dx%d does not match %dx%d tiles of %dx%d",
				i, lv.Width, lv.Height, lv.TileCountX, lv.TileCountY, tileWidth, tileHeight)
		}
		if lv.WidthWithoutEdge != lv.TileCountX*tileWidth-lv.RightPad {
			return nil, fmt.Errorf("level %d: width %d with pad %d does not yield %d", i, lv.Width, lv.RightPad, lv.WidthWithoutEdge)
		}
		if lv.HeightWithoutEdge != lv.TileCountY*tileHeight-lv.BottomPad {
			return nil, fmt.Errorf("level %d: height %d with pad %d does not yield %d", i, lv.Height, lv.BottomPad, lv.HeightWithoutEdge)
		}
		if lv.Downsample <= 0 {
			return nil, fmt.Errorf("level %d: downsample %v must be positive", i, lv.Downsample)
		}
		if i > 0 && lv.Downsample < levels[i-1].Downsample {
			return nil, fmt.Errorf("level %d: downsample %v below level %d downsample %v", i, lv.Downsample, i-1, levels[i-1].Downsample)
		}
	}
	x := &Index{
		tileWidth:  tileWidth,
		tileHeight: tileHeight,
		levels:     make([]Level, len(levels)),
	}
	copy(x.levels, levels)
	return x, nil
}

// TileSize returns the tile width and height shared by all levels.
func (x *Index) TileSize() (int, int) {
	return x.tileWidth, x.tileHeight
}

// LevelCount returns the number of pyramid levels.
func (x *Index) LevelCount() int {
	return len(x.levels)
}

// Level returns the geometry of one level.
func (x *Index) Level(i int) (Level, error) {
	if i < 0 || i >= len(x.levels) {
		return Level{}, ErrInvalidLevel
	}
	return x.levels[i], nil
}

// Levels returns a copy of all level descriptors, ordered by level index.
func (x *Index) Levels() []Level {
	out := make([]Level, len(x.levels))
	copy(out, x.levels)
	return out
}

// BestLevelForDownsample returns the highest level index whose downsample
// does not exceed d. Values below the first level's downsample map to 0,
// values beyond the last level's map to the last index.
func (x *Index) BestLevelForDownsample(d float64) int {
	best := 0
	for i, lv := range x.levels {
		if lv.Downsample <= d {
			best = i
		}
	}
	return best
}

// TileBounds returns the pixel rectangle covered by a tile at a level,
// in level-local coordinates. Tiles in the last column or row are clipped
// to the level's true extent.
func (x *Index) TileBounds(level, tileX, tileY int) (image.Rectangle, error) {
	if level < 0 || level >= len(x.levels) {
		return image.Rectangle{}, ErrInvalidLevel
	}
	lv := x.levels[level]
	if tileX < 0 || tileX >= lv.TileCountX || tileY < 0 || tileY >= lv.TileCountY {
		return image.Rectangle{}, ErrInvalidTile
	}
	x0 := tileX * x.tileWidth
	y0 := tileY * x.tileHeight
	w := x.tileWidth
	if x0+w > lv.WidthWithoutEdge {
		w = lv.WidthWithoutEdge - x0
	}
	h := x.tileHeight
	if y0+h > lv.HeightWithoutEdge {
		h = lv.HeightWithoutEdge - y0
	}
	return image.Rect(x0, y0, x0+w, y0+h), nil
}

// Levels derives a consistent level set for a base image of width x height
// pixels and the given downsample factors. Per-level true extents use
// ceiling division, tile counts and pads follow from the tile size. The
// result satisfies the NewIndex invariants by construction.
func Levels(width, height, tileWidth, tileHeight int, downsamples []float64) ([]Level, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("base size %dx%d must be at least 1x1", width, height)
	}
	if tileWidth < 1 || tileHeight < 1 {
		return nil, fmt.Errorf("tile size %dx%d must be at least 1x1", tileWidth, tileHeight)
	}
	if len(downsamples) == 0 {
		return nil, errors.New("at least one downsample factor required")
	}
	levels := make([]Level, len(downsamples))
	for i, d := range downsamples {
		if d <= 0 {
			return nil, fmt.Errorf("downsample %v at index %d must be positive", d, i)
		}
		wne := int(math.Ceil(float64(width) / d))
		hne := int(math.Ceil(float64(height) / d))
		if wne < 1 {
			wne = 1
		}
		if hne < 1 {
			hne = 1
		}
		lv, err := LevelFor(wne, hne, tileWidth, tileHeight, d)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		levels[i] = lv
	}
	return levels, nil
}

// LevelFor derives one level's geometry from its true pixel extent. Tile
// counts and edge pads follow from the tile size, so the result always
// satisfies the index invariants. Containers that record per-level
// dimensions build their levels through this instead of ceil-dividing a
// base extent.
func LevelFor(width, height, tileWidth, tileHeight int, downsample float64) (Level, error) {
	if width < 1 || height < 1 {
		return Level{}, fmt.Errorf("level size %dx%d must be at least 1x1", width, height)
	}
	if tileWidth < 1 || tileHeight < 1 {
		return Level{}, fmt.Errorf("tile size %dx%d must be at least 1x1", tileWidth, tileHeight)
	}
	if downsample <= 0 {
		return Level{}, fmt.Errorf("downsample %v must be positive", downsample)
	}
	tcx := (width + tileWidth - 1) / tileWidth
	tcy := (height + tileHeight - 1) / tileHeight
	return Level{
		Width:             tcx * tileWidth,
		Height:            tcy * tileHeight,
		WidthWithoutEdge:  width,
		HeightWithoutEdge: height,
		TileCountX:        tcx,
		TileCountY:        tcy,
		RightPad:          tcx*tileWidth - width,
		BottomPad:         tcy*tileHeight - height,
		Downsample:        downsample,
	}, nil
}
