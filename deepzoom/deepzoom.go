// Package deepzoom slices an open slide into the Deep Zoom tile layout
// used by viewers such as OpenSeadragon. Levels halve from the full
// slide resolution down to a single pixel, and tiles share a fixed
// overlap margin with their interior neighbors.
package deepzoom

import (
	"encoding/xml"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/cocosip/go-wsi/jpegcodec"
	"github.com/cocosip/go-wsi/slide"
)

const (
	// DefaultTileSize is the interior tile extent in pixels. 254 plus
	// a one pixel overlap on each interior edge yields 256 pixel tiles.
	DefaultTileSize = 254

	// DefaultOverlap is the margin shared between adjacent tiles.
	DefaultOverlap = 1
)

// Option configures a Generator.
type Option func(*config)

type config struct {
	tileSize int
	overlap  int
}

// WithTileSize sets the interior tile size in pixels.
func WithTileSize(n int) Option { return func(c *config) { c.tileSize = n } }

// WithOverlap sets the shared margin between adjacent tiles.
func WithOverlap(n int) Option { return func(c *config) { c.overlap = n } }

// Generator produces Deep Zoom levels and tiles from an open slide. A
// generator holds no state beyond the level stack, so it is safe for
// concurrent use.
type Generator struct {
	slide    *slide.Slide
	tileSize int
	overlap  int
	dims     [][2]int // index = deep zoom level, ascending resolution
}

// NewGenerator derives the Deep Zoom level stack from the slide's full
// extent by repeated halving, rounding up, until one pixel remains.
func NewGenerator(s *slide.Slide, opts ...Option) (*Generator, error) {
	cfg := config{tileSize: DefaultTileSize, overlap: DefaultOverlap}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.overlap < 0 {
		return nil, fmt.Errorf("deepzoom: overlap %d", cfg.overlap)
	}
	if cfg.tileSize <= 2*cfg.overlap {
		return nil, fmt.Errorf("deepzoom: tile size %d must exceed twice the overlap %d",
			cfg.tileSize, cfg.overlap)
	}
	lv0, err := s.Level(0)
	if err != nil {
		return nil, err
	}

	w, h := lv0.WidthWithoutEdge, lv0.HeightWithoutEdge
	chain := [][2]int{{w, h}}
	for w > 1 || h > 1 {
		w = (w + 1) / 2
		h = (h + 1) / 2
		chain = append(chain, [2]int{w, h})
	}
	dims := make([][2]int, len(chain))
	for i, d := range chain {
		dims[len(chain)-1-i] = d
	}
	return &Generator{slide: s, tileSize: cfg.tileSize, overlap: cfg.overlap, dims: dims}, nil
}

// TileSize returns the interior tile extent in pixels.
func (g *Generator) TileSize() int { return g.tileSize }

// Overlap returns the shared margin between adjacent tiles.
func (g *Generator) Overlap() int { return g.overlap }

// LevelCount returns the number of Deep Zoom levels. Level 0 is a
// single pixel; the last level is the slide's full resolution.
func (g *Generator) LevelCount() int { return len(g.dims) }

// LevelDimensions returns the pixel extent of one Deep Zoom level.
func (g *Generator) LevelDimensions(level int) (int, int, error) {
	if level < 0 || level >= len(g.dims) {
		return 0, 0, fmt.Errorf("deep zoom level %d: %w", level, slide.ErrInvalidLevel)
	}
	return g.dims[level][0], g.dims[level][1], nil
}

// LevelTiles returns the tile grid of one Deep Zoom level.
func (g *Generator) LevelTiles(level int) (int, int, error) {
	w, h, err := g.LevelDimensions(level)
	if err != nil {
		return 0, 0, err
	}
	return (w + g.tileSize - 1) / g.tileSize, (h + g.tileSize - 1) / g.tileSize, nil
}

// TileDimensions returns the pixel extent of one tile, overlap
// included. Edge tiles are smaller than interior ones.
func (g *Generator) TileDimensions(level, col, row int) (int, int, error) {
	_, _, w, h, err := g.tileGeometry(level, col, row)
	return w, h, err
}

// tileGeometry returns the tile's position and extent in level pixels.
// Interior edges extend by the overlap; the first column and row start
// at the level origin.
func (g *Generator) tileGeometry(level, col, row int) (x, y, w, h int, err error) {
	lw, lh, err := g.LevelDimensions(level)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	cols := (lw + g.tileSize - 1) / g.tileSize
	rows := (lh + g.tileSize - 1) / g.tileSize
	if col < 0 || col >= cols || row < 0 || row >= rows {
		return 0, 0, 0, 0, fmt.Errorf("deep zoom tile (%d,%d) level %d: %w",
			col, row, level, slide.ErrInvalidTile)
	}
	x = col * g.tileSize
	y = row * g.tileSize
	w = min(g.tileSize, lw-x)
	h = min(g.tileSize, lh-y)
	if col > 0 {
		x -= g.overlap
		w += g.overlap
	}
	if col < cols-1 {
		w += g.overlap
	}
	if row > 0 {
		y -= g.overlap
		h += g.overlap
	}
	if row < rows-1 {
		h += g.overlap
	}
	w = min(w, lw-x)
	h = min(h, lh-y)
	return x, y, w, h, nil
}

// Tile renders one tile as BGRA, returning the buffer and its extent.
// The source region comes from the sharpest pyramid level at or below
// the tile's downsample and is resampled for the remainder.
func (g *Generator) Tile(level, col, row int) ([]byte, int, int, error) {
	zx, zy, zw, zh, err := g.tileGeometry(level, col, row)
	if err != nil {
		return nil, 0, 0, err
	}
	l0ds := math.Ldexp(1, len(g.dims)-1-level)
	slideLevel := g.slide.BestLevelForDownsample(l0ds)
	lv, err := g.slide.Level(slideLevel)
	if err != nil {
		return nil, 0, 0, err
	}
	scale := l0ds / lv.Downsample
	rx := int(math.Floor(float64(zx) * scale))
	ry := int(math.Floor(float64(zy) * scale))
	rw := min(int(math.Ceil(float64(zw)*scale)), lv.WidthWithoutEdge-rx)
	rh := min(int(math.Ceil(float64(zh)*scale)), lv.HeightWithoutEdge-ry)

	buf := make([]byte, rw*rh*4)
	if err := g.slide.ReadRegionBGRA(buf, slideLevel, rx, ry, rw, rh); err != nil {
		return nil, 0, 0, err
	}
	if rw == zw && rh == zh {
		return buf, zw, zh, nil
	}
	src, err := jpegcodec.ToImage(buf, rw, rh)
	if err != nil {
		return nil, 0, 0, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, zw, zh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	out, w, h := jpegcodec.FromImage(dst)
	return out, w, h, nil
}

// TileJPEG renders one tile and encodes it at the slide's JPEG quality.
func (g *Generator) TileJPEG(level, col, row int) ([]byte, error) {
	buf, w, h, err := g.Tile(level, col, row)
	if err != nil {
		return nil, err
	}
	return g.slide.EncodeBGRA(buf, w, h)
}

type dziImage struct {
	XMLName  xml.Name `xml:"Image"`
	Xmlns    string   `xml:"xmlns,attr"`
	Format   string   `xml:"Format,attr"`
	Overlap  int      `xml:"Overlap,attr"`
	TileSize int      `xml:"TileSize,attr"`
	Size     dziSize  `xml:"Size"`
}

type dziSize struct {
	Width  int `xml:"Width,attr"`
	Height int `xml:"Height,attr"`
}

// DZI returns the descriptor document viewers load first. format is
// the tile file extension they will request, usually "jpeg".
func (g *Generator) DZI(format string) ([]byte, error) {
	full := g.dims[len(g.dims)-1]
	doc, err := xml.MarshalIndent(dziImage{
		Xmlns:    "http://schemas.microsoft.com/deepzoom/2008",
		Format:   format,
		Overlap:  g.overlap,
		TileSize: g.tileSize,
		Size:     dziSize{Width: full[0], Height: full[1]},
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), doc...), nil
}
