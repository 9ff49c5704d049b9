// Package memslide implements an in-memory slide backend with
// deterministic synthetic pixels. Scenes are described procedurally, so
// tests and examples can predict exact bytes without any container file.
package memslide

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/klauspost/compress/zstd"

	"github.com/cocosip/go-wsi/colorcorrect"
	"github.com/cocosip/go-wsi/jpegcodec"
	"github.com/cocosip/go-wsi/pyramid"
	"github.com/cocosip/go-wsi/slide"
)

// Pattern selects the procedural pixel content of a scene.
type Pattern int

const (
	// PatternGradient varies B with x, G with y and R with both plus a
	// level and plane term.
	PatternGradient Pattern = iota
	// PatternChecker alternates bright and dark 32px cells.
	PatternChecker
	// PatternSolid fills each level and plane with one flat color.
	PatternSolid
)

// Config describes a synthetic slide. Zero values take defaults: 256px
// tiles, a single level at downsample 1, one focal plane, raw payloads.
type Config struct {
	Width       int
	Height      int
	TileWidth   int
	TileHeight  int
	Downsamples []float64

	Type    slide.WSIType
	Pattern Pattern
	Payload slide.TileFormat
	Quality int

	Sparse  bool
	Missing [][3]int // tile positions (level, tileX, tileY) left unstored
	Corrupt [][3]int // tile positions whose payload bytes are garbage

	Channels     []slide.ChannelInfo
	Planes       int
	PlaneSpacing float64
	PlaneOffsets [][2]int

	MppX          float64
	MppY          float64
	Magnification float64
	Barcode       string
	Corrected     bool
	Correction    *colorcorrect.Params
	Properties    map[string]string
}

// Memslide holds every tile pre-encoded in the configured payload
// format. It implements slide.Backend.
type Memslide struct {
	cfg   Config
	info  *slide.Info
	tiles map[slide.TileRef]slide.TilePayload
	assoc map[slide.AssociatedImageKind][]byte
}

// Shared stateless codec instances. EncodeAll is safe for concurrent use.
var zstdEncoder = mustNewZstdEncoder()

func mustNewZstdEncoder() *zstd.Encoder {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		panic(err)
	}
	return enc
}

// New builds a slide from the scene description, encoding every tile up
// front.
func New(cfg Config) (*Memslide, error) {
	if cfg.TileWidth == 0 {
		cfg.TileWidth = 256
	}
	if cfg.TileHeight == 0 {
		cfg.TileHeight = 256
	}
	if len(cfg.Downsamples) == 0 {
		cfg.Downsamples = []float64{1}
	}
	if cfg.Planes == 0 {
		cfg.Planes = 1
	}
	if cfg.Quality == 0 {
		cfg.Quality = jpegcodec.DefaultQuality
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return nil, fmt.Errorf("scene extent %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Type == slide.Fluorescence && len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("fluorescence scene needs at least one channel")
	}
	if cfg.Type == slide.Brightfield && len(cfg.Channels) > 0 {
		return nil, fmt.Errorf("brightfield scene cannot define channels")
	}
	switch cfg.Payload {
	case slide.FormatRaw, slide.FormatRawZstd, slide.FormatJPEG, slide.FormatPNG:
	default:
		return nil, fmt.Errorf("payload format %s not supported by scenes", cfg.Payload)
	}

	levels, err := pyramid.Levels(cfg.Width, cfg.Height, cfg.TileWidth, cfg.TileHeight, cfg.Downsamples)
	if err != nil {
		return nil, err
	}
	idx, err := pyramid.NewIndex(cfg.TileWidth, cfg.TileHeight, levels)
	if err != nil {
		return nil, err
	}

	m := &Memslide{
		cfg: cfg,
		info: &slide.Info{
			Pyramid:       idx,
			Type:          cfg.Type,
			MppX:          cfg.MppX,
			MppY:          cfg.MppY,
			Magnification: cfg.Magnification,
			Barcode:       cfg.Barcode,
			Sparse:        cfg.Sparse,
			Corrected:     cfg.Corrected,
			Channels:      cfg.Channels,
			PlaneCount:    cfg.Planes,
			PlaneSpacing:  cfg.PlaneSpacing,
			PlaneOffsets:  cfg.PlaneOffsets,
			Correction:    cfg.Correction,
			Properties:    cfg.Properties,
		},
		tiles: make(map[slide.TileRef]slide.TilePayload),
		assoc: make(map[slide.AssociatedImageKind][]byte),
	}
	if err := m.buildTiles(levels); err != nil {
		return nil, err
	}
	if err := m.buildAssociated(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Memslide) buildTiles(levels []pyramid.Level) error {
	missing := positionSet(m.cfg.Missing)
	corrupt := positionSet(m.cfg.Corrupt)

	for l, lv := range levels {
		for ty := 0; ty < lv.TileCountY; ty++ {
			for tx := 0; tx < lv.TileCountX; tx++ {
				pos := [3]int{l, tx, ty}
				if missing[pos] {
					continue
				}
				for plane := 0; plane < m.cfg.Planes; plane++ {
					refs := []slide.TileRef{
						{Level: l, X: tx, Y: ty, Plane: plane, Channel: slide.CompositeChannel},
					}
					if m.cfg.Type == slide.Fluorescence {
						for ch := range m.cfg.Channels {
							refs = append(refs, slide.TileRef{Level: l, X: tx, Y: ty, Plane: plane, Channel: ch})
						}
					}
					for _, ref := range refs {
						if corrupt[pos] {
							m.tiles[ref] = slide.TilePayload{Data: []byte("not an image"), Format: slide.FormatJPEG}
							continue
						}
						payload, err := m.encodePayload(m.renderTile(ref))
						if err != nil {
							return err
						}
						m.tiles[ref] = payload
					}
				}
			}
		}
	}
	return nil
}

func positionSet(positions [][3]int) map[[3]int]bool {
	set := make(map[[3]int]bool, len(positions))
	for _, p := range positions {
		set[p] = true
	}
	return set
}

// renderTile generates one full tile, pad included, in level-local
// pixel coordinates so assembled tiles line up seamlessly.
func (m *Memslide) renderTile(ref slide.TileRef) []byte {
	tw, th := m.cfg.TileWidth, m.cfg.TileHeight
	buf := make([]byte, tw*th*4)
	for py := 0; py < th; py++ {
		ay := ref.Y*th + py
		for px := 0; px < tw; px++ {
			ax := ref.X*tw + px
			i := (py*tw + px) * 4
			if ref.Channel == slide.CompositeChannel {
				p := CompositePixel(m.cfg.Pattern, ref.Level, ref.Plane, ax, ay)
				copy(buf[i:i+4], p[:])
			} else {
				v := ChannelIntensity(ref.Level, ref.Plane, ref.Channel, ax, ay)
				buf[i], buf[i+1], buf[i+2], buf[i+3] = v, v, v, 0xFF
			}
		}
	}
	return buf
}

// CompositePixel returns the BGRA value a pattern generates for the
// composite image at one level-local position. Exported so tests can
// predict region content byte for byte.
func CompositePixel(p Pattern, level, plane, x, y int) [4]byte {
	switch p {
	case PatternChecker:
		v := uint8(40)
		if ((x/32)+(y/32))%2 == 0 {
			v = 230
		}
		return [4]byte{v, v, uint8(int(v) + level*7 + plane*13), 0xFF}
	case PatternSolid:
		return [4]byte{uint8(64 + level*8), uint8(128 + plane*8), 192, 0xFF}
	default:
		return [4]byte{uint8(x), uint8(y), uint8(x + y + level*31 + plane*17), 0xFF}
	}
}

// ChannelIntensity returns the grayscale intensity generated for one
// fluorescence channel at one level-local position.
func ChannelIntensity(level, plane, channel, x, y int) uint8 {
	return uint8(x + 2*y + 37*channel + 13*plane + 7*level)
}

func (m *Memslide) encodePayload(bgra []byte) (slide.TilePayload, error) {
	tw, th := m.cfg.TileWidth, m.cfg.TileHeight
	switch m.cfg.Payload {
	case slide.FormatRaw:
		return slide.TilePayload{Data: bgra, Format: slide.FormatRaw, Width: tw, Height: th}, nil
	case slide.FormatRawZstd:
		data := zstdEncoder.EncodeAll(bgra, nil)
		return slide.TilePayload{Data: data, Format: slide.FormatRawZstd, Width: tw, Height: th}, nil
	case slide.FormatJPEG:
		data, err := jpegcodec.Encode(bgra, tw, th, m.cfg.Quality)
		if err != nil {
			return slide.TilePayload{}, err
		}
		return slide.TilePayload{Data: data, Format: slide.FormatJPEG}, nil
	case slide.FormatPNG:
		img, err := jpegcodec.ToImage(bgra, tw, th)
		if err != nil {
			return slide.TilePayload{}, err
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return slide.TilePayload{}, err
		}
		return slide.TilePayload{Data: buf.Bytes(), Format: slide.FormatPNG}, nil
	default:
		return slide.TilePayload{}, fmt.Errorf("payload format %s not supported by scenes", m.cfg.Payload)
	}
}

func (m *Memslide) buildAssociated() error {
	kinds := map[slide.AssociatedImageKind][2]int{
		slide.AssociatedLabel:      {64, 64},
		slide.AssociatedThumbnail:  {96, 64},
		slide.AssociatedMacrograph: {128, 48},
	}
	for kind, dims := range kinds {
		w, h := dims[0], dims[1]
		bgra := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := (y*w + x) * 4
				p := CompositePixel(m.cfg.Pattern, int(kind), 0, x, y)
				copy(bgra[i:i+4], p[:])
			}
		}
		data, err := jpegcodec.Encode(bgra, w, h, m.cfg.Quality)
		if err != nil {
			return err
		}
		m.assoc[kind] = data
	}
	return nil
}

// Info implements slide.Backend.
func (m *Memslide) Info() *slide.Info { return m.info }

// Tile implements slide.Backend. Unstored positions report
// slide.ErrTileNotStored; the slide layer decides whether that is a
// background fill or a failure.
func (m *Memslide) Tile(ref slide.TileRef) (slide.TilePayload, error) {
	p, ok := m.tiles[ref]
	if !ok {
		return slide.TilePayload{}, slide.ErrTileNotStored
	}
	return p, nil
}

// AssociatedImage implements slide.Backend.
func (m *Memslide) AssociatedImage(kind slide.AssociatedImageKind) ([]byte, error) {
	data, ok := m.assoc[kind]
	if !ok {
		return nil, slide.ErrNotExist
	}
	return data, nil
}

// Close implements slide.Backend.
func (m *Memslide) Close() error {
	m.tiles = nil
	m.assoc = nil
	return nil
}
