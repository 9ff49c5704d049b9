// Package slide opens whole-slide images through pluggable backends and
// serves pixel regions, tiles, focal planes and fluorescence channels
// from their tiled pyramids.
package slide

import (
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/cocosip/go-wsi/colorcorrect"
	"github.com/cocosip/go-wsi/parallel"
	"github.com/cocosip/go-wsi/pyramid"
)

// Slide is an open whole-slide image. Reads are safe for concurrent use;
// configuration changes (JPEG quality, color correction) are not safe
// against in-flight reads.
type Slide struct {
	backend Backend
	info    *Info
	pyr     *pyramid.Index
	planes  *pyramid.PlaneResolver
	pool    *parallel.Pool
	workers int
	quality int

	mu    sync.Mutex // guards the correction state machine
	style colorcorrect.Style
	table atomic.Pointer[colorcorrect.Table]

	closed atomic.Bool
}

// Open opens the slide at path. The driver is detected from the path
// extension unless WithFormat names one explicitly. On failure no handle
// is returned.
func Open(path string, opts ...Option) (*Slide, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	var (
		d   Driver
		err error
	)
	if cfg.format != "" {
		d, err = LookupDriver(cfg.format)
	} else {
		d, err = DetectDriver(path)
	}
	if err != nil {
		return nil, err
	}
	Logger().Debug("driver selected", "driver", d.Name(), "path", path)

	b, err := d.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s, err := newSlide(b, cfg)
	if err != nil {
		b.Close()
		return nil, err
	}
	Logger().Info("slide opened",
		"path", path, "driver", d.Name(),
		"type", s.Type().String(), "levels", s.LevelCount())
	return s, nil
}

// NewFromBackend wraps an already-open backend in a handle. The backend's
// lifetime passes to the handle; Close closes it.
func NewFromBackend(b Backend, opts ...Option) (*Slide, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return newSlide(b, cfg)
}

func newSlide(b Backend, cfg config) (*Slide, error) {
	if cfg.quality < 0 || cfg.quality > 99 {
		return nil, fmt.Errorf("quality %d outside [0,99]: %w", cfg.quality, ErrInvalidQuality)
	}
	info := b.Info()
	if info == nil || info.Pyramid == nil {
		return nil, fmt.Errorf("backend reports no pyramid index")
	}
	planeCount := info.PlaneCount
	if planeCount < 1 {
		planeCount = 1
	}
	planes, err := pyramid.NewPlaneResolver(planeCount, info.PlaneOffsets)
	if err != nil {
		return nil, err
	}
	return &Slide{
		backend: b,
		info:    info,
		pyr:     info.Pyramid,
		planes:  planes,
		pool:    parallel.NewPool(cfg.workers),
		workers: cfg.workers,
		quality: cfg.quality,
	}, nil
}

// Close releases the backend and the worker pool. Further calls on the
// handle fail with ErrClosed. Close is idempotent.
func (s *Slide) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.pool.Close()
	s.table.Store(nil)
	err := s.backend.Close()
	Logger().Info("slide closed")
	return err
}

// Info returns the immutable metadata snapshot taken at open.
func (s *Slide) Info() *Info { return s.info }

// Type reports whether the slide is brightfield or fluorescence.
func (s *Slide) Type() WSIType { return s.info.Type }

// TileSize returns the tile width and height shared by all levels.
func (s *Slide) TileSize() (int, int) { return s.pyr.TileSize() }

// MPP returns microns per pixel at level 0, X then Y.
func (s *Slide) MPP() (float64, float64) { return s.info.MppX, s.info.MppY }

// Magnification returns the nominal scan objective power, 0 if unknown.
func (s *Slide) Magnification() float64 { return s.info.Magnification }

// Barcode returns the label barcode text, empty if absent.
func (s *Slide) Barcode() string { return s.info.Barcode }

// LevelCount returns the number of pyramid levels.
func (s *Slide) LevelCount() int { return s.pyr.LevelCount() }

// Level returns the geometry of one pyramid level.
func (s *Slide) Level(i int) (pyramid.Level, error) { return s.pyr.Level(i) }

// Levels returns the geometry of every pyramid level.
func (s *Slide) Levels() []pyramid.Level { return s.pyr.Levels() }

// BestLevelForDownsample returns the level best suited for rendering at
// the given downsample factor.
func (s *Slide) BestLevelForDownsample(d float64) int {
	return s.pyr.BestLevelForDownsample(d)
}

// ChannelCount returns the number of readable channels: the acquisition
// channel count for fluorescence, 1 for brightfield.
func (s *Slide) ChannelCount() int {
	if s.info.Type == Fluorescence {
		return len(s.info.Channels)
	}
	return 1
}

// Channel returns one fluorescence channel's acquisition metadata.
func (s *Slide) Channel(i int) (ChannelInfo, error) {
	if s.info.Type != Fluorescence {
		return ChannelInfo{}, ErrBrightfield
	}
	if i < 0 || i >= len(s.info.Channels) {
		return ChannelInfo{}, fmt.Errorf("channel %d of %d: %w", i, len(s.info.Channels), ErrInvalidChannel)
	}
	return s.info.Channels[i], nil
}

// PlaneCount returns the number of focal planes, at least 1.
func (s *Slide) PlaneCount() int { return s.planes.Count() }

// PlaneSpacing returns the physical distance between adjacent focal
// planes in microns, 0 if unknown.
func (s *Slide) PlaneSpacing() float64 { return s.info.PlaneSpacing }

// MiddlePlane returns the index of the reference focal plane.
func (s *Slide) MiddlePlane() int { return s.planes.Reference() }

// PlaneOffset returns a plane's pixel displacement from the reference
// plane at the given level.
func (s *Slide) PlaneOffset(plane, level int) (dx, dy int, err error) {
	lv, err := s.pyr.Level(level)
	if err != nil {
		return 0, 0, err
	}
	return s.planes.Offset(plane, lv.Downsample)
}

// Properties returns the free-form container properties.
func (s *Slide) Properties() map[string]string {
	return maps.Clone(s.info.Properties)
}
