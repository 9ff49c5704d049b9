package slide_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/cocosip/go-wsi/backend/memslide"
	"github.com/cocosip/go-wsi/slide"
)

// wantGradient builds the expected composite for a region with origin
// (x0, y0) in level pixels. Pixels outside the level's true bounds, or
// inside a hole, keep the zero background.
func wantGradient(level, plane, x0, y0, w, h, trueW, trueH int, hole func(ax, ay int) bool) []byte {
	buf := make([]byte, w*h*4)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			ax, ay := x0+i, y0+j
			if ax < 0 || ay < 0 || ax >= trueW || ay >= trueH {
				continue
			}
			if hole != nil && hole(ax, ay) {
				continue
			}
			px := memslide.CompositePixel(memslide.PatternGradient, level, plane, ax, ay)
			copy(buf[(j*w+i)*4:], px[:])
		}
	}
	return buf
}

// A full-level read must reproduce the stored pattern across every tile
// seam, with the stored pad clipped away.
func TestReadRegionFullLevel(t *testing.T) {
	s := openSlide(t, brightfieldConfig())

	dst := make([]byte, 1000*800*4)
	if err := s.ReadRegionBGRA(dst, 0, 0, 0, 1000, 800); err != nil {
		t.Fatalf("ReadRegionBGRA: %v", err)
	}
	want := wantGradient(0, 0, 0, 0, 1000, 800, 1000, 800, nil)
	if !bytes.Equal(dst, want) {
		t.Error("full level 0 read differs from the stored pattern")
	}
}

func TestReadRegionClipsToTrueBounds(t *testing.T) {
	s := openSlide(t, brightfieldConfig())

	// Bottom-right corner: only the 100x100 inside (1000, 800) is
	// covered, the rest keeps the zero background.
	dst := make([]byte, 200*200*4)
	if err := s.ReadRegionBGRA(dst, 0, 900, 700, 200, 200); err != nil {
		t.Fatalf("ReadRegionBGRA: %v", err)
	}
	want := wantGradient(0, 0, 900, 700, 200, 200, 1000, 800, nil)
	if !bytes.Equal(dst, want) {
		t.Error("clipped corner read differs from expected")
	}

	// Negative origin: the region hangs off the top-left.
	dst = make([]byte, 300*300*4)
	if err := s.ReadRegionBGRA(dst, 0, -100, -100, 300, 300); err != nil {
		t.Fatalf("ReadRegionBGRA: %v", err)
	}
	want = wantGradient(0, 0, -100, -100, 300, 300, 1000, 800, nil)
	if !bytes.Equal(dst, want) {
		t.Error("negative-origin read differs from expected")
	}
}

func TestReadRegionOutside(t *testing.T) {
	s := openSlide(t, brightfieldConfig())

	dst := make([]byte, 10*10*4)
	for i := range dst {
		dst[i] = 0xAB
	}
	// The stored pad right of x=1000 is not readable as a region.
	err := s.ReadRegionBGRA(dst, 0, 1000, 0, 10, 10)
	if !errors.Is(err, slide.ErrInvalidRegion) {
		t.Fatalf("err = %v, want ErrInvalidRegion", err)
	}
	for i, b := range dst {
		if b != 0xAB {
			t.Fatalf("dst[%d] = %#x: buffer touched by a failed read", i, b)
		}
	}

	if err := s.ReadRegionBGRA(dst, 0, 0, 800, 10, 10); !errors.Is(err, slide.ErrInvalidRegion) {
		t.Errorf("below bottom edge: err = %v, want ErrInvalidRegion", err)
	}
	if err := s.ReadRegionBGRA(dst, 0, -50, -50, 10, 10); !errors.Is(err, slide.ErrInvalidRegion) {
		t.Errorf("fully negative: err = %v, want ErrInvalidRegion", err)
	}
}

func TestReadRegionValidation(t *testing.T) {
	s := openSlide(t, brightfieldConfig())

	dst := make([]byte, 10*10*4)
	if err := s.ReadRegionBGRA(dst, 0, 0, 0, 0, 10); !errors.Is(err, slide.ErrInvalidRegion) {
		t.Errorf("zero width: err = %v, want ErrInvalidRegion", err)
	}
	if err := s.ReadRegionBGRA(dst, 0, 0, 0, 10, 20); !errors.Is(err, slide.ErrInvalidBuffer) {
		t.Errorf("short buffer: err = %v, want ErrInvalidBuffer", err)
	}
	if err := s.ReadRegionBGRA(dst, 7, 0, 0, 10, 10); !errors.Is(err, slide.ErrInvalidLevel) {
		t.Errorf("bad level: err = %v, want ErrInvalidLevel", err)
	}
}

func TestReadRegionSparseHole(t *testing.T) {
	cfg := brightfieldConfig()
	cfg.Sparse = true
	cfg.Missing = [][3]int{{0, 1, 1}}
	s := openSlide(t, cfg)

	// The region spans tiles (0,0) through (1,1); only tile (1,1) is a
	// hole, so pixels at or beyond (256, 256) stay background.
	dst := make([]byte, 200*200*4)
	if err := s.ReadRegionBGRA(dst, 0, 200, 200, 200, 200); err != nil {
		t.Fatalf("ReadRegionBGRA: %v", err)
	}
	want := wantGradient(0, 0, 200, 200, 200, 200, 1000, 800, func(ax, ay int) bool {
		return ax >= 256 && ay >= 256
	})
	if !bytes.Equal(dst, want) {
		t.Error("sparse hole read differs from expected")
	}

	// The missing tile itself reads as a zero tile.
	tile := make([]byte, 256*256*4)
	if err := s.ReadTileBGRA(tile, 0, 1, 1); err != nil {
		t.Fatalf("ReadTileBGRA: %v", err)
	}
	for i, b := range tile {
		if b != 0 {
			t.Fatalf("tile byte %d = %#x, want zero background", i, b)
		}
	}
}

func TestReadRegionMissingTileNotSparse(t *testing.T) {
	cfg := brightfieldConfig()
	cfg.Missing = [][3]int{{0, 1, 1}}
	s := openSlide(t, cfg)

	dst := make([]byte, 200*200*4)
	err := s.ReadRegionBGRA(dst, 0, 200, 200, 200, 200)
	if !errors.Is(err, slide.ErrTileNotStored) {
		t.Fatalf("err = %v, want ErrTileNotStored", err)
	}

	// The handle survives the failure.
	if err := s.ReadRegionBGRA(dst, 0, 600, 0, 200, 200); err != nil {
		t.Fatalf("read after failure: %v", err)
	}
	want := wantGradient(0, 0, 600, 0, 200, 200, 1000, 800, nil)
	if !bytes.Equal(dst, want) {
		t.Error("post-failure read differs from expected")
	}
}

func TestReadRegionCorruptTile(t *testing.T) {
	cfg := brightfieldConfig()
	cfg.Corrupt = [][3]int{{0, 0, 0}}
	s := openSlide(t, cfg)

	dst := make([]byte, 100*100*4)
	err := s.ReadRegionBGRA(dst, 0, 0, 0, 100, 100)
	if err == nil {
		t.Fatal("read through a corrupt tile succeeded")
	}
	if errors.Is(err, slide.ErrTileNotStored) {
		t.Fatal("corrupt tile must not read as missing")
	}

	// Regions that avoid the corrupt tile still work.
	if err := s.ReadRegionBGRA(dst, 0, 600, 600, 100, 100); err != nil {
		t.Fatalf("read after failure: %v", err)
	}
}

func TestReadRegionWorkerCounts(t *testing.T) {
	cfg := brightfieldConfig()
	serial := openSlide(t, cfg, slide.WithWorkers(1))
	pooled := openSlide(t, cfg, slide.WithWorkers(8))

	a := make([]byte, 1000*800*4)
	b := make([]byte, 1000*800*4)
	if err := serial.ReadRegionBGRA(a, 0, 0, 0, 1000, 800); err != nil {
		t.Fatal(err)
	}
	if err := pooled.ReadRegionBGRA(b, 0, 0, 0, 1000, 800); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("worker count changed the composited bytes")
	}
}

func TestReadRegionPlaneShift(t *testing.T) {
	s := openSlide(t, fluorConfig())

	// Plane 0 carries a (-10, 6) offset at level 0; at downsample 4 the
	// origin shifts by (-3, 2), rounding half away from zero.
	dst := make([]byte, 50*50*4)
	if err := s.ReadRegionBGRAByPlane(dst, 2, 40, 40, 50, 50, 0); err != nil {
		t.Fatalf("ReadRegionBGRAByPlane: %v", err)
	}
	want := wantGradient(2, 0, 37, 42, 50, 50, 150, 125, nil)
	if !bytes.Equal(dst, want) {
		t.Error("plane 0 read does not apply the scaled offset")
	}

	// The reference plane has no offset.
	if err := s.ReadRegionBGRAByPlane(dst, 2, 40, 40, 50, 50, 1); err != nil {
		t.Fatal(err)
	}
	want = wantGradient(2, 1, 40, 40, 50, 50, 150, 125, nil)
	if !bytes.Equal(dst, want) {
		t.Error("reference plane read differs from expected")
	}

	if err := s.ReadRegionBGRAByPlane(dst, 2, 40, 40, 50, 50, 3); !errors.Is(err, slide.ErrInvalidPlane) {
		t.Errorf("plane 3: err = %v, want ErrInvalidPlane", err)
	}
}

// Tile reads address stored tiles exactly: the pad is included and no
// plane offset applies.
func TestReadTile(t *testing.T) {
	s := openSlide(t, brightfieldConfig())

	dst := make([]byte, 256*256*4)
	if err := s.ReadTileBGRA(dst, 0, 3, 3); err != nil {
		t.Fatalf("ReadTileBGRA: %v", err)
	}
	// The edge tile spans [768,1024) on both axes; the stored pattern
	// continues into the pad.
	for _, p := range [][2]int{{0, 0}, {200, 100}, {250, 250}} {
		ax, ay := 768+p[0], 768+p[1]
		want := memslide.CompositePixel(memslide.PatternGradient, 0, 0, ax, ay)
		off := (p[1]*256 + p[0]) * 4
		if !bytes.Equal(dst[off:off+4], want[:]) {
			t.Errorf("pixel (%d,%d) = %v, want %v", p[0], p[1], dst[off:off+4], want)
		}
	}
}

func TestReadTilePlaneAddressing(t *testing.T) {
	s := openSlide(t, fluorConfig())

	// Plane 0 tiles are stored unshifted even though region reads on
	// plane 0 shift their origin.
	dst := make([]byte, 256*256*4)
	if err := s.ReadTileBGRAByPlane(dst, 2, 0, 0, 0); err != nil {
		t.Fatalf("ReadTileBGRAByPlane: %v", err)
	}
	want := memslide.CompositePixel(memslide.PatternGradient, 2, 0, 100, 40)
	off := (40*256 + 100) * 4
	if !bytes.Equal(dst[off:off+4], want[:]) {
		t.Errorf("pixel (100,40) = %v, want %v", dst[off:off+4], want)
	}
}

func TestReadTileValidation(t *testing.T) {
	s := openSlide(t, brightfieldConfig())

	dst := make([]byte, 256*256*4)
	if err := s.ReadTileBGRA(dst, 0, 4, 0); !errors.Is(err, slide.ErrInvalidTile) {
		t.Errorf("tile x 4: err = %v, want ErrInvalidTile", err)
	}
	if err := s.ReadTileBGRA(dst, 0, 0, -1); !errors.Is(err, slide.ErrInvalidTile) {
		t.Errorf("tile y -1: err = %v, want ErrInvalidTile", err)
	}
	if err := s.ReadTileBGRA(dst, 5, 0, 0); !errors.Is(err, slide.ErrInvalidLevel) {
		t.Errorf("bad level: err = %v, want ErrInvalidLevel", err)
	}
	if err := s.ReadTileBGRA(dst[:16], 0, 0, 0); !errors.Is(err, slide.ErrInvalidBuffer) {
		t.Errorf("short buffer: err = %v, want ErrInvalidBuffer", err)
	}
}
