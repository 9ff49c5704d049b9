package slide_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/cocosip/go-wsi/backend/memslide"
	"github.com/cocosip/go-wsi/fusion"
	"github.com/cocosip/go-wsi/slide"
)

// weight mirrors the pseudo-color weighting: one component scaled by a
// grayscale intensity, rounding to nearest.
func weight(c uint8, in int) int { return (int(c)*in + 127) / 255 }

func clamp255(v int) uint8 {
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// wantFused builds the expected pseudo-color composite for a region
// with origin (x0, y0). Hole pixels keep the transparent background.
func wantFused(level, plane, x0, y0, w, h int, channels []int, colors []fusion.Color, hole func(ax, ay int) bool) []byte {
	buf := make([]byte, w*h*4)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			ax, ay := x0+i, y0+j
			if hole != nil && hole(ax, ay) {
				continue
			}
			var b, g, r int
			for k, ch := range channels {
				in := int(memslide.ChannelIntensity(level, plane, ch, ax, ay))
				b += weight(colors[k].B, in)
				g += weight(colors[k].G, in)
				r += weight(colors[k].R, in)
			}
			off := (j*w + i) * 4
			buf[off+0] = clamp255(b)
			buf[off+1] = clamp255(g)
			buf[off+2] = clamp255(r)
			buf[off+3] = 0xFF
		}
	}
	return buf
}

func TestReadChannelGrayscale(t *testing.T) {
	s := openSlide(t, fluorConfig())

	dst := make([]byte, 64*48*4)
	if err := s.ReadRegionBGRAByChannel(dst, 0, 10, 20, 64, 48, 1, 1, false); err != nil {
		t.Fatalf("ReadRegionBGRAByChannel: %v", err)
	}
	for j := 0; j < 48; j++ {
		for i := 0; i < 64; i++ {
			in := memslide.ChannelIntensity(0, 1, 1, 10+i, 20+j)
			off := (j*64 + i) * 4
			if dst[off] != in || dst[off+1] != in || dst[off+2] != in || dst[off+3] != 0xFF {
				t.Fatalf("pixel (%d,%d) = %v, want %d replicated", i, j, dst[off:off+4], in)
			}
		}
	}
}

func TestReadChannelPseudo(t *testing.T) {
	s := openSlide(t, fluorConfig())
	color := fusion.ChannelColor(519, 1) // FITC

	dst := make([]byte, 64*48*4)
	if err := s.ReadRegionBGRAByChannel(dst, 0, 10, 20, 64, 48, 1, 1, true); err != nil {
		t.Fatalf("ReadRegionBGRAByChannel: %v", err)
	}
	want := wantFused(0, 1, 10, 20, 64, 48, []int{1}, []fusion.Color{color}, nil)
	if !bytes.Equal(dst, want) {
		t.Error("pseudo-color channel read differs from expected")
	}
}

func TestReadChannelsFuse(t *testing.T) {
	s := openSlide(t, fluorConfig())
	sel := []int{0, 2}
	colors := []fusion.Color{fusion.ChannelColor(461, 0), fusion.ChannelColor(600, 2)}

	dst := make([]byte, 120*80*4)
	if err := s.ReadRegionBGRAByChannels(dst, 1, 30, 40, 120, 80, 1, sel); err != nil {
		t.Fatalf("ReadRegionBGRAByChannels: %v", err)
	}
	want := wantFused(1, 1, 30, 40, 120, 80, sel, colors, nil)
	if !bytes.Equal(dst, want) {
		t.Error("two-channel fusion differs from expected")
	}
}

// Selecting one channel through the fusion entry point must match the
// dedicated pseudo-color read byte for byte.
func TestReadChannelsSingleDelegates(t *testing.T) {
	s := openSlide(t, fluorConfig())

	fused := make([]byte, 100*100*4)
	if err := s.ReadRegionBGRAByChannels(fused, 0, 50, 60, 100, 100, 1, []int{2}); err != nil {
		t.Fatalf("ReadRegionBGRAByChannels: %v", err)
	}
	pseudo := make([]byte, 100*100*4)
	if err := s.ReadRegionBGRAByChannel(pseudo, 0, 50, 60, 100, 100, 1, 2, true); err != nil {
		t.Fatalf("ReadRegionBGRAByChannel: %v", err)
	}
	if !bytes.Equal(fused, pseudo) {
		t.Error("single-channel fusion differs from the pseudo-color read")
	}
}

func TestReadChannelsSparseHole(t *testing.T) {
	cfg := fluorConfig()
	cfg.Sparse = true
	cfg.Missing = [][3]int{{0, 1, 1}}
	s := openSlide(t, cfg)
	sel := []int{0, 1}
	colors := []fusion.Color{fusion.ChannelColor(461, 0), fusion.ChannelColor(519, 1)}

	dst := make([]byte, 200*200*4)
	if err := s.ReadRegionBGRAByChannels(dst, 0, 200, 200, 200, 200, 1, sel); err != nil {
		t.Fatalf("ReadRegionBGRAByChannels: %v", err)
	}
	// Tile (1,1) is a hole in every channel: its pixels stay fully
	// transparent instead of being stamped opaque by the fusion.
	want := wantFused(0, 1, 200, 200, 200, 200, sel, colors, func(ax, ay int) bool {
		return ax >= 256 && ay >= 256
	})
	if !bytes.Equal(dst, want) {
		t.Error("sparse fusion differs from expected")
	}
}

func TestReadTileChannels(t *testing.T) {
	s := openSlide(t, fluorConfig())

	// Grayscale tile: intensity replicated, pad included.
	dst := make([]byte, 256*256*4)
	if err := s.ReadTileBGRAByChannel(dst, 0, 1, 0, 1, 0, false); err != nil {
		t.Fatalf("ReadTileBGRAByChannel: %v", err)
	}
	for _, p := range [][2]int{{0, 0}, {99, 7}, {255, 255}} {
		in := memslide.ChannelIntensity(0, 1, 0, 256+p[0], p[1])
		off := (p[1]*256 + p[0]) * 4
		if dst[off] != in || dst[off+1] != in || dst[off+2] != in {
			t.Errorf("pixel (%d,%d) = %v, want %d replicated", p[0], p[1], dst[off:off+4], in)
		}
	}

	// Fused tile against the reference formula.
	sel := []int{0, 1}
	colors := []fusion.Color{fusion.ChannelColor(461, 0), fusion.ChannelColor(519, 1)}
	if err := s.ReadTileBGRAByChannels(dst, 0, 1, 0, 1, sel); err != nil {
		t.Fatalf("ReadTileBGRAByChannels: %v", err)
	}
	want := wantFused(0, 1, 256, 0, 256, 256, sel, colors, nil)
	if !bytes.Equal(dst, want) {
		t.Error("fused tile differs from expected")
	}

	// Single-channel fusion delegates to the pseudo-color tile read.
	one := make([]byte, 256*256*4)
	if err := s.ReadTileBGRAByChannels(one, 0, 1, 0, 1, []int{1}); err != nil {
		t.Fatal(err)
	}
	pseudo := make([]byte, 256*256*4)
	if err := s.ReadTileBGRAByChannel(pseudo, 0, 1, 0, 1, 1, true); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(one, pseudo) {
		t.Error("single-channel tile fusion differs from the pseudo-color read")
	}
}

func TestChannelSelectionErrors(t *testing.T) {
	bf := openSlide(t, brightfieldConfig())
	dst := make([]byte, 64*64*4)
	if err := bf.ReadRegionBGRAByChannel(dst, 0, 0, 0, 64, 64, 0, 0, false); !errors.Is(err, slide.ErrBrightfield) {
		t.Errorf("brightfield channel read: err = %v, want ErrBrightfield", err)
	}
	tile := make([]byte, 256*256*4)
	if err := bf.ReadTileBGRAByChannels(tile, 0, 0, 0, 0, []int{0, 1}); !errors.Is(err, slide.ErrBrightfield) {
		t.Errorf("brightfield tile fusion: err = %v, want ErrBrightfield", err)
	}

	fl := openSlide(t, fluorConfig())
	if err := fl.ReadRegionBGRAByChannels(dst, 0, 0, 0, 64, 64, 1, nil); !errors.Is(err, slide.ErrInvalidChannel) {
		t.Errorf("empty selection: err = %v, want ErrInvalidChannel", err)
	}
	if err := fl.ReadRegionBGRAByChannel(dst, 0, 0, 0, 64, 64, 1, 3, true); !errors.Is(err, slide.ErrInvalidChannel) {
		t.Errorf("channel 3: err = %v, want ErrInvalidChannel", err)
	}
	if err := fl.ReadRegionBGRAByChannels(dst, 0, 0, 0, 64, 64, 1, []int{0, -1}); !errors.Is(err, slide.ErrInvalidChannel) {
		t.Errorf("channel -1: err = %v, want ErrInvalidChannel", err)
	}
}
