// Package dicomwsi serves slides stored as a manifest directory of
// DICOM files, one image per pyramid level, plane and channel. Frames
// inside each file are row-major tiles. Baseline JPEG transfer syntaxes
// keep their compressed frames so the slide layer can pass them through;
// native little-endian frames convert to raw BGRA.
package dicomwsi

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cocosip/go-dicom/pkg/dicom/parser"
	"github.com/cocosip/go-dicom/pkg/dicom/tag"
	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	"github.com/cocosip/go-dicom/pkg/imaging"

	"github.com/cocosip/go-wsi/pyramid"
	"github.com/cocosip/go-wsi/slide"
)

type fileKey struct {
	level   int
	plane   int
	channel int
}

// levelFile is one parsed DICOM image: a stack of tile frames. Frame
// access is read-only after parse, so tiles may be fetched concurrently.
type levelFile struct {
	tileCountX int
	frameCount int
	jpeg       bool // encapsulated baseline JPEG, frames pass through
	gray       bool // native single-sample frames
	getFrame   func(int) ([]byte, error)
}

// Archive implements slide.Backend over a manifest directory.
type Archive struct {
	dir   string
	info  *slide.Info
	files map[fileKey]*levelFile
	assoc map[slide.AssociatedImageKind]string
}

// Open parses the manifest under dir and every DICOM file it names.
func Open(dir string) (*Archive, error) {
	manifest, err := LoadManifest(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		return nil, err
	}

	ds := manifest.downsamples()
	levels := make([]pyramid.Level, len(ds))
	for i, d := range ds {
		e := manifest.entriesFor(d)[0]
		lv, err := pyramid.LevelFor(e.Width, e.Height, manifest.TileWidth, manifest.TileHeight, d)
		if err != nil {
			return nil, err
		}
		levels[i] = lv
	}
	idx, err := pyramid.NewIndex(manifest.TileWidth, manifest.TileHeight, levels)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		dir:   dir,
		files: make(map[fileKey]*levelFile, len(manifest.Levels)),
		assoc: make(map[slide.AssociatedImageKind]string),
		info: &slide.Info{
			Pyramid:       idx,
			Type:          manifest.WSIType(),
			MppX:          manifest.MppX,
			MppY:          manifest.MppY,
			Magnification: manifest.Magnification,
			Barcode:       manifest.Barcode,
			Sparse:        manifest.Sparse,
			Corrected:     manifest.Corrected,
			Channels:      manifest.channelInfos(),
			PlaneCount:    manifest.Planes.Count,
			PlaneSpacing:  manifest.Planes.Spacing,
			PlaneOffsets:  manifest.Planes.Offsets,
			Correction:    manifest.Correction,
			Properties:    manifest.Properties,
		},
	}
	for _, e := range manifest.Levels {
		key := fileKey{
			level:   manifest.levelIndex(e.Downsample),
			plane:   e.Plane,
			channel: e.ChannelIndex(),
		}
		lf, err := openLevelFile(filepath.Join(dir, e.File),
			manifest.TileWidth, manifest.TileHeight, levels[key.level].TileCountX)
		if err != nil {
			return nil, fmt.Errorf("level file %s: %w", e.File, err)
		}
		a.files[key] = lf
	}

	if manifest.Associated.Label != "" {
		a.assoc[slide.AssociatedLabel] = manifest.Associated.Label
	}
	if manifest.Associated.Thumbnail != "" {
		a.assoc[slide.AssociatedThumbnail] = manifest.Associated.Thumbnail
	}
	if manifest.Associated.Macrograph != "" {
		a.assoc[slide.AssociatedMacrograph] = manifest.Associated.Macrograph
	}
	return a, nil
}

func openLevelFile(path string, tileW, tileH, tileCountX int) (*levelFile, error) {
	res, err := parser.ParseFile(path, parser.WithReadOption(parser.ReadAll))
	if err != nil {
		return nil, err
	}

	ts := res.TransferSyntax
	var isJPEG bool
	switch ts {
	case transfer.JPEGBaseline8Bit:
		isJPEG = true
	case transfer.ExplicitVRLittleEndian, transfer.ImplicitVRLittleEndian:
	default:
		return nil, fmt.Errorf("transfer syntax %s not supported", ts.UID().UID())
	}

	pd, err := imaging.CreatePixelData(res.Dataset)
	if err != nil {
		return nil, err
	}
	if int(pd.Info.Width) != tileW || int(pd.Info.Height) != tileH {
		return nil, fmt.Errorf("frame size %dx%d, manifest tile size %dx%d",
			pd.Info.Width, pd.Info.Height, tileW, tileH)
	}
	gray := int(pd.Info.SamplesPerPixel) == 1
	if !isJPEG {
		if int(pd.Info.BitsAllocated) != 8 {
			return nil, fmt.Errorf("bits allocated %d, only 8-bit frames supported", pd.Info.BitsAllocated)
		}
		if !gray {
			if int(pd.Info.SamplesPerPixel) != 3 {
				return nil, fmt.Errorf("samples per pixel %d", pd.Info.SamplesPerPixel)
			}
			if pi, ok := res.Dataset.GetString(tag.PhotometricInterpretation); ok && pi != "RGB" {
				return nil, fmt.Errorf("photometric interpretation %s, want RGB", pi)
			}
		}
	}
	return &levelFile{
		tileCountX: tileCountX,
		frameCount: int(pd.FrameCount()),
		jpeg:       isJPEG,
		gray:       gray,
		getFrame:   pd.GetFrame,
	}, nil
}

// bgraFromNative converts one native little-endian frame to BGRA:
// interleaved RGB samples or replicated grayscale.
func bgraFromNative(frame []byte, w, h int, gray bool) ([]byte, error) {
	pixels := w * h
	samples := 3
	if gray {
		samples = 1
	}
	if len(frame) != pixels*samples {
		return nil, fmt.Errorf("frame is %d bytes for %dx%d with %d samples", len(frame), w, h, samples)
	}
	out := make([]byte, pixels*4)
	if gray {
		for i := 0; i < pixels; i++ {
			v := frame[i]
			o := i * 4
			out[o], out[o+1], out[o+2], out[o+3] = v, v, v, 0xFF
		}
		return out, nil
	}
	for i := 0; i < pixels; i++ {
		s := i * 3
		o := i * 4
		out[o] = frame[s+2]
		out[o+1] = frame[s+1]
		out[o+2] = frame[s]
		out[o+3] = 0xFF
	}
	return out, nil
}

// Info implements slide.Backend.
func (a *Archive) Info() *slide.Info { return a.info }

// Tile implements slide.Backend. Images or frames the manifest does not
// cover report slide.ErrTileNotStored; the slide layer decides whether
// that is a background fill or a failure.
func (a *Archive) Tile(ref slide.TileRef) (slide.TilePayload, error) {
	lf, ok := a.files[fileKey{level: ref.Level, plane: ref.Plane, channel: ref.Channel}]
	if !ok {
		return slide.TilePayload{}, slide.ErrTileNotStored
	}
	frame := ref.Y*lf.tileCountX + ref.X
	if frame < 0 || frame >= lf.frameCount {
		return slide.TilePayload{}, slide.ErrTileNotStored
	}
	data, err := lf.getFrame(frame)
	if err != nil {
		return slide.TilePayload{}, fmt.Errorf("frame %d: %w", frame, err)
	}
	if lf.jpeg {
		return slide.TilePayload{Data: data, Format: slide.FormatJPEG}, nil
	}
	tw, th := a.info.Pyramid.TileSize()
	bgra, err := bgraFromNative(data, tw, th, lf.gray)
	if err != nil {
		return slide.TilePayload{}, err
	}
	return slide.TilePayload{Data: bgra, Format: slide.FormatRaw, Width: tw, Height: th}, nil
}

// AssociatedImage implements slide.Backend, returning the companion file
// bytes as stored.
func (a *Archive) AssociatedImage(kind slide.AssociatedImageKind) ([]byte, error) {
	name, ok := a.assoc[kind]
	if !ok {
		return nil, slide.ErrNotExist
	}
	data, err := os.ReadFile(filepath.Join(a.dir, name))
	if err != nil {
		return nil, fmt.Errorf("associated %s: %w", kind, err)
	}
	return data, nil
}

// Close implements slide.Backend.
func (a *Archive) Close() error {
	a.files = nil
	a.assoc = nil
	return nil
}

type driver struct{}

func (driver) Name() string { return "dcm" }

func (driver) Extensions() []string { return []string{".dcmwsi"} }

func (driver) Open(path string) (slide.Backend, error) { return Open(path) }

func init() {
	if err := slide.RegisterDriver(driver{}); err != nil {
		panic(err)
	}
}
