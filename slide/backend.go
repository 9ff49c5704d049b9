package slide

import (
	"github.com/cocosip/go-wsi/colorcorrect"
	"github.com/cocosip/go-wsi/pyramid"
)

// WSIType tells brightfield slides from fluorescence slides. The two kinds
// expose different operation sets: color correction is brightfield-only,
// channel access and fusion are fluorescence-only.
type WSIType int

const (
	Brightfield WSIType = iota
	Fluorescence
)

// String returns the lowercase type name.
func (t WSIType) String() string {
	switch t {
	case Brightfield:
		return "brightfield"
	case Fluorescence:
		return "fluorescence"
	default:
		return "unknown"
	}
}

// TileFormat identifies the payload encoding of one stored tile.
type TileFormat int

const (
	// FormatRaw is tightly packed BGRA pixel data.
	FormatRaw TileFormat = iota

	// FormatRawZstd is zstd-compressed FormatRaw data.
	FormatRawZstd

	// FormatJPEG is a baseline JPEG stream. JPEG tiles qualify for the
	// compressed passthrough fast path.
	FormatJPEG

	// FormatPNG is a PNG stream.
	FormatPNG

	// FormatBMP is a BMP stream.
	FormatBMP

	// FormatTIFF is a single-image TIFF stream.
	FormatTIFF

	// FormatHEVC is an HEVC intra frame. Recognized so backends can report
	// it, but the engine has no decoder for it.
	FormatHEVC
)

// String returns the lowercase format name.
func (f TileFormat) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatRawZstd:
		return "raw+zstd"
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatBMP:
		return "bmp"
	case FormatTIFF:
		return "tiff"
	case FormatHEVC:
		return "hevc"
	default:
		return "unknown"
	}
}

// CompositeChannel addresses the composite (brightfield) image rather
// than a single fluorescence channel.
const CompositeChannel = -1

// TileRef addresses one stored tile. Channel is CompositeChannel for the
// composite image and a channel index for fluorescence data. Plane is
// always explicit; callers resolve the reference plane before building a
// ref.
type TileRef struct {
	Level   int
	X       int
	Y       int
	Plane   int
	Channel int
}

// TilePayload is one stored tile as the backend holds it. Width and Height
// are required for the raw formats, where the bytes carry no dimensions of
// their own; self-describing streams may leave them zero.
type TilePayload struct {
	Data   []byte
	Format TileFormat
	Width  int
	Height int
}

// AssociatedImageKind names the optional non-pyramid images a container
// may carry.
type AssociatedImageKind int

const (
	AssociatedLabel AssociatedImageKind = iota
	AssociatedThumbnail
	AssociatedMacrograph
)

// String returns the lowercase kind name.
func (k AssociatedImageKind) String() string {
	switch k {
	case AssociatedLabel:
		return "label"
	case AssociatedThumbnail:
		return "thumbnail"
	case AssociatedMacrograph:
		return "macrograph"
	default:
		return "unknown"
	}
}

// ChannelInfo describes one fluorescence acquisition channel. Indices are
// logical and contiguous; they need not match physical acquisition order.
type ChannelInfo struct {
	ID           int
	Nickname     string
	CubeName     string
	CenterWL     float64 // center wavelength, nm
	ExcitationWL float64 // excitation wavelength, nm
	Bandwidth    float64 // bandwidth around the center, nm
}

// Info is the immutable metadata snapshot a backend publishes at open
// time. The engine reads it freely from any goroutine.
type Info struct {
	// Pyramid holds the per-level geometry.
	Pyramid *pyramid.Index

	// Type partitions the operation surface, see WSIType.
	Type WSIType

	// MppX and MppY are microns per pixel at level 0; zero when unknown.
	MppX float64
	MppY float64

	// Magnification is the nominal objective power; zero when unknown.
	Magnification float64

	// Barcode is the slide barcode, empty when absent.
	Barcode string

	// Sparse marks archives where tile positions may have no stored data.
	Sparse bool

	// Corrected marks archives whose pixels are already color corrected.
	Corrected bool

	// Channels lists fluorescence channels; empty for brightfield.
	Channels []ChannelInfo

	// PlaneCount is the number of focal planes, at least 1.
	PlaneCount int

	// PlaneSpacing is the distance between adjacent planes in microns.
	PlaneSpacing float64

	// PlaneOffsets holds per-plane level-0 pixel drift relative to the
	// middle plane; nil means no drift.
	PlaneOffsets [][2]int

	// Correction carries container-shipped correction parameters, nil
	// when the container has none.
	Correction *colorcorrect.Params

	// Properties are free-form container metadata.
	Properties map[string]string
}

// Backend is the per-format capability interface. Implementations parse
// one container family and hand the engine tiles and metadata; everything
// above this line is format independent.
//
// Backends must allow concurrent Tile calls; the compositor fetches tiles
// from several workers at once.
type Backend interface {
	// Info returns the immutable metadata snapshot.
	Info() *Info

	// Tile returns one stored tile. Sparse archives return
	// ErrTileNotStored for positions without data.
	Tile(ref TileRef) (TilePayload, error)

	// AssociatedImage returns an optional image as a JPEG stream, or
	// ErrNotExist when the container does not carry it.
	AssociatedImage(kind AssociatedImageKind) ([]byte, error)

	// Close releases the backend's resources.
	Close() error
}

// Driver opens containers of one format family.
type Driver interface {
	// Name is the stable driver id used with WithFormat.
	Name() string

	// Extensions lists the path extensions the driver claims, with dots
	// (".dcmwsi").
	Extensions() []string

	// Open parses the container and returns a ready backend.
	Open(path string) (Backend, error)
}
