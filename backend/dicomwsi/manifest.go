package dicomwsi

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cocosip/go-wsi/colorcorrect"
	"github.com/cocosip/go-wsi/slide"
)

// Manifest describes a DICOM-backed slide: one directory holding this
// file plus one DICOM file per pyramid image. Frames inside each DICOM
// file are row-major tiles (frame = tileY*tileCountX + tileX).
type Manifest struct {
	Format        int                  `yaml:"format"`
	Type          string               `yaml:"type"`
	MppX          float64              `yaml:"mpp_x"`
	MppY          float64              `yaml:"mpp_y"`
	Magnification float64              `yaml:"magnification"`
	Barcode       string               `yaml:"barcode"`
	TileWidth     int                  `yaml:"tile_width"`
	TileHeight    int                  `yaml:"tile_height"`
	Sparse        bool                 `yaml:"sparse"`
	Corrected     bool                 `yaml:"corrected"`
	Levels        []ManifestLevel      `yaml:"levels"`
	Channels      []ManifestChannel    `yaml:"channels"`
	Planes        ManifestPlanes       `yaml:"planes"`
	Correction    *colorcorrect.Params `yaml:"correction"`
	Associated    ManifestAssociated   `yaml:"associated"`
	Properties    map[string]string    `yaml:"properties"`
}

// ManifestLevel names one DICOM file and the image it carries. Entries
// sharing a downsample form one pyramid level; plane and channel select
// the focal plane and fluorescence channel the file holds. A nil channel
// means the composite image.
type ManifestLevel struct {
	File       string  `yaml:"file"`
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Downsample float64 `yaml:"downsample"`
	Plane      int     `yaml:"plane"`
	Channel    *int    `yaml:"channel"`
}

// ManifestChannel mirrors slide.ChannelInfo in YAML form.
type ManifestChannel struct {
	ID           int     `yaml:"id"`
	Nickname     string  `yaml:"nickname"`
	CubeName     string  `yaml:"cube_name"`
	CenterWL     float64 `yaml:"center_wl"`
	ExcitationWL float64 `yaml:"excitation_wl"`
	Bandwidth    float64 `yaml:"bandwidth"`
}

// ManifestPlanes describes the focal plane stack.
type ManifestPlanes struct {
	Count   int      `yaml:"count"`
	Spacing float64  `yaml:"spacing"`
	Offsets [][2]int `yaml:"offsets"`
}

// ManifestAssociated names the companion image files, empty when absent.
type ManifestAssociated struct {
	Label      string `yaml:"label"`
	Thumbnail  string `yaml:"thumbnail"`
	Macrograph string `yaml:"macrograph"`
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{
		TileWidth:  256,
		TileHeight: 256,
		Planes:     ManifestPlanes{Count: 1},
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

func (m *Manifest) validate() error {
	if m.Format != 0 && m.Format != 1 {
		return fmt.Errorf("manifest format %d not supported", m.Format)
	}
	switch strings.ToLower(m.Type) {
	case "", "brightfield", "fluorescence":
	default:
		return fmt.Errorf("manifest type %q", m.Type)
	}
	if m.TileWidth < 1 || m.TileHeight < 1 {
		return fmt.Errorf("manifest tile size %dx%d", m.TileWidth, m.TileHeight)
	}
	if len(m.Levels) == 0 {
		return fmt.Errorf("manifest names no levels")
	}
	if m.Planes.Count < 1 {
		return fmt.Errorf("manifest plane count %d", m.Planes.Count)
	}
	if n := len(m.Planes.Offsets); n != 0 && n != m.Planes.Count {
		return fmt.Errorf("manifest has %d plane offsets for %d planes", n, m.Planes.Count)
	}
	fluorescence := m.WSIType() == slide.Fluorescence
	if fluorescence && len(m.Channels) == 0 {
		return fmt.Errorf("fluorescence manifest names no channels")
	}
	if !fluorescence && len(m.Channels) > 0 {
		return fmt.Errorf("brightfield manifest cannot name channels")
	}

	seen := make(map[fileKey]string)
	for i, e := range m.Levels {
		if e.File == "" {
			return fmt.Errorf("level entry %d names no file", i)
		}
		if e.Width < 1 || e.Height < 1 {
			return fmt.Errorf("level entry %d extent %dx%d", i, e.Width, e.Height)
		}
		if e.Downsample <= 0 {
			return fmt.Errorf("level entry %d downsample %v", i, e.Downsample)
		}
		if e.Plane < 0 || e.Plane >= m.Planes.Count {
			return fmt.Errorf("level entry %d plane %d of %d", i, e.Plane, m.Planes.Count)
		}
		ch := e.ChannelIndex()
		if ch != slide.CompositeChannel && (ch < 0 || ch >= len(m.Channels)) {
			return fmt.Errorf("level entry %d channel %d of %d", i, ch, len(m.Channels))
		}
		key := fileKey{level: m.levelIndex(e.Downsample), plane: e.Plane, channel: ch}
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("level entries %s and %s address the same image", prev, e.File)
		}
		seen[key] = e.File
	}

	for _, d := range m.downsamples() {
		entries := m.entriesFor(d)
		w, h := entries[0].Width, entries[0].Height
		for _, e := range entries[1:] {
			if e.Width != w || e.Height != h {
				return fmt.Errorf("downsample %v entries disagree on extent: %dx%d vs %dx%d",
					d, w, h, e.Width, e.Height)
			}
		}
	}
	return nil
}

// WSIType returns the manifest's slide type, brightfield by default.
func (m *Manifest) WSIType() slide.WSIType {
	if strings.EqualFold(m.Type, "fluorescence") {
		return slide.Fluorescence
	}
	return slide.Brightfield
}

// ChannelIndex returns the entry's channel, or the composite when the
// manifest leaves it unset.
func (e ManifestLevel) ChannelIndex() int {
	if e.Channel == nil {
		return slide.CompositeChannel
	}
	return *e.Channel
}

// downsamples returns the distinct downsample factors in ascending
// order; their positions are the pyramid level indices.
func (m *Manifest) downsamples() []float64 {
	var ds []float64
	for _, e := range m.Levels {
		found := false
		for _, d := range ds {
			if d == e.Downsample {
				found = true
				break
			}
		}
		if !found {
			ds = append(ds, e.Downsample)
		}
	}
	sort.Float64s(ds)
	return ds
}

func (m *Manifest) levelIndex(downsample float64) int {
	for i, d := range m.downsamples() {
		if d == downsample {
			return i
		}
	}
	return -1
}

func (m *Manifest) entriesFor(downsample float64) []ManifestLevel {
	var out []ManifestLevel
	for _, e := range m.Levels {
		if e.Downsample == downsample {
			out = append(out, e)
		}
	}
	return out
}

// channelInfos converts the manifest channels to the backend form.
func (m *Manifest) channelInfos() []slide.ChannelInfo {
	out := make([]slide.ChannelInfo, 0, len(m.Channels))
	for _, c := range m.Channels {
		out = append(out, slide.ChannelInfo{
			ID:           c.ID,
			Nickname:     c.Nickname,
			CubeName:     c.CubeName,
			CenterWL:     c.CenterWL,
			ExcitationWL: c.ExcitationWL,
			Bandwidth:    c.Bandwidth,
		})
	}
	return out
}
