package memslide

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cocosip/go-wsi/colorcorrect"
	"github.com/cocosip/go-wsi/slide"
)

// sceneFile is the YAML form of a Config. Enumerations travel as
// lowercase strings.
type sceneFile struct {
	Width       int       `yaml:"width"`
	Height      int       `yaml:"height"`
	TileWidth   int       `yaml:"tile_width"`
	TileHeight  int       `yaml:"tile_height"`
	Downsamples []float64 `yaml:"downsamples"`

	Type    string `yaml:"type"`
	Pattern string `yaml:"pattern"`
	Payload string `yaml:"payload"`
	Quality int    `yaml:"quality"`

	Sparse  bool     `yaml:"sparse"`
	Missing [][3]int `yaml:"missing"`
	Corrupt [][3]int `yaml:"corrupt"`

	Channels     []sceneChannel `yaml:"channels"`
	Planes       int            `yaml:"planes"`
	PlaneSpacing float64        `yaml:"plane_spacing"`
	PlaneOffsets [][2]int       `yaml:"plane_offsets"`

	MppX          float64              `yaml:"mpp_x"`
	MppY          float64              `yaml:"mpp_y"`
	Magnification float64              `yaml:"magnification"`
	Barcode       string               `yaml:"barcode"`
	Corrected     bool                 `yaml:"corrected"`
	Correction    *colorcorrect.Params `yaml:"correction"`
	Properties    map[string]string    `yaml:"properties"`
}

type sceneChannel struct {
	ID           int     `yaml:"id"`
	Nickname     string  `yaml:"nickname"`
	CubeName     string  `yaml:"cube_name"`
	CenterWL     float64 `yaml:"center_wl"`
	ExcitationWL float64 `yaml:"excitation_wl"`
	Bandwidth    float64 `yaml:"bandwidth"`
}

// ParseScene decodes a YAML scene description into a Config.
func ParseScene(data []byte) (Config, error) {
	var f sceneFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("parse scene: %w", err)
	}

	cfg := Config{
		Width:         f.Width,
		Height:        f.Height,
		TileWidth:     f.TileWidth,
		TileHeight:    f.TileHeight,
		Downsamples:   f.Downsamples,
		Quality:       f.Quality,
		Sparse:        f.Sparse,
		Missing:       f.Missing,
		Corrupt:       f.Corrupt,
		Planes:        f.Planes,
		PlaneSpacing:  f.PlaneSpacing,
		PlaneOffsets:  f.PlaneOffsets,
		MppX:          f.MppX,
		MppY:          f.MppY,
		Magnification: f.Magnification,
		Barcode:       f.Barcode,
		Corrected:     f.Corrected,
		Correction:    f.Correction,
		Properties:    f.Properties,
	}

	switch strings.ToLower(f.Type) {
	case "", "brightfield":
		cfg.Type = slide.Brightfield
	case "fluorescence":
		cfg.Type = slide.Fluorescence
	default:
		return Config{}, fmt.Errorf("scene type %q", f.Type)
	}
	switch strings.ToLower(f.Pattern) {
	case "", "gradient":
		cfg.Pattern = PatternGradient
	case "checker":
		cfg.Pattern = PatternChecker
	case "solid":
		cfg.Pattern = PatternSolid
	default:
		return Config{}, fmt.Errorf("scene pattern %q", f.Pattern)
	}
	switch strings.ToLower(f.Payload) {
	case "", "raw":
		cfg.Payload = slide.FormatRaw
	case "raw_zstd", "zstd":
		cfg.Payload = slide.FormatRawZstd
	case "jpeg":
		cfg.Payload = slide.FormatJPEG
	case "png":
		cfg.Payload = slide.FormatPNG
	default:
		return Config{}, fmt.Errorf("scene payload %q", f.Payload)
	}

	for _, c := range f.Channels {
		cfg.Channels = append(cfg.Channels, slide.ChannelInfo{
			ID:           c.ID,
			Nickname:     c.Nickname,
			CubeName:     c.CubeName,
			CenterWL:     c.CenterWL,
			ExcitationWL: c.ExcitationWL,
			Bandwidth:    c.Bandwidth,
		})
	}
	return cfg, nil
}

// LoadScene reads a YAML scene file and builds the slide it describes.
func LoadScene(path string) (*Memslide, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	cfg, err := ParseScene(data)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

type driver struct{}

func (driver) Name() string { return "mem" }

func (driver) Extensions() []string { return []string{".wsiscene"} }

func (driver) Open(path string) (slide.Backend, error) { return LoadScene(path) }

func init() {
	if err := slide.RegisterDriver(driver{}); err != nil {
		panic(err)
	}
}
