package colorcorrect

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the file form of a correction parameter set, as shipped
// alongside a slide container. Absent keys keep their identity defaults.
type Profile struct {
	Style   string     `yaml:"style"`
	Gamma   float64    `yaml:"gamma"`
	RGBRate [3]float64 `yaml:"rgb_rate"`
	HSVRate [3]float64 `yaml:"hsv_rate"`
	CCM     [9]float64 `yaml:"ccm"`
}

func defaultProfile() Profile {
	p := DefaultParams()
	return Profile{
		Style:   StyleReal.String(),
		Gamma:   p.Gamma,
		RGBRate: p.RGBRate,
		HSVRate: p.HSVRate,
		CCM:     p.CCM,
	}
}

// ParseProfile reads a YAML profile document.
func ParseProfile(data []byte) (Params, Style, error) {
	prof := defaultProfile()
	if err := yaml.Unmarshal(data, &prof); err != nil {
		return Params{}, 0, fmt.Errorf("parse profile: %w", err)
	}
	style, err := ParseStyle(prof.Style)
	if err != nil {
		return Params{}, 0, err
	}
	params := Params{
		RGBRate: prof.RGBRate,
		HSVRate: prof.HSVRate,
		Gamma:   prof.Gamma,
		CCM:     prof.CCM,
	}
	if err := params.Validate(); err != nil {
		return Params{}, 0, err
	}
	return params, style, nil
}

// LoadProfile reads a YAML profile file.
func LoadProfile(path string) (Params, Style, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, 0, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}
