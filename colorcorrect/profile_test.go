package colorcorrect_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cocosip/go-wsi/colorcorrect"
)

func TestParseProfile(t *testing.T) {
	doc := []byte(`
style: gorgeous
gamma: 0.9
rgb_rate: [1.1, 1.0, 0.95]
hsv_rate: [1.0, 1.2, 1.0]
ccm: [0.9, 0.05, 0.05, 0.1, 0.85, 0.05, 0.0, 0.1, 0.9]
`)
	params, style, err := colorcorrect.ParseProfile(doc)
	if err != nil {
		t.Fatalf("ParseProfile failed: %v", err)
	}
	if style != colorcorrect.StyleGorgeous {
		t.Errorf("style = %v, want %v", style, colorcorrect.StyleGorgeous)
	}
	if params.Gamma != 0.9 {
		t.Errorf("gamma = %v, want 0.9", params.Gamma)
	}
	if params.RGBRate != [3]float64{1.1, 1.0, 0.95} {
		t.Errorf("rgb_rate = %v", params.RGBRate)
	}
	if params.CCM[4] != 0.85 {
		t.Errorf("ccm[4] = %v, want 0.85", params.CCM[4])
	}
}

func TestParseProfileDefaults(t *testing.T) {
	// Absent keys keep identity defaults; an empty document is a full
	// identity profile in the real style.
	params, style, err := colorcorrect.ParseProfile([]byte("style: real\n"))
	if err != nil {
		t.Fatalf("ParseProfile failed: %v", err)
	}
	if style != colorcorrect.StyleReal {
		t.Errorf("style = %v, want %v", style, colorcorrect.StyleReal)
	}
	if !params.Identity() {
		t.Errorf("params = %+v, want identity", params)
	}
}

func TestParseProfileErrors(t *testing.T) {
	if _, _, err := colorcorrect.ParseProfile([]byte("style: vivid\n")); err == nil {
		t.Error("ParseProfile accepted an unknown style")
	}
	if _, _, err := colorcorrect.ParseProfile([]byte("gamma: [broken\n")); err == nil {
		t.Error("ParseProfile accepted malformed yaml")
	}
	if _, _, err := colorcorrect.ParseProfile([]byte("gamma: -2\n")); err == nil {
		t.Error("ParseProfile accepted a negative gamma")
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "correction.yaml")
	doc := "style: real\ngamma: 1.5\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	params, style, err := colorcorrect.LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if style != colorcorrect.StyleReal || params.Gamma != 1.5 {
		t.Errorf("got style %v gamma %v, want real 1.5", style, params.Gamma)
	}

	if _, _, err := colorcorrect.LoadProfile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadProfile accepted a missing file")
	}
}
