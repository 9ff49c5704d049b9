package colorcorrect_test

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/cocosip/go-wsi/colorcorrect"
)

func fillBGRA(width, height int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	buf := make([]byte, width*height*4)
	for i := 0; i < width*height; i++ {
		buf[i*4+0] = byte(rng.Intn(256))
		buf[i*4+1] = byte(rng.Intn(256))
		buf[i*4+2] = byte(rng.Intn(256))
		buf[i*4+3] = 0xFF
	}
	return buf
}

func TestIdentityParamsAreNoOp(t *testing.T) {
	for _, style := range []colorcorrect.Style{colorcorrect.StyleReal, colorcorrect.StyleGorgeous} {
		t.Run(style.String(), func(t *testing.T) {
			table, err := colorcorrect.BuildTable(colorcorrect.DefaultParams(), style)
			if err != nil {
				t.Fatalf("BuildTable failed: %v", err)
			}

			width, height := 64, 32
			buf := fillBGRA(width, height, 7)
			orig := bytes.Clone(buf)

			if err := colorcorrect.Apply(buf, width, height, table, 1); err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			if !bytes.Equal(buf, orig) {
				t.Error("identity table changed pixel data")
			}
		})
	}
}

func TestRealStyleRates(t *testing.T) {
	p := colorcorrect.DefaultParams()
	p.RGBRate = [3]float64{2, 1, 0.5}
	table, err := colorcorrect.BuildTable(p, colorcorrect.StyleReal)
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}

	// One pixel, B=100 G=50 R=30: R doubles, G holds, B halves.
	buf := []byte{100, 50, 30, 0xFF}
	if err := colorcorrect.Apply(buf, 1, 1, table, 1); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if buf[0] != 50 || buf[1] != 50 || buf[2] != 60 {
		t.Errorf("corrected BGR = (%d,%d,%d), want (50,50,60)", buf[0], buf[1], buf[2])
	}
	if buf[3] != 0xFF {
		t.Errorf("alpha changed to %d", buf[3])
	}

	// Saturation at 255.
	buf = []byte{10, 10, 200, 0xFF}
	if err := colorcorrect.Apply(buf, 1, 1, table, 1); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if buf[2] != 255 {
		t.Errorf("R = %d, want saturated 255", buf[2])
	}
}

func TestRealStyleGamma(t *testing.T) {
	p := colorcorrect.DefaultParams()
	p.Gamma = 0.5
	table, err := colorcorrect.BuildTable(p, colorcorrect.StyleReal)
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}

	// 255*(64/255)^0.5 rounds to 128.
	buf := []byte{64, 64, 64, 0xFF}
	if err := colorcorrect.Apply(buf, 1, 1, table, 1); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for c := 0; c < 3; c++ {
		if buf[c] != 128 {
			t.Errorf("component %d = %d, want 128", c, buf[c])
		}
	}

	// Gamma fixes the endpoints.
	buf = []byte{0, 0, 0, 0xFF}
	colorcorrect.Apply(buf, 1, 1, table, 1)
	if buf[0] != 0 {
		t.Errorf("black moved to %d", buf[0])
	}
	buf = []byte{255, 255, 255, 0xFF}
	colorcorrect.Apply(buf, 1, 1, table, 1)
	if buf[0] != 255 {
		t.Errorf("white moved to %d", buf[0])
	}
}

func TestRealStyleRowNormalizedCCM(t *testing.T) {
	// Rows summing to 1 keep gray inputs fixed: the real style feeds each
	// channel the canonical gray triple.
	p := colorcorrect.DefaultParams()
	p.CCM = [9]float64{
		0.5, 0.25, 0.25,
		0.1, 0.8, 0.1,
		0.25, 0.25, 0.5,
	}
	table, err := colorcorrect.BuildTable(p, colorcorrect.StyleReal)
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}

	buf := fillBGRA(16, 16, 11)
	orig := bytes.Clone(buf)
	if err := colorcorrect.Apply(buf, 16, 16, table, 1); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !bytes.Equal(buf, orig) {
		t.Error("row-normalized CCM changed pixels under the real style")
	}
}

func TestGorgeousValueRate(t *testing.T) {
	p := colorcorrect.DefaultParams()
	p.HSVRate = [3]float64{1, 1, 0.5}
	table, err := colorcorrect.BuildTable(p, colorcorrect.StyleGorgeous)
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}

	tests := []struct {
		name    string
		in      [3]byte // B, G, R
		want    [3]byte
		maxDiff int
	}{
		{"bright gray halves", [3]byte{200, 200, 200}, [3]byte{100, 100, 100}, 1},
		{"odd value", [3]byte{201, 201, 201}, [3]byte{100, 100, 100}, 2},
		{"black stays", [3]byte{0, 0, 0}, [3]byte{0, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := []byte{tt.in[0], tt.in[1], tt.in[2], 0xFF}
			if err := colorcorrect.Apply(buf, 1, 1, table, 1); err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			for c := 0; c < 3; c++ {
				d := int(buf[c]) - int(tt.want[c])
				if d < 0 {
					d = -d
				}
				if d > tt.maxDiff {
					t.Errorf("component %d = %d, want %d within %d", c, buf[c], tt.want[c], tt.maxDiff)
				}
			}
		})
	}
}

func TestGorgeousDesaturate(t *testing.T) {
	// Saturation rate 0 collapses every color onto its value; the cube
	// delta lands the exact gray for cell-representative inputs.
	p := colorcorrect.DefaultParams()
	p.HSVRate = [3]float64{1, 0, 1}
	table, err := colorcorrect.BuildTable(p, colorcorrect.StyleGorgeous)
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}

	buf := []byte{50, 100, 200, 0xFF} // value = max = 200
	if err := colorcorrect.Apply(buf, 1, 1, table, 1); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for c := 0; c < 3; c++ {
		if buf[c] != 200 {
			t.Errorf("component %d = %d, want 200", c, buf[c])
		}
	}
}

func TestApplyParallelMatchesSerial(t *testing.T) {
	p := colorcorrect.DefaultParams()
	p.Gamma = 0.8
	p.RGBRate = [3]float64{1.2, 0.9, 1.1}
	p.HSVRate = [3]float64{1, 1.1, 0.9}

	for _, style := range []colorcorrect.Style{colorcorrect.StyleReal, colorcorrect.StyleGorgeous} {
		t.Run(style.String(), func(t *testing.T) {
			table, err := colorcorrect.BuildTable(p, style)
			if err != nil {
				t.Fatalf("BuildTable failed: %v", err)
			}

			width, height := 97, 53 // odd sizes, uneven row chunks
			serial := fillBGRA(width, height, 23)
			parallel := bytes.Clone(serial)

			if err := colorcorrect.Apply(serial, width, height, table, 1); err != nil {
				t.Fatalf("serial Apply failed: %v", err)
			}
			if err := colorcorrect.Apply(parallel, width, height, table, 8); err != nil {
				t.Fatalf("parallel Apply failed: %v", err)
			}
			if !bytes.Equal(serial, parallel) {
				t.Error("parallel apply differs from serial apply")
			}
		})
	}
}

func TestApplyValidation(t *testing.T) {
	table, err := colorcorrect.BuildTable(colorcorrect.DefaultParams(), colorcorrect.StyleReal)
	if err != nil {
		t.Fatalf("BuildTable failed: %v", err)
	}

	if err := colorcorrect.Apply(make([]byte, 16), 2, 2, nil, 1); !errors.Is(err, colorcorrect.ErrNilTable) {
		t.Errorf("nil table: err = %v, want %v", err, colorcorrect.ErrNilTable)
	}
	if err := colorcorrect.Apply(make([]byte, 15), 2, 2, table, 1); !errors.Is(err, colorcorrect.ErrInvalidBuffer) {
		t.Errorf("short buffer: err = %v, want %v", err, colorcorrect.ErrInvalidBuffer)
	}
	if err := colorcorrect.Apply(nil, 0, 0, table, 1); !errors.Is(err, colorcorrect.ErrInvalidBuffer) {
		t.Errorf("zero dims: err = %v, want %v", err, colorcorrect.ErrInvalidBuffer)
	}
}

func TestBuildTableValidation(t *testing.T) {
	bad := colorcorrect.DefaultParams()
	bad.Gamma = 0
	if _, err := colorcorrect.BuildTable(bad, colorcorrect.StyleReal); !errors.Is(err, colorcorrect.ErrInvalidParams) {
		t.Errorf("gamma 0: err = %v, want %v", err, colorcorrect.ErrInvalidParams)
	}

	bad = colorcorrect.DefaultParams()
	bad.RGBRate[1] = -1
	if _, err := colorcorrect.BuildTable(bad, colorcorrect.StyleReal); !errors.Is(err, colorcorrect.ErrInvalidParams) {
		t.Errorf("negative rate: err = %v, want %v", err, colorcorrect.ErrInvalidParams)
	}

	if _, err := colorcorrect.BuildTable(colorcorrect.DefaultParams(), colorcorrect.Style(99)); !errors.Is(err, colorcorrect.ErrInvalidStyle) {
		t.Errorf("bad style: err = %v, want %v", err, colorcorrect.ErrInvalidStyle)
	}
}

func TestParamsIdentity(t *testing.T) {
	if !colorcorrect.DefaultParams().Identity() {
		t.Error("DefaultParams not reported as identity")
	}

	p := colorcorrect.DefaultParams()
	p.CCM[1] = 0.01
	if p.Identity() {
		t.Error("perturbed CCM reported as identity")
	}

	p = colorcorrect.DefaultParams()
	p.Gamma = 1.1
	if p.Identity() {
		t.Error("perturbed gamma reported as identity")
	}
}
