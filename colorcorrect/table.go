package colorcorrect

import "math"

const (
	cubeBits = 7
	cubeSide = 1 << cubeBits // cells per axis

	// CubeEntries is the fixed resolution of the combined gorgeous cube.
	CubeEntries = 1 << (3 * cubeBits)
)

// Table is an engine-owned lookup resource built from one parameter set
// and style. It is immutable once built; style or parameter changes build
// a fresh table.
//
// The real style stores three independent 256-entry output curves. The
// gorgeous style stores a 128x128x128 cube of per-channel deltas against
// each cell's representative color: applying adds the cell delta to the
// actual pixel value, so the identity parameter set corrects nothing by
// construction, with no quantization residue.
type Table struct {
	style  Style
	curves [3][256]uint8 // RGB channel order
	delta  []int16       // CubeEntries cells, 3 deltas per cell (R,G,B)
}

// Style returns the style the table was built for.
func (t *Table) Style() Style {
	return t.style
}

// BuildTable derives a lookup table from the parameters.
//
// Both styles share the base transform, per spec order: CCM, then the
// gamma curve, then per-channel gain. The real style feeds each channel
// the canonical gray triple of its input value; the gorgeous style
// transforms full RGB triples and blends an HSV adjustment on top.
func BuildTable(p Params, style Style) (*Table, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	t := &Table{style: style}
	switch style {
	case StyleReal:
		t.buildCurves(p)
	case StyleGorgeous:
		t.buildCube(p)
	default:
		return nil, ErrInvalidStyle
	}
	return t, nil
}

// correctTriple runs CCM, gamma and gain on one RGB triple in byte scale.
func correctTriple(m *[3][3]float64, gamma float64, rate *[3]float64, r, g, b float64) (float64, float64, float64) {
	var out [3]float64
	in := [3]float64{r, g, b}
	for c := 0; c < 3; c++ {
		base := m[c][0]*in[0] + m[c][1]*in[1] + m[c][2]*in[2]
		x := base / 255
		if x < 0 {
			x = 0
		}
		y := x
		if gamma != 1 {
			y = math.Pow(x, gamma)
		}
		out[c] = rate[c] * 255 * y
	}
	return out[0], out[1], out[2]
}

func (p Params) matrixRows() [3][3]float64 {
	m := p.Matrix()
	var rows [3][3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rows[r][c] = m.At(r, c)
		}
	}
	return rows
}

func (t *Table) buildCurves(p Params) {
	rows := p.matrixRows()
	for v := 0; v < 256; v++ {
		r, g, b := correctTriple(&rows, p.Gamma, &p.RGBRate, float64(v), float64(v), float64(v))
		t.curves[0][v] = clampByte(r)
		t.curves[1][v] = clampByte(g)
		t.curves[2][v] = clampByte(b)
	}
}

func (t *Table) buildCube(p Params) {
	rows := p.matrixRows()
	t.delta = make([]int16, CubeEntries*3)
	for ri := 0; ri < cubeSide; ri++ {
		repR := float64(ri << 1)
		for gi := 0; gi < cubeSide; gi++ {
			repG := float64(gi << 1)
			base := ((ri<<cubeBits)|gi) << cubeBits
			for bi := 0; bi < cubeSide; bi++ {
				repB := float64(bi << 1)

				r, g, b := correctTriple(&rows, p.Gamma, &p.RGBRate, repR, repG, repB)
				r = clamp01(r / 255)
				g = clamp01(g / 255)
				b = clamp01(b / 255)

				h, s, v := RGBToHSV(r, g, b)
				h = math.Mod(h*p.HSVRate[0], 360)
				s = clamp01(s * p.HSVRate[1])
				v = clamp01(v * p.HSVRate[2])
				r, g, b = HSVToRGB(h, s, v)

				i := (base | bi) * 3
				t.delta[i+0] = int16(math.Round(r*255) - repR)
				t.delta[i+1] = int16(math.Round(g*255) - repG)
				t.delta[i+2] = int16(math.Round(b*255) - repB)
			}
		}
	}
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
