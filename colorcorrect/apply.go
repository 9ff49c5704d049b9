package colorcorrect

import (
	"fmt"
	"sync"
)

// Apply corrects a BGRA buffer in place through a built table, leaving
// alpha untouched. With workers above 1 the rows are split across
// goroutines; parallel and serial application produce identical pixels.
func Apply(buf []byte, width, height int, t *Table, workers int) error {
	if t == nil {
		return ErrNilTable
	}
	if width < 1 || height < 1 || len(buf) != width*height*4 {
		return fmt.Errorf("%w: got %d bytes for %dx%d", ErrInvalidBuffer, len(buf), width, height)
	}

	if workers <= 1 || height == 1 {
		t.applyRows(buf, width, 0, height)
		return nil
	}

	chunk := (height + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < height; start += chunk {
		end := min(start+chunk, height)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			t.applyRows(buf, width, s, e)
		}(start, end)
	}
	wg.Wait()
	return nil
}

func (t *Table) applyRows(buf []byte, width, rowStart, rowEnd int) {
	switch t.style {
	case StyleReal:
		for i := rowStart * width * 4; i < rowEnd*width*4; i += 4 {
			buf[i+0] = t.curves[2][buf[i+0]]
			buf[i+1] = t.curves[1][buf[i+1]]
			buf[i+2] = t.curves[0][buf[i+2]]
		}
	case StyleGorgeous:
		for i := rowStart * width * 4; i < rowEnd*width*4; i += 4 {
			b := int(buf[i+0])
			g := int(buf[i+1])
			r := int(buf[i+2])
			cell := (((r>>1)<<cubeBits|(g>>1))<<cubeBits | (b >> 1)) * 3
			buf[i+2] = clampAdd(r, t.delta[cell+0])
			buf[i+1] = clampAdd(g, t.delta[cell+1])
			buf[i+0] = clampAdd(b, t.delta[cell+2])
		}
	}
}

func clampAdd(v int, d int16) uint8 {
	v += int(d)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
