package slide

import (
	"github.com/cocosip/go-wsi/colorcorrect"
)

// ApplyColorCorrection enables or disables color correction for
// brightfield reads.
//
// Enabling builds the lookup table for the requested style from the
// archive's correction parameters (identity defaults when the archive
// ships none) and swaps it in whole; re-enabling the active style is a
// no-op, switching styles rebuilds the table. Disabling drops the table,
// so an enable/disable round trip leaves pixel output bit-exact.
// Archives whose pixels were corrected at scan time treat enabling as an
// immediate success without building anything. Fluorescence slides
// reject correction with ErrFluorescence. Reads in flight during the
// swap may see either table.
func (s *Slide) ApplyColorCorrection(enable bool, style colorcorrect.Style) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.info.Type == Fluorescence {
		return ErrFluorescence
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !enable {
		s.table.Store(nil)
		return nil
	}
	if s.info.Corrected {
		return nil
	}
	if s.table.Load() != nil && s.style == style {
		return nil
	}
	params := colorcorrect.DefaultParams()
	if s.info.Correction != nil {
		params = *s.info.Correction
	}
	t, err := colorcorrect.BuildTable(params, style)
	if err != nil {
		return err
	}
	Logger().Debug("color table built", "style", style.String())
	s.style = style
	s.table.Store(t)
	return nil
}

// Corrected reports whether correction applies to reads, either enabled
// on this handle or baked into the archive at scan time.
func (s *Slide) Corrected() bool {
	return s.info.Corrected || s.table.Load() != nil
}

func (s *Slide) correcting() bool { return s.table.Load() != nil }

// correctInPlace runs the active correction table over a composited
// buffer. No table, no work.
func (s *Slide) correctInPlace(buf []byte, w, h int) error {
	t := s.table.Load()
	if t == nil {
		return nil
	}
	return colorcorrect.Apply(buf, w, h, t, s.workers)
}
