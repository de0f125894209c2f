package vga

import "periph.io/x/conn/v3/physic"

// Timing is the four-phase description of a scanline (in pixels) or a
// frame (in lines): a visible region followed by a front porch, a sync
// pulse and a back porch.
type Timing struct {
	Visible    uint16
	FrontPorch uint16
	SyncPulse  uint16
	BackPorch  uint16
}

// Whole returns the sum of all four fields: the total pixel or line count
// of one period, including blanking.
func (t Timing) Whole() int {
	return int(t.Visible) + int(t.FrontPorch) + int(t.SyncPulse) + int(t.BackPorch)
}

// Validate checks the invariants from spec.md §3/§8.1: every field is
// strictly positive and Visible is the largest of the four.
func (t Timing) Validate() error {
	if t.Visible == 0 || t.FrontPorch == 0 || t.SyncPulse == 0 || t.BackPorch == 0 {
		return errorf(ErrInvalidParameter, "timing fields must all be positive: %+v", t)
	}
	if t.Visible <= t.FrontPorch || t.Visible <= t.SyncPulse || t.Visible <= t.BackPorch {
		return errorf(ErrInvalidParameter, "visible area must be the largest field: %+v", t)
	}
	if t.Whole() > 0xFFFF {
		return errorf(ErrInvalidParameter, "whole period %d does not fit in 16 bits", t.Whole())
	}
	return nil
}

// scale divides every field of t by s using integer division, then folds
// whatever pixels integer division lost back into the front porch so that
// the scaled whole exactly equals floor(original whole / s).
//
// Ported from vgascreenbuffer.c's ScaleTiming, generalized to the scaling
// loss formula documented in spec.md §4.2/§8.2/S4/S5 instead of the
// original's single hard-coded scale of 2.
func (t Timing) scale(s int) Timing {
	scaled := Timing{
		Visible:    t.Visible / uint16(s),
		FrontPorch: t.FrontPorch / uint16(s),
		SyncPulse:  t.SyncPulse / uint16(s),
		BackPorch:  t.BackPorch / uint16(s),
	}
	wantWhole := t.Whole() / s
	loss := wantWhole - scaled.Whole()
	if loss > 0 {
		scaled.FrontPorch += uint16(loss)
	}
	return scaled
}

// VideoFrameInfo is the complete timing description of a VGA frame: the
// pixel clock and the horizontal (pixel) and vertical (line) Timing.
type VideoFrameInfo struct {
	PixelFrequency physic.Frequency
	HTiming        Timing
	VTiming        Timing
}

// VideoFrame800x600At60Hz is the baseline mode this engine is calibrated
// for: 40 MHz pixel clock, HTiming = (800, 40, 128, 88), VTiming =
// (600, 1, 4, 23).
var VideoFrame800x600At60Hz = VideoFrameInfo{
	PixelFrequency: 40 * physic.MegaHertz,
	HTiming:        Timing{Visible: 800, FrontPorch: 40, SyncPulse: 128, BackPorch: 88},
	VTiming:        Timing{Visible: 600, FrontPorch: 1, SyncPulse: 4, BackPorch: 23},
}

// Validate checks both of the frame's Timing values.
func (f VideoFrameInfo) Validate() error {
	if f.PixelFrequency <= 0 {
		return errorf(ErrInvalidParameter, "pixel frequency must be positive, got %s", f.PixelFrequency)
	}
	if err := f.HTiming.Validate(); err != nil {
		return errors2wrap(err, "horizontal timing")
	}
	if err := f.VTiming.Validate(); err != nil {
		return errors2wrap(err, "vertical timing")
	}
	return nil
}

// Scale divides the pixel clock and both Timing values by s, an integer
// scale factor used to emit each source pixel for s pixel-clock cycles.
// The result is re-validated before being returned, per spec.md §4.2.
func (f VideoFrameInfo) Scale(s int) (VideoFrameInfo, error) {
	if s < 1 {
		return VideoFrameInfo{}, errorf(ErrInvalidParameter, "scale must be >= 1, got %d", s)
	}
	if err := f.Validate(); err != nil {
		return VideoFrameInfo{}, err
	}
	if s == 1 {
		return f, nil
	}
	scaled := VideoFrameInfo{
		PixelFrequency: f.PixelFrequency / physic.Frequency(s),
		HTiming:        f.HTiming.scale(s),
		VTiming:        f.VTiming.scale(s),
	}
	if err := scaled.Validate(); err != nil {
		return VideoFrameInfo{}, err
	}
	return scaled, nil
}
