package vga

// VisualizationRequest is a caller's request to bring the engine up in a
// particular mode, per spec.md §3.
type VisualizationRequest struct {
	Frame          VideoFrameInfo
	Scaling        int
	Bpp            BitsPerPixel
	DoubleBuffered bool
	// Override accepts a mode even if it is not advertised in the EDID's
	// established/standard timing lists, per spec.md §4.9(d).
	Override bool
}

// ModeAdvertiser reports whether a monitor has advertised support for a
// given frame timing. devices/edid.Edid implements this.
type ModeAdvertiser interface {
	Supports(frame VideoFrameInfo) bool
}

// ModeSelector decides whether a VisualizationRequest can be realised
// against a monitor's EDID and this board's resource limits, per
// spec.md §4.9.
type ModeSelector struct {
	Clock       ClockPlan
	ArenaBudget int
}

// Select runs the four-way acceptance test: timing validity, clock
// feasibility, arena budget, and EDID-advertised-or-override. On success
// it returns the scaled VideoFrameInfo the FrameBuffer should be sized
// from; the unscaled req.Frame remains what the SyncGenerator is
// configured with.
func (m ModeSelector) Select(edid ModeAdvertiser, req VisualizationRequest) (VideoFrameInfo, error) {
	if req.Scaling < 1 {
		return VideoFrameInfo{}, errorf(ErrInvalidParameter, "scaling must be >= 1, got %d", req.Scaling)
	}
	if !req.Bpp.valid() {
		return VideoFrameInfo{}, errorf(ErrInvalidParameter, "unsupported bits-per-pixel %d", req.Bpp)
	}
	if err := req.Frame.Validate(); err != nil {
		return VideoFrameInfo{}, errors2wrap(err, "mode selector: timing")
	}

	scaled, err := req.Frame.Scale(req.Scaling)
	if err != nil {
		return VideoFrameInfo{}, errors2wrap(err, "mode selector: scaling")
	}

	if _, _, err := m.Clock.Plan(req.Frame.PixelFrequency); err != nil {
		return VideoFrameInfo{}, errors2wrap(err, "mode selector: clock plan")
	}

	pixelsPerLine := int(scaled.HTiming.Visible) + borderPad
	stride := roundUp4(req.Bpp.BytesPerPixel() * pixelsPerLine)
	size := stride * int(scaled.VTiming.Visible)
	if req.DoubleBuffered {
		size *= 2
	}
	if size > m.ArenaBudget {
		return VideoFrameInfo{}, errorf(ErrUnsupported, "framebuffer size %d bytes exceeds arena budget %d bytes", size, m.ArenaBudget)
	}

	if !req.Override && edid != nil && !edid.Supports(req.Frame) {
		return VideoFrameInfo{}, errorf(ErrUnsupported, "mode not advertised by EDID and no override requested")
	}

	return scaled, nil
}
