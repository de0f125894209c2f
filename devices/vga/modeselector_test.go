package vga

import (
	"testing"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

type fakeAdvertiser bool

func (f fakeAdvertiser) Supports(VideoFrameInfo) bool { return bool(f) }

// S1 "boot to output".
func TestModeSelector_Select_Accepts(t *testing.T) {
	sel := ModeSelector{
		Clock:       ClockPlan{OscillatorFrequency: 19200000 * physic.Hertz},
		ArenaBudget: 1 << 20,
	}
	req := VisualizationRequest{
		Frame:          VideoFrame800x600At60Hz,
		Scaling:        2,
		Bpp:            Bpp8,
		DoubleBuffered: true,
	}
	scaled, err := sel.Select(fakeAdvertiser(true), req)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if scaled.HTiming != (Timing{400, 20, 64, 44}) {
		t.Fatalf("scaled HTiming = %+v", scaled.HTiming)
	}
}

func TestModeSelector_Select_RejectsUnadvertisedWithoutOverride(t *testing.T) {
	sel := ModeSelector{
		Clock:       ClockPlan{OscillatorFrequency: 19200000 * physic.Hertz},
		ArenaBudget: 1 << 20,
	}
	req := VisualizationRequest{Frame: VideoFrame800x600At60Hz, Scaling: 1, Bpp: Bpp8}
	if _, err := sel.Select(fakeAdvertiser(false), req); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("got %v, want ErrUnsupported", err)
	}
}

func TestModeSelector_Select_OverrideBypassesAdvertised(t *testing.T) {
	sel := ModeSelector{
		Clock:       ClockPlan{OscillatorFrequency: 19200000 * physic.Hertz},
		ArenaBudget: 1 << 20,
	}
	req := VisualizationRequest{Frame: VideoFrame800x600At60Hz, Scaling: 1, Bpp: Bpp8, Override: true}
	if _, err := sel.Select(fakeAdvertiser(false), req); err != nil {
		t.Fatalf("Select with override: %v", err)
	}
}

func TestModeSelector_Select_RejectsOverBudget(t *testing.T) {
	sel := ModeSelector{
		Clock:       ClockPlan{OscillatorFrequency: 19200000 * physic.Hertz},
		ArenaBudget: 64,
	}
	req := VisualizationRequest{Frame: VideoFrame800x600At60Hz, Scaling: 1, Bpp: Bpp8, Override: true}
	if _, err := sel.Select(fakeAdvertiser(true), req); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("got %v, want ErrUnsupported", err)
	}
}

func TestModeSelector_Select_RejectsBadTiming(t *testing.T) {
	sel := ModeSelector{
		Clock:       ClockPlan{OscillatorFrequency: 19200000 * physic.Hertz},
		ArenaBudget: 1 << 20,
	}
	bad := VideoFrameInfo{
		PixelFrequency: 40 * physic.MegaHertz,
		HTiming:        Timing{Visible: 100, FrontPorch: 200, SyncPulse: 10, BackPorch: 10},
		VTiming:        Timing{600, 1, 4, 23},
	}
	req := VisualizationRequest{Frame: bad, Scaling: 1, Bpp: Bpp8, Override: true}
	if _, err := sel.Select(fakeAdvertiser(true), req); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("got %v, want ErrInvalidParameter", err)
	}
}
