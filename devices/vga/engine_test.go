package vga

import (
	"testing"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"

	"github.com/go-vga/vgascan/devices/vga/vgatest"
	"github.com/go-vga/vgascan/host/ramarena"
)

// testFrame is a small, fast-iterating frame used for engine tests; only
// its whole-period structure matters, not realism against a real monitor.
var testFrame = VideoFrameInfo{
	PixelFrequency: 40 * physic.MegaHertz,
	HTiming:        Timing{Visible: 8, FrontPorch: 2, SyncPulse: 2, BackPorch: 2},
	VTiming:        Timing{Visible: 4, FrontPorch: 1, SyncPulse: 1, BackPorch: 1},
}

func newTestEngine(t *testing.T) (*ScanoutEngine, *vgatest.DMA, *vgatest.SyncPair) {
	t.Helper()
	arena := ramarena.New(1 << 20)
	fb, err := NewFrameBuffer(arena, Bpp8, int(testFrame.HTiming.Visible), int(testFrame.VTiming.Visible), true)
	if err != nil {
		t.Fatalf("NewFrameBuffer: %v", err)
	}
	fakeDMA := &vgatest.DMA{}
	fakeSync := &vgatest.SyncPair{Period: 25 * time.Nanosecond}
	e := NewScanoutEngine(
		testFrame,
		testFrame,
		fb,
		NewSyncGenerator(fakeSync),
		NewLineDma(fakeDMA, Bpp8),
		ClockPlan{OscillatorFrequency: 19200000 * physic.Hertz},
		10*time.Nanosecond,
	)
	return e, fakeDMA, fakeSync
}

func activeStartLine() int {
	return int(testFrame.VTiming.FrontPorch) + int(testFrame.VTiming.SyncPulse) + int(testFrame.VTiming.BackPorch)
}

func TestScanoutEngine_Start(t *testing.T) {
	e, _, fakeSync := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if e.State() != RunningVSync {
		t.Fatalf("state = %s, want Running-VSync", e.State())
	}
	if !fakeSync.Started {
		t.Fatalf("expected sync generator to have been started")
	}
	if !fakeSync.Blanked {
		t.Fatalf("expected blanking forced on during vertical sync")
	}
}

func TestScanoutEngine_VSyncToActiveTransition(t *testing.T) {
	e, fakeDMA, fakeSync := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	fakeSync.TickLine(activeStartLine())
	if e.State() != RunningActive {
		t.Fatalf("state = %s, want Running-Active", e.State())
	}
	if fakeSync.Blanked {
		t.Fatalf("expected blanking released on entering active region")
	}
	if len(fakeDMA.Armed) != 1 {
		t.Fatalf("expected one armed line, got %d", len(fakeDMA.Armed))
	}
}

func TestScanoutEngine_ActiveRegion_WrapsToVSync(t *testing.T) {
	e, fakeDMA, fakeSync := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fakeSync.TickLine(activeStartLine())

	visible := int(testFrame.VTiming.Visible)
	for i := 0; i < visible; i++ {
		fakeSync.TickLine(0)
	}

	if e.State() != RunningVSync {
		t.Fatalf("state = %s, want Running-VSync after %d active lines", e.State(), visible)
	}
	if len(fakeDMA.Armed) != visible {
		t.Fatalf("expected %d armed lines, got %d", visible, len(fakeDMA.Armed))
	}
	if fakeDMA.Disabled == 0 {
		t.Fatalf("expected dma disabled on wrap to vertical blanking")
	}
}

// Invariant 7: suspend/resume returns to the same Running-* substate.
func TestScanoutEngine_SuspendResume(t *testing.T) {
	e, _, fakeSync := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fakeSync.TickLine(activeStartLine())

	if err := e.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if e.State() != Suspended {
		t.Fatalf("state = %s, want Suspended", e.State())
	}
	if err := e.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if e.State() != RunningActive {
		t.Fatalf("state = %s, want Running-Active after resume", e.State())
	}
}

// Invariant 7: configure -> start -> stop returns to Stopped.
func TestScanoutEngine_Stop(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if e.State() != Stopped {
		t.Fatalf("state = %s, want Stopped", e.State())
	}
	if err := e.Stop(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second Stop: got %v, want ErrInvalidState", err)
	}
}

func TestScanoutEngine_Resume_RequiresSuspended(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.Resume(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
}

func TestScanoutEngine_DmaFault_TransitionsToFaulted(t *testing.T) {
	e, fakeDMA, fakeSync := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fakeSync.TickLine(activeStartLine())

	fakeDMA.Fault = errors.New("simulated underrun")
	fakeSync.TickLine(0)

	if e.State() != Faulted {
		t.Fatalf("state = %s, want Faulted", e.State())
	}
	select {
	case rec := <-e.Faults():
		if !errors.Is(rec.Cause, ErrDmaFault) {
			t.Fatalf("fault cause = %v, want ErrDmaFault", rec.Cause)
		}
	default:
		t.Fatalf("expected a FaultRecord on the Faults channel")
	}
}

func TestScanoutEngine_Start_RefusesShortBackPorch(t *testing.T) {
	arena := ramarena.New(1 << 20)
	fb, err := NewFrameBuffer(arena, Bpp8, int(testFrame.HTiming.Visible), int(testFrame.VTiming.Visible), true)
	if err != nil {
		t.Fatalf("NewFrameBuffer: %v", err)
	}
	fakeDMA := &vgatest.DMA{}
	fakeSync := &vgatest.SyncPair{Period: 1 * time.Nanosecond}
	e := NewScanoutEngine(
		testFrame,
		testFrame,
		fb,
		NewSyncGenerator(fakeSync),
		NewLineDma(fakeDMA, Bpp8),
		ClockPlan{OscillatorFrequency: 19200000 * physic.Hertz},
		1*time.Second,
	)
	if err := e.Start(); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("got %v, want ErrUnsupported", err)
	}
}

// TestScanoutEngine_Scaling_ArmsBufferSizedLines is the S1-style scaling
// scenario: the sync generator and clock plan run at scaleFrame's full,
// unscaled rate while every physical line is served from a framebuffer
// sized for the scaled-down timing, each buffer row repeated rowRepeat
// physical lines. Before the two-frame split this armed LineDma with the
// unscaled pixel count against an undersized buffer.
func TestScanoutEngine_Scaling_ArmsBufferSizedLines(t *testing.T) {
	const s = 2
	// scaleFrame keeps every field positive after Scale(2); testFrame's
	// one-line vertical porches would scale to zero and fail Validate.
	scaleFrame := VideoFrameInfo{
		PixelFrequency: 40 * physic.MegaHertz,
		HTiming:        Timing{Visible: 8, FrontPorch: 2, SyncPulse: 2, BackPorch: 2},
		VTiming:        Timing{Visible: 8, FrontPorch: 2, SyncPulse: 2, BackPorch: 2},
	}
	scaled, err := scaleFrame.Scale(s)
	if err != nil {
		t.Fatalf("Scale: %v", err)
	}

	arena := ramarena.New(1 << 20)
	fb, err := NewFrameBuffer(arena, Bpp8, int(scaled.HTiming.Visible), int(scaled.VTiming.Visible), true)
	if err != nil {
		t.Fatalf("NewFrameBuffer: %v", err)
	}
	fakeDMA := &vgatest.DMA{}
	fakeSync := &vgatest.SyncPair{Period: 25 * time.Nanosecond}
	e := NewScanoutEngine(
		scaleFrame,
		scaled,
		fb,
		NewSyncGenerator(fakeSync),
		NewLineDma(fakeDMA, Bpp8),
		ClockPlan{OscillatorFrequency: 19200000 * physic.Hertz},
		10*time.Nanosecond,
	)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := uintptr(unsafe.Pointer(&fb.ScanoutBuf()[0]))

	fakeSync.TickLine(int(scaleFrame.VTiming.FrontPorch + scaleFrame.VTiming.SyncPulse + scaleFrame.VTiming.BackPorch))
	visible := int(scaleFrame.VTiming.Visible)
	for i := 0; i < visible; i++ {
		fakeSync.TickLine(0)
	}

	if e.State() != RunningVSync {
		t.Fatalf("state = %s, want Running-VSync after %d physical lines", e.State(), visible)
	}
	if len(fakeDMA.Armed) != visible {
		t.Fatalf("expected %d armed lines (one per physical line), got %d", visible, len(fakeDMA.Armed))
	}
	for _, d := range fakeDMA.Armed {
		if d.Count != int(scaled.HTiming.Visible)*Bpp8.BytesPerPixel() {
			t.Fatalf("armed count = %d, want %d (scaled visible x bytes-per-pixel)", d.Count, int(scaled.HTiming.Visible)*Bpp8.BytesPerPixel())
		}
	}
	maxRowStride := fb.Stride() * (int(scaled.VTiming.Visible) - 1)
	for _, d := range fakeDMA.Armed {
		if d.Src < base || int(d.Src-base) > maxRowStride {
			t.Fatalf("armed source offset %d exceeds the buffer's last row start %d", int(d.Src)-int(base), maxRowStride)
		}
	}
}
