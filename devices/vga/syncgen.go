package vga

import (
	"time"

	"github.com/go-vga/vgascan/conn/synctimer"
)

// SyncGenerator derives the HSync/VSync counter configuration from a
// VideoFrameInfo and drives a synctimer.Pair, per spec.md §4.5.
type SyncGenerator struct {
	pair synctimer.Pair
}

// NewSyncGenerator wraps pair.
func NewSyncGenerator(pair synctimer.Pair) *SyncGenerator {
	return &SyncGenerator{pair: pair}
}

// lineConfig derives the HSync counter's compare points from h: the sync
// pulse window starts right after the front porch and the line-end
// rearm trigger fires once per period, at the end of the active region.
func lineConfig(h Timing) synctimer.LineConfig {
	return synctimer.LineConfig{
		PeriodPixels:     h.Visible + h.FrontPorch + h.SyncPulse + h.BackPorch,
		PulseStartPixels: h.Visible + h.FrontPorch,
		PulseEndPixels:   h.Visible + h.FrontPorch + h.SyncPulse,
		LineEndPixels:    h.Visible,
		Polarity:         synctimer.ActiveLow,
	}
}

// frameConfig derives the VSync counter's compare points from v.
func frameConfig(v Timing) synctimer.FrameConfig {
	return synctimer.FrameConfig{
		PeriodLines:     v.Visible + v.FrontPorch + v.SyncPulse + v.BackPorch,
		PulseStartLines: v.Visible + v.FrontPorch,
		PulseEndLines:   v.Visible + v.FrontPorch + v.SyncPulse,
		Polarity:        synctimer.ActiveLow,
	}
}

// Configure programs the underlying Pair from frame's H/V timing.
func (g *SyncGenerator) Configure(frame VideoFrameInfo) error {
	return g.pair.Configure(lineConfig(frame.HTiming), frameConfig(frame.VTiming))
}

// Start begins counting, invoking onLineEnd once per line and onFrameEnd
// once per frame.
func (g *SyncGenerator) Start(onLineEnd synctimer.LineEndFunc, onFrameEnd synctimer.FrameEndFunc) error {
	return g.pair.Start(onLineEnd, onFrameEnd)
}

// ForceBlank forces both sync outputs to analogue-black.
func (g *SyncGenerator) ForceBlank(enabled bool) error {
	return g.pair.ForceBlank(enabled)
}

// Stop halts both counters.
func (g *SyncGenerator) Stop() error {
	return g.pair.Stop()
}

// PixelPeriod reports the configured master pixel clock period, used to
// bound the DMA rearm latency check against the back porch duration.
func (g *SyncGenerator) PixelPeriod() time.Duration {
	return g.pair.PixelPeriod()
}
