// Package synctimer declares the contract for the two hardware counters
// that generate HSync and VSync, both slaved to the master pixel counter so
// the whole pipeline advances off a single clock.
package synctimer

import "time"

// Polarity selects whether the generated pulse is active-low or
// active-high. The baseline 800x600@60Hz mode used by this module is
// active-low on both signals.
type Polarity bool

const (
	// ActiveLow asserts the sync pulse as a logic 0.
	ActiveLow Polarity = false
	// ActiveHigh asserts the sync pulse as a logic 1.
	ActiveHigh Polarity = true
)

// LineConfig configures the HSync counter: its period is H.whole pixel
// clocks, it asserts during the sync-pulse window, and it raises a second,
// independent compare event once per period at the end of the active
// region — the line-end trigger that rearms LineDma.
type LineConfig struct {
	PeriodPixels      uint16
	PulseStartPixels  uint16
	PulseEndPixels    uint16
	LineEndPixels     uint16
	Polarity          Polarity
}

// FrameConfig configures the VSync counter: it is clocked by the HSync
// counter's update event (so it counts whole lines, not pixels) and
// asserts for V.SyncPulse lines starting V.FrontPorch lines after active
// end.
type FrameConfig struct {
	PeriodLines      uint16
	PulseStartLines  uint16
	PulseEndLines    uint16
	Polarity         Polarity
}

// LineEndFunc is invoked once per line, synchronously with the HSync
// counter's line-end compare event. It must not block: on real hardware
// this models an interrupt handler and must return quickly (rearm LineDma
// and return); on the software backend it runs on the pacing goroutine.
type LineEndFunc func(line int)

// FrameEndFunc is invoked once per frame when the VSync counter wraps.
type FrameEndFunc func()

// Pair is the HSync+VSync counter pair, slaved to a shared master pixel
// counter.
//
// Pair is not safe for concurrent use; the ScanoutEngine is the sole
// owner.
type Pair interface {
	// Configure programs both counters. It must be called before Start and
	// may only be called again after Stop.
	Configure(line LineConfig, frame FrameConfig) error
	// Start begins counting from pixel 0 of line 0 of vertical blanking.
	Start(onLineEnd LineEndFunc, onFrameEnd FrameEndFunc) error
	// ForceBlank drives both sync outputs to analogue-black (RGB forced to
	// 0) immediately, used for the vertical blanking interval and on fault.
	ForceBlank(enabled bool) error
	// Stop halts both counters and releases their outputs to a safe idle
	// state.
	Stop() error
	// PixelPeriod reports the configured master pixel clock period, used by
	// the engine to bound the DMA rearm latency check against the back
	// porch duration.
	PixelPeriod() time.Duration
}
