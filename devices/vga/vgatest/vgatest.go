// Package vgatest contains fake implementations of the devices/vga
// backing interfaces (conn/dma.Channel, conn/synctimer.Pair), for use in
// tests that need a ScanoutEngine without real hardware. It plays the
// same role the teacher's conn/conntest and devices/devicestest packages
// play for the bus-level interfaces.
package vgatest

import (
	"time"

	"github.com/go-vga/vgascan/conn/dma"
	"github.com/go-vga/vgascan/conn/synctimer"
)

// DMA is a fake dma.Channel. Arm appends every armed descriptor to Armed,
// in order; WaitComplete returns immediately unless Fault is set, which lets tests
// exercise the ScanoutEngine's Faulted transition.
type DMA struct {
	Armed     []dma.Descriptor
	Disabled  int
	Fault     error
	Completed int
}

// Arm implements dma.Channel.
func (d *DMA) Arm(desc dma.Descriptor) error {
	d.Armed = append(d.Armed, desc)
	return nil
}

// Disable implements dma.Channel.
func (d *DMA) Disable() error {
	d.Disabled++
	return nil
}

// WaitComplete implements dma.Channel.
func (d *DMA) WaitComplete() error {
	if d.Fault != nil {
		return d.Fault
	}
	d.Completed++
	return nil
}

var _ dma.Channel = &DMA{}

// SyncPair is a fake synctimer.Pair. Tests drive it by calling TickLine
// and TickFrame directly to simulate the master counter's compare events.
type SyncPair struct {
	Line   synctimer.LineConfig
	Frame  synctimer.FrameConfig
	Period time.Duration

	Started bool
	Stopped bool
	Blanked bool

	onLineEnd  synctimer.LineEndFunc
	onFrameEnd synctimer.FrameEndFunc
}

// Configure implements synctimer.Pair.
func (p *SyncPair) Configure(line synctimer.LineConfig, frame synctimer.FrameConfig) error {
	p.Line = line
	p.Frame = frame
	return nil
}

// Start implements synctimer.Pair.
func (p *SyncPair) Start(onLineEnd synctimer.LineEndFunc, onFrameEnd synctimer.FrameEndFunc) error {
	p.onLineEnd = onLineEnd
	p.onFrameEnd = onFrameEnd
	p.Started = true
	return nil
}

// ForceBlank implements synctimer.Pair.
func (p *SyncPair) ForceBlank(enabled bool) error {
	p.Blanked = enabled
	return nil
}

// Stop implements synctimer.Pair.
func (p *SyncPair) Stop() error {
	p.Stopped = true
	return nil
}

// PixelPeriod implements synctimer.Pair.
func (p *SyncPair) PixelPeriod() time.Duration {
	return p.Period
}

// TickLine emits a line-end event for lineInFrame, as the real hardware's
// HSync counter would.
func (p *SyncPair) TickLine(lineInFrame int) {
	if p.onLineEnd != nil {
		p.onLineEnd(lineInFrame)
	}
}

// TickFrame emits a frame-end event, as the real hardware's VSync
// counter would on wraparound.
func (p *SyncPair) TickFrame() {
	if p.onFrameEnd != nil {
		p.onFrameEnd()
	}
}

var _ synctimer.Pair = &SyncPair{}
