package vga

import (
	"github.com/go-vga/vgascan/conn/dma"
)

// gpioDataRegister is the fixed peripheral destination address LineDma
// streams pixel bytes to. The real value is supplied by host/rpi at
// registration time; it is a package variable (rather than a parameter
// threaded through every call) because exactly one physical GPIO data
// register exists per board.
var gpioDataRegister uintptr

// SetGPIODataRegister is called once by a host/rpi-style backend during
// its Init to record the board's GPIO data register address.
func SetGPIODataRegister(addr uintptr) {
	gpioDataRegister = addr
}

// LineDma arms a single dma.Channel with the descriptor for one scanline
// at a time, per spec.md §4.6.
type LineDma struct {
	ch  dma.Channel
	bpp BitsPerPixel
}

// NewLineDma wraps ch, transferring pixels packed per bpp.
func NewLineDma(ch dma.Channel, bpp BitsPerPixel) *LineDma {
	return &LineDma{ch: ch, bpp: bpp}
}

// wordSize returns the DMA transfer beat width: one byte for Bpp3, or
// four bytes (one packed word covering a run of Bpp8 pixels) otherwise.
func (l *LineDma) wordSize() int {
	if l.bpp == Bpp3 {
		return 1
	}
	return 4
}

// ArmLine configures the channel to stream visible pixels, starting at
// lineStart in the scan-out buffer, to the GPIO data register.
func (l *LineDma) ArmLine(lineStart uintptr, visible int) error {
	d := dma.Descriptor{
		Src:       lineStart,
		Dst:       gpioDataRegister,
		Count:     visible * l.bpp.BytesPerPixel(),
		Direction: dma.MemToPeriph,
		WordSize:  l.wordSize(),
	}
	if err := l.ch.Arm(d); err != nil {
		return errors2wrap(err, "arm line dma")
	}
	return nil
}

// WaitComplete blocks for the current line's transfer to finish.
func (l *LineDma) WaitComplete() error {
	if err := l.ch.WaitComplete(); err != nil {
		return errorf(ErrDmaFault, "line dma: %v", err)
	}
	return nil
}

// Disable stops the channel, used entering vertical blanking or on
// suspend/stop.
func (l *LineDma) Disable() error {
	return l.ch.Disable()
}
