package devices

import (
	"image"
	"image/color"
	"io"
)

// Display represents a pixel output device. It is a write-only interface.
//
// devices/vga.FrameBuffer implements Display so the scan-out engine's
// framebuffer can be driven with the same draw primitives (rectangle fill,
// text, raw pixel stream) regardless of whether the sink is a real VGA
// signal or a devicestest.Display fake used in tests.
type Display interface {
	// Write accepts a packed NRGBA pixel stream (4 bytes per pixel) in
	// row-major order. Exactly one call's worth of bytes must cover the
	// whole visible area.
	io.Writer
	// ColorModel returns the device's native color model.
	ColorModel() color.Model
	// Bounds returns the size of the visible area. Min is always {0, 0}.
	Bounds() image.Rectangle
	// Draw blits src into the display at dstRect, offset by sp in src.
	Draw(dstRect image.Rectangle, src image.Image, sp image.Point) error
}
