// Package devicestest contains fake implementations of the devices/
// interfaces, for use in tests that need a Display without real hardware.
package devicestest

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/pkg/errors"

	"github.com/go-vga/vgascan/devices"
)

// Display is a fake devices.Display backed by an in-memory image.
type Display struct {
	Img *image.NRGBA
}

// Write implements devices.Display.
func (d *Display) Write(pixels []byte) (int, error) {
	if len(pixels)%4 != 0 {
		return 0, errors.New("devicestest: invalid pixel stream length")
	}
	copy(d.Img.Pix, pixels)
	return len(pixels), nil
}

// ColorModel implements devices.Display.
func (d *Display) ColorModel() color.Model {
	return d.Img.ColorModel()
}

// Bounds implements devices.Display.
func (d *Display) Bounds() image.Rectangle {
	return d.Img.Bounds()
}

// Draw implements devices.Display.
func (d *Display) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	draw.Draw(d.Img, r, src, sp, draw.Src)
	return nil
}

var _ devices.Display = &Display{}
