package vga

import (
	"image"
	"image/color"
	"image/draw"
	"unsafe"

	"github.com/go-vga/vgascan/host/ramarena"
)

// BitsPerPixel selects one of the two pixel packings the pipeline
// supports. The names follow spec.md §3's Pen/Pixel definition rather
// than the bytes actually consumed: Bpp3 packs R,G,B into one bit each of
// a single byte; Bpp8 stores three consecutive bytes per pixel.
type BitsPerPixel int

const (
	// Bpp3 stores one byte per pixel, R/G/B in the low three bits.
	Bpp3 BitsPerPixel = 3
	// Bpp8 stores three bytes per pixel, in R, G, B order.
	Bpp8 BitsPerPixel = 8
)

// BytesPerPixel returns the storage width of one pixel under this
// packing.
func (b BitsPerPixel) BytesPerPixel() int {
	if b == Bpp3 {
		return 1
	}
	return 3
}

func (b BitsPerPixel) valid() bool {
	return b == Bpp3 || b == Bpp8
}

// borderPad is the number of permanently-zero pixel slots appended to the
// end of every row, never touched by draw primitives after construction.
const borderPad = 8

// roundUp4 rounds n up to the next multiple of 4, matching the 32-bit DMA
// transfer granularity FrameBuffer rows are sized to.
func roundUp4(n int) int {
	return (n + 3) &^ 3
}

// Pixel is an opaque ARGB value; A is always 0xFF for an opaque write.
type Pixel struct {
	A, R, G, B uint8
}

// FrameBuffer owns the pixel memory the ScanoutEngine reads from via
// LineDma, plus the permanently-blanked border region on the right edge
// of every row.
//
// A FrameBuffer is exclusively owned by the ScanoutEngine once created;
// released back to its RamArena on teardown. It implements
// devices.Display so it can be driven with standard image.Image sources.
type FrameBuffer struct {
	bpp        BitsPerPixel
	visible    int
	lines      int
	stride     int
	doubleBuf  bool
	arena      *ramarena.Arena
	frontTok   ramarena.Token
	backTok    ramarena.Token
	front      []byte
	back       []byte
}

// NewFrameBuffer allocates a FrameBuffer of visible x lines pixels from
// arena, using bpp's packing. If doubleBuffered, a second buffer of equal
// size is allocated and Swap alternates which one devices.Display methods
// target.
//
// Grounded on vgascreenbuffer.c's AllocateFrameBuffer: row stride is
// rounded up to a 32-bit boundary, and the border region is zeroed once at
// construction and never touched again.
func NewFrameBuffer(arena *ramarena.Arena, bpp BitsPerPixel, visible, lines int, doubleBuffered bool) (*FrameBuffer, error) {
	if !bpp.valid() {
		return nil, errorf(ErrInvalidParameter, "unsupported bits-per-pixel %d", bpp)
	}
	if visible <= 0 || lines <= 0 {
		return nil, errorf(ErrInvalidParameter, "visible and lines must be positive, got %dx%d", visible, lines)
	}

	pixelsPerLine := visible + borderPad
	stride := roundUp4(bpp.BytesPerPixel() * pixelsPerLine)
	size := stride * lines

	frontTok, front, err := arena.Alloc(size)
	if err != nil {
		return nil, errors2wrap(err, "framebuffer front allocation")
	}

	fb := &FrameBuffer{
		bpp:     bpp,
		visible: visible,
		lines:   lines,
		stride:  stride,
		front:   front,
		doubleBuf: doubleBuffered,
		arena:   arena,
		frontTok: frontTok,
	}

	if doubleBuffered {
		backTok, back, err := arena.Alloc(size)
		if err != nil {
			arena.Free(frontTok)
			return nil, errors2wrap(err, "framebuffer back allocation")
		}
		fb.backTok = backTok
		fb.back = back
	}

	return fb, nil
}

// Close releases the FrameBuffer's allocations back to its arena, in LIFO
// order (back buffer first, if present).
func (fb *FrameBuffer) Close() error {
	if fb.doubleBuf {
		if err := fb.arena.Free(fb.backTok); err != nil {
			return err
		}
	}
	return fb.arena.Free(fb.frontTok)
}

// Stride returns the row size in bytes, including the blanked border.
func (fb *FrameBuffer) Stride() int { return fb.stride }

// Lines returns the number of rows.
func (fb *FrameBuffer) Lines() int { return fb.lines }

// writeBuf returns the buffer draw primitives and Write target: the back
// buffer when double-buffered, the single buffer otherwise.
func (fb *FrameBuffer) writeBuf() []byte {
	if fb.doubleBuf {
		return fb.back
	}
	return fb.front
}

// ScanoutBuf returns the buffer LineDma should stream from: the front
// buffer, which Swap promotes from the CPU's back buffer at vertical
// blanking.
func (fb *FrameBuffer) ScanoutBuf() []byte { return fb.front }

// lineAddr returns the address LineDma should arm its source pointer to
// for the given 0-based line of the scanout buffer.
func (fb *FrameBuffer) lineAddr(line int) uintptr {
	buf := fb.ScanoutBuf()
	off := line * fb.stride
	return uintptr(unsafe.Pointer(&buf[off]))
}

// Swap exchanges front and back buffers. Only valid when double-buffered;
// the ScanoutEngine calls this only at a vertical-blanking boundary, per
// spec.md §4.4.
func (fb *FrameBuffer) Swap() {
	if !fb.doubleBuf {
		return
	}
	fb.front, fb.back = fb.back, fb.front
}

// ColorModel implements devices.Display.
func (fb *FrameBuffer) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements devices.Display. The border region is excluded: it is
// never addressable by draw primitives.
func (fb *FrameBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, fb.visible, fb.lines)
}

// SetPixel writes p at (x, y) in the write buffer, clipped to the visible
// area; out-of-range coordinates are silently ignored, matching the
// clip-before-write rule in spec.md §4.4.
func (fb *FrameBuffer) SetPixel(x, y int, p Pixel) {
	if x < 0 || x >= fb.visible || y < 0 || y >= fb.lines {
		return
	}
	buf := fb.writeBuf()
	off := y*fb.stride + x*fb.bpp.BytesPerPixel()
	if fb.bpp == Bpp3 {
		buf[off] = packBpp3(p)
		return
	}
	buf[off+0] = p.R
	buf[off+1] = p.G
	buf[off+2] = p.B
}

// packBpp3 packs p into a single byte, one bit each for R, G, B, matching
// the "equivalent packed arrangement" spec.md §3 allows for Bpp3.
func packBpp3(p Pixel) byte {
	var b byte
	if p.R >= 0x80 {
		b |= 1 << 0
	}
	if p.G >= 0x80 {
		b |= 1 << 1
	}
	if p.B >= 0x80 {
		b |= 1 << 2
	}
	return b
}

// FillRect fills r, clipped to the visible area, with p.
func (fb *FrameBuffer) FillRect(r image.Rectangle, p Pixel) {
	r = r.Intersect(fb.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			fb.SetPixel(x, y, p)
		}
	}
}

// Write implements devices.Display. pixels must be a packed NRGBA stream
// (4 bytes per pixel) covering exactly the visible area in row-major
// order; it is unpacked into the write buffer's native packing.
func (fb *FrameBuffer) Write(pixels []byte) (int, error) {
	want := fb.visible * fb.lines * 4
	if len(pixels)%4 != 0 || len(pixels) != want {
		return 0, errorf(ErrInvalidParameter, "write: expected %d bytes (visible %d x lines %d x 4), got %d", want, fb.visible, fb.lines, len(pixels))
	}
	i := 0
	for y := 0; y < fb.lines; y++ {
		for x := 0; x < fb.visible; x++ {
			fb.SetPixel(x, y, Pixel{A: pixels[i+3], R: pixels[i+0], G: pixels[i+1], B: pixels[i+2]})
			i += 4
		}
	}
	return len(pixels), nil
}

// Draw implements devices.Display by blitting src into dstRect, clipped to
// the visible area, using the standard library's draw.Draw.
func (fb *FrameBuffer) Draw(dstRect image.Rectangle, src image.Image, sp image.Point) error {
	dstRect = dstRect.Intersect(fb.Bounds())
	if dstRect.Empty() {
		return nil
	}
	shadow := image.NewNRGBA(fb.Bounds())
	draw.Draw(shadow, dstRect, src, sp, draw.Src)
	for y := dstRect.Min.Y; y < dstRect.Max.Y; y++ {
		for x := dstRect.Min.X; x < dstRect.Max.X; x++ {
			c := shadow.NRGBAAt(x, y)
			fb.SetPixel(x, y, Pixel{A: c.A, R: c.R, G: c.G, B: c.B})
		}
	}
	return nil
}
