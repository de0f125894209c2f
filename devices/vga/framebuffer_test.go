package vga

import (
	"image"
	"testing"

	"github.com/go-vga/vgascan/host/ramarena"
)

func TestFrameBuffer_BorderStaysZero(t *testing.T) {
	arena := ramarena.New(1 << 20)
	fb, err := NewFrameBuffer(arena, Bpp8, 16, 8, false)
	if err != nil {
		t.Fatalf("NewFrameBuffer: %v", err)
	}

	fb.FillRect(image.Rect(0, 0, 16, 8), Pixel{A: 0xFF, R: 0xFF, G: 0xFF, B: 0xFF})
	for y := 0; y < fb.lines; y++ {
		rowStart := y * fb.stride
		borderStart := rowStart + 16*Bpp8.BytesPerPixel()
		for i := borderStart; i < rowStart+fb.stride; i++ {
			if fb.front[i] != 0 {
				t.Fatalf("border byte at row %d offset %d = %d, want 0", y, i, fb.front[i])
			}
		}
	}
}

func TestFrameBuffer_SetPixel_ClipsOutOfBounds(t *testing.T) {
	arena := ramarena.New(1 << 20)
	fb, err := NewFrameBuffer(arena, Bpp8, 4, 4, false)
	if err != nil {
		t.Fatalf("NewFrameBuffer: %v", err)
	}
	fb.SetPixel(-1, 0, Pixel{R: 1, G: 1, B: 1, A: 0xFF})
	fb.SetPixel(4, 0, Pixel{R: 1, G: 1, B: 1, A: 0xFF})
	fb.SetPixel(0, 4, Pixel{R: 1, G: 1, B: 1, A: 0xFF})
	for _, b := range fb.front {
		if b != 0 {
			t.Fatalf("expected all-zero buffer after out-of-bounds writes, got byte %d", b)
		}
	}
}

func TestFrameBuffer_DoubleBuffer_SwapIsolatesWrites(t *testing.T) {
	arena := ramarena.New(1 << 20)
	fb, err := NewFrameBuffer(arena, Bpp8, 4, 4, true)
	if err != nil {
		t.Fatalf("NewFrameBuffer: %v", err)
	}

	scanoutBefore := fb.ScanoutBuf()
	fb.SetPixel(0, 0, Pixel{A: 0xFF, R: 0xFF, G: 0, B: 0})
	if scanoutBefore[0] != 0 {
		t.Fatalf("write to back buffer must not appear in the buffer being scanned out before Swap")
	}

	fb.Swap()
	if fb.ScanoutBuf()[0] != 0xFF {
		t.Fatalf("after Swap, the written pixel must appear in the new scanout buffer")
	}
}

func TestFrameBuffer_RejectsBadParameters(t *testing.T) {
	arena := ramarena.New(1 << 20)
	if _, err := NewFrameBuffer(arena, BitsPerPixel(5), 16, 8, false); err == nil {
		t.Fatalf("expected error for invalid bpp")
	}
	if _, err := NewFrameBuffer(arena, Bpp8, 0, 8, false); err == nil {
		t.Fatalf("expected error for zero visible")
	}
}

func TestFrameBuffer_OutOfMemory(t *testing.T) {
	arena := ramarena.New(8)
	if _, err := NewFrameBuffer(arena, Bpp8, 800, 600, false); err == nil {
		t.Fatalf("expected out-of-memory error for an oversized framebuffer")
	}
}
