package vga

import (
	"testing"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

func TestTiming_Validate(t *testing.T) {
	cases := []struct {
		name    string
		t       Timing
		wantErr bool
	}{
		{"baseline h", Timing{800, 40, 128, 88}, false},
		{"zero field", Timing{800, 0, 128, 88}, true},
		{"visible not largest", Timing{100, 200, 10, 10}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.t.Validate()
			if (err != nil) != c.wantErr {
				t.Fatalf("Validate(%+v) error = %v, wantErr %v", c.t, err, c.wantErr)
			}
			if c.wantErr && !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

// S4 "scaling correctness".
func TestTiming_Scale_NoLoss(t *testing.T) {
	got := Timing{800, 40, 128, 88}.scale(2)
	want := Timing{400, 20, 64, 44}
	if got != want {
		t.Fatalf("scale(2) = %+v, want %+v", got, want)
	}
	if got.Whole() != 528 {
		t.Fatalf("Whole() = %d, want 528", got.Whole())
	}
}

// S5 "scaling loss absorbed".
func TestTiming_Scale_LossAbsorbedIntoFrontPorch(t *testing.T) {
	orig := Timing{801, 41, 127, 87}
	if orig.Whole() != 1056 {
		t.Fatalf("fixture whole = %d, want 1056", orig.Whole())
	}
	got := orig.scale(2)
	want := Timing{400, 22, 63, 43}
	if got != want {
		t.Fatalf("scale(2) = %+v, want %+v", got, want)
	}
	if got.Whole() != 528 {
		t.Fatalf("Whole() = %d, want 528", got.Whole())
	}
}

func TestVideoFrameInfo_Validate(t *testing.T) {
	if err := VideoFrame800x600At60Hz.Validate(); err != nil {
		t.Fatalf("baseline mode failed validation: %v", err)
	}

	bad := VideoFrameInfo{PixelFrequency: 0, HTiming: Timing{800, 40, 128, 88}, VTiming: Timing{600, 1, 4, 23}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("zero frequency: got %v, want ErrInvalidParameter", err)
	}
}

// S3 "timing rejected".
func TestVideoFrameInfo_Validate_RejectsBadHTiming(t *testing.T) {
	bad := VideoFrameInfo{
		PixelFrequency: 40 * physic.MegaHertz,
		HTiming:        Timing{Visible: 100, FrontPorch: 200, SyncPulse: 10, BackPorch: 10},
		VTiming:        Timing{600, 1, 4, 23},
	}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("got %v, want ErrInvalidParameter", err)
	}
}

func TestVideoFrameInfo_Scale(t *testing.T) {
	scaled, err := VideoFrame800x600At60Hz.Scale(2)
	if err != nil {
		t.Fatalf("Scale(2): %v", err)
	}
	if scaled.PixelFrequency != 20*physic.MegaHertz {
		t.Fatalf("scaled pixel frequency = %s, want 20MHz", scaled.PixelFrequency)
	}
	if scaled.HTiming != (Timing{400, 20, 64, 44}) {
		t.Fatalf("scaled HTiming = %+v", scaled.HTiming)
	}
}

func TestVideoFrameInfo_Scale_RejectsZero(t *testing.T) {
	if _, err := VideoFrame800x600At60Hz.Scale(0); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("got %v, want ErrInvalidParameter", err)
	}
}
