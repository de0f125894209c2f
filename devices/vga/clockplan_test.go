package vga

import (
	"testing"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

func TestClockPlan_Baseline(t *testing.T) {
	plan := ClockPlan{OscillatorFrequency: 19200000 * physic.Hertz}
	chain, realised, err := plan.Plan(40 * physic.MegaHertz)
	if err != nil {
		t.Fatalf("Plan(40MHz): %v", err)
	}
	if realised != 40*physic.MegaHertz {
		t.Fatalf("realised = %s, want 40MHz", realised)
	}
	if chain.Multiplier <= 0 || chain.Divider <= 0 {
		t.Fatalf("chain = %+v, want positive multiplier/divider", chain)
	}
}

func TestClockPlan_RejectsNonBaseline(t *testing.T) {
	plan := ClockPlan{OscillatorFrequency: 19200000 * physic.Hertz}
	if _, _, err := plan.Plan(25 * physic.MegaHertz); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("got %v, want ErrUnsupported", err)
	}
}

func TestClockPlan_RejectsUnrealisableOscillator(t *testing.T) {
	plan := ClockPlan{OscillatorFrequency: 33333 * physic.Hertz}
	if _, _, err := plan.Plan(40 * physic.MegaHertz); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("got %v, want ErrUnsupported", err)
	}
}
