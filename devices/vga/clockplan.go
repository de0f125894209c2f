package vga

import "periph.io/x/conn/v3/physic"

// DividerChain is the multiplier/divider pair the system PLL must be
// programmed with to derive the master pixel clock from the board's
// oscillator. The host/rpi backend turns this into the actual clock
// manager divisor registers; the fake backend in vgatest just records it.
type DividerChain struct {
	// Multiplier is the PLL feedback multiplier applied to the oscillator
	// frequency before division.
	Multiplier int
	// Divider is the integer divisor applied after the multiplier.
	Divider int
}

// baselinePixelFrequency is the only pixel clock the initial ClockPlan
// implementation accepts, per spec.md §4.3. The contract is written to be
// relaxed later without changing callers.
var baselinePixelFrequency = 40 * physic.MegaHertz

// ClockPlan computes the divider chain that derives a requested pixel
// clock from a fixed oscillator and PLL topology.
//
// Grounded on the baseline-only acceptance rule from vgascreenbuffer.c's
// PixelFrequencyMHz != 40.0f check: rather than hard-coding the rejection
// inline, it is expressed as a single-entry lookup so the "contract is
// open to relaxation" language in spec.md §4.3 has somewhere to grow.
type ClockPlan struct {
	// OscillatorFrequency is the board's fixed reference clock. Real
	// backends set this from the measured crystal frequency; tests set it
	// to whatever produces a clean divider chain for the baseline rate.
	OscillatorFrequency physic.Frequency
}

// Plan chooses a DividerChain for requested, or returns ErrUnsupported if
// requested is not the baseline 40 MHz pixel clock.
func (c ClockPlan) Plan(requested physic.Frequency) (DividerChain, physic.Frequency, error) {
	if requested <= 0 {
		return DividerChain{}, 0, errorf(ErrInvalidParameter, "requested pixel frequency must be positive, got %s", requested)
	}
	if requested != baselinePixelFrequency {
		return DividerChain{}, 0, errorf(ErrUnsupported, "pixel frequency %s unsupported, only %s is accepted", requested, baselinePixelFrequency)
	}
	if c.OscillatorFrequency <= 0 {
		return DividerChain{}, 0, errorf(ErrInvalidParameter, "oscillator frequency must be positive, got %s", c.OscillatorFrequency)
	}

	chain, realised, ok := c.searchDividerChain(requested)
	if !ok {
		return DividerChain{}, 0, errorf(ErrUnsupported, "no divider chain realises %s from a %s oscillator", requested, c.OscillatorFrequency)
	}
	return chain, realised, nil
}

// searchDividerChain walks a small, fixed space of PLL multipliers (1..32)
// and post-dividers (1..256) for a combination that realises requested
// exactly, preferring the smallest multiplier*divider product. Near misses
// are not accepted: it reports false when no combination is exact.
func (c ClockPlan) searchDividerChain(requested physic.Frequency) (DividerChain, physic.Frequency, bool) {
	best := DividerChain{}
	var bestRealised physic.Frequency
	found := false

	for mul := 1; mul <= 32; mul++ {
		for div := 1; div <= 256; div++ {
			realised := c.OscillatorFrequency * physic.Frequency(mul) / physic.Frequency(div)
			if realised != requested {
				continue
			}
			if !found || mul*div < best.Multiplier*best.Divider {
				best = DividerChain{Multiplier: mul, Divider: div}
				bestRealised = realised
				found = true
			}
		}
	}
	return best, bestRealised, found
}
