package vga

import "github.com/pkg/errors"

// Error taxonomy. Configuration-time errors (ErrInvalidParameter,
// ErrOutOfMemory, ErrUnsupported) are returned synchronously to the
// caller. Runtime faults (ErrDmaFault) are surfaced to the owning task
// through the engine's Faults() channel and cause a clean stop.
var (
	// ErrInvalidParameter is returned when a Timing or VisualizationRequest
	// fails validation.
	ErrInvalidParameter = errors.New("vga: invalid parameter")
	// ErrOutOfMemory is returned when the RamArena cannot satisfy the
	// framebuffer allocation.
	ErrOutOfMemory = errors.New("vga: out of memory")
	// ErrUnsupported is returned when the requested pixel clock or scaling
	// cannot be realised, or the back porch is shorter than the DMA rearm
	// latency bound.
	ErrUnsupported = errors.New("vga: unsupported mode")
	// ErrInvalidState is returned when an engine operation is invoked in a
	// state that does not permit it (e.g. resume when Stopped).
	ErrInvalidState = errors.New("vga: invalid state")
	// ErrDmaFault is the cause recorded when the engine transitions to
	// Faulted following a DMA error or underrun.
	ErrDmaFault = errors.New("vga: dma fault")
)
