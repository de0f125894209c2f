package vga

import (
	"sync"
	"time"
)

// State is one of the ScanoutEngine's six states, per spec.md §3's
// "Engine state" enumeration.
type State int

const (
	// Configured is the initial state: resources allocated, timers
	// stopped.
	Configured State = iota
	// RunningVSync is a Running state during vertical blanking: DMA
	// disabled, sync outputs forced to analogue black.
	RunningVSync
	// RunningActive is a Running state during the visible region: DMA
	// streams one line per master-counter trigger.
	RunningActive
	// Suspended means DMA and sync outputs are disabled but timers keep
	// running.
	Suspended
	// Stopped means timers are halted and DMA released.
	Stopped
	// Faulted means a DMA error or underrun occurred; the engine no
	// longer drives output.
	Faulted
)

func (s State) String() string {
	switch s {
	case Configured:
		return "Configured"
	case RunningVSync:
		return "Running-VSync"
	case RunningActive:
		return "Running-Active"
	case Suspended:
		return "Suspended"
	case Stopped:
		return "Stopped"
	case Faulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// FaultRecord is emitted on the Faulted transition and consumed by
// host/diag for structured logging. It is not persisted: it exists only
// for the lifetime of a single fault notification.
type FaultRecord struct {
	State         State
	Cause         error
	TimestampUnix int64
	LineAtFault   int
}

// ScanoutEngine orchestrates LineDma rearm at end-of-line and the state
// transitions between vertical blanking and the active region, per
// spec.md §4.7.
//
// ScanoutEngine is safe for concurrent use between the goroutine driving
// task-level operations (start/suspend/resume/stop) and the goroutine
// invoking the line/frame-end callbacks; the critical section is held
// only long enough to update state and the line pointer, never across a
// blocking call, matching the "handlers signal event flags and return"
// rule in spec.md §5.
type ScanoutEngine struct {
	mu sync.Mutex

	// frame is the unscaled timing the sync generator and clock plan are
	// always configured from: the physical wire signal runs at this rate
	// regardless of scaling.
	frame VideoFrameInfo
	// bufFrame is frame after VideoFrameInfo.Scale: its Visible counts
	// match fb's actual dimensions, which is what LineDma must be armed
	// against instead of frame's.
	bufFrame VideoFrameInfo
	fb       *FrameBuffer
	sync     *SyncGenerator
	dma      *LineDma
	clock    ClockPlan

	// rowRepeat is how many consecutive physical scanlines each buffer
	// row is streamed for: frame.VTiming.Visible / bufFrame.VTiming.Visible.
	// It is 1 when bufFrame equals frame (no scaling).
	rowRepeat int

	state      State
	resumeTo   State
	line       int
	faults     chan FaultRecord
	rearmBound time.Duration
}

// NewScanoutEngine builds an engine driving the physical signal at frame's
// (unscaled) timing, sourcing each line from fb, which was sized from
// bufFrame — the result of scaling frame down for a smaller framebuffer.
// Pass frame itself as bufFrame when no scaling is in effect. rearmLatency
// is the backing implementation's worst-case DMA rearm time; Start refuses
// frame if its back porch is shorter than this bound.
func NewScanoutEngine(frame, bufFrame VideoFrameInfo, fb *FrameBuffer, sync *SyncGenerator, dmaCh *LineDma, clock ClockPlan, rearmLatency time.Duration) *ScanoutEngine {
	rowRepeat := 1
	if bufFrame.VTiming.Visible > 0 {
		if r := int(frame.VTiming.Visible) / int(bufFrame.VTiming.Visible); r > 1 {
			rowRepeat = r
		}
	}
	return &ScanoutEngine{
		frame:      frame,
		bufFrame:   bufFrame,
		fb:         fb,
		sync:       sync,
		dma:        dmaCh,
		clock:      clock,
		rowRepeat:  rowRepeat,
		state:      Configured,
		faults:     make(chan FaultRecord, 1),
		rearmBound: rearmLatency,
	}
}

// Faults returns the channel FaultRecords are posted to on a Faulted
// transition. It is buffered by one: a consumer that misses a
// notification can still read State() to recover the current state.
func (e *ScanoutEngine) Faults() <-chan FaultRecord {
	return e.faults
}

// State returns the engine's current state.
func (e *ScanoutEngine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start checks that the clock plan accepts frame's pixel clock (the
// resulting divider chain is not applied here), validates the
// rearm-latency bound against the back porch, programs the sync
// generator, and transitions Configured -> Running-VSync.
func (e *ScanoutEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Configured {
		return errorf(ErrInvalidState, "start: engine is %s, want Configured", e.state)
	}

	if _, _, err := e.clock.Plan(e.frame.PixelFrequency); err != nil {
		return errors2wrap(err, "start")
	}

	backPorch := time.Duration(e.frame.HTiming.BackPorch) * e.sync.PixelPeriod()
	if backPorch < e.rearmBound {
		return errorf(ErrUnsupported, "back porch %s shorter than dma rearm latency bound %s", backPorch, e.rearmBound)
	}

	if err := e.sync.Configure(e.frame); err != nil {
		return errors2wrap(err, "start: configure sync generator")
	}
	if err := e.sync.ForceBlank(true); err != nil {
		return errors2wrap(err, "start: force blank")
	}
	if err := e.dma.Disable(); err != nil {
		return errors2wrap(err, "start: disable dma")
	}

	e.line = 0
	e.state = RunningVSync

	if err := e.sync.Start(e.onLineEnd, e.onFrameEnd); err != nil {
		e.state = Configured
		return errors2wrap(err, "start: start sync generator")
	}
	return nil
}

// onLineEnd is invoked once per line by the SyncGenerator. During
// Running-VSync it watches for the boundary into the active region;
// during Running-Active it advances the line pointer and rearms LineDma.
// It never blocks, matching the ISR-equivalent contract of spec.md §5.
func (e *ScanoutEngine) onLineEnd(lineInFrame int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case RunningVSync:
		activeStart := int(e.frame.VTiming.FrontPorch) + int(e.frame.VTiming.SyncPulse) + int(e.frame.VTiming.BackPorch)
		if lineInFrame == activeStart {
			e.state = RunningActive
			e.line = 0
			if err := e.sync.ForceBlank(false); err != nil {
				e.fault(err)
				return
			}
			e.armLineLocked()
		}
	case RunningActive:
		if err := e.dma.WaitComplete(); err != nil {
			e.fault(err)
			return
		}
		e.line++
		if e.line >= int(e.frame.VTiming.Visible) {
			e.state = RunningVSync
			if err := e.dma.Disable(); err != nil {
				e.fault(err)
				return
			}
			if err := e.sync.ForceBlank(true); err != nil {
				e.fault(err)
				return
			}
			e.fb.Swap()
			return
		}
		e.armLineLocked()
	}
}

// onFrameEnd is invoked once per frame by the SyncGenerator. The line
// machinery above already drives the Running-VSync/Running-Active
// transition off line counts, so onFrameEnd is a pure observation point,
// reserved for future per-frame bookkeeping.
func (e *ScanoutEngine) onFrameEnd() {}

// armLineLocked arms LineDma for the current e.line. The physical line
// counter runs at frame's unscaled rate; it is mapped down to the buffer
// row that feeds it (repeated rowRepeat times) and armed with bufFrame's
// pixel count, both of which match fb's actual dimensions. Callers must
// hold e.mu.
func (e *ScanoutEngine) armLineLocked() {
	bufLine := e.line / e.rowRepeat
	lineAddr := e.fb.lineAddr(bufLine)
	if err := e.dma.ArmLine(lineAddr, int(e.bufFrame.HTiming.Visible)); err != nil {
		e.fault(err)
	}
}

// fault transitions to Faulted and posts a FaultRecord. Callers must hold
// e.mu.
func (e *ScanoutEngine) fault(cause error) {
	e.state = Faulted
	rec := FaultRecord{State: Faulted, Cause: cause, TimestampUnix: time.Now().UnixNano(), LineAtFault: e.line}
	select {
	case e.faults <- rec:
	default:
	}
}

// Suspend disables DMA and sync outputs but leaves timers running. Valid
// from either Running state.
func (e *ScanoutEngine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != RunningVSync && e.state != RunningActive {
		return errorf(ErrInvalidState, "suspend: engine is %s, want a Running state", e.state)
	}
	if err := e.dma.Disable(); err != nil {
		return errors2wrap(err, "suspend")
	}
	if err := e.sync.ForceBlank(true); err != nil {
		return errors2wrap(err, "suspend")
	}
	e.resumeTo = e.state
	e.state = Suspended
	return nil
}

// Resume returns to the Running state Suspend was called from.
func (e *ScanoutEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Suspended {
		return errorf(ErrInvalidState, "resume: engine is %s, want Suspended", e.state)
	}
	if e.resumeTo == RunningActive {
		if err := e.sync.ForceBlank(false); err != nil {
			return errors2wrap(err, "resume")
		}
		e.armLineLocked()
	}
	e.state = e.resumeTo
	return nil
}

// Stop halts the sync generator and releases DMA. Valid from any state
// except Stopped itself.
func (e *ScanoutEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Stopped {
		return errorf(ErrInvalidState, "stop: engine is already Stopped")
	}
	if err := e.dma.Disable(); err != nil {
		return errors2wrap(err, "stop")
	}
	if err := e.sync.Stop(); err != nil {
		return errors2wrap(err, "stop")
	}
	e.state = Stopped
	return nil
}
