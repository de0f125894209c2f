// Package task implements the two cooperating goroutines the scan-out
// engine's lifecycle runs on: a ConnectionTask that negotiates a mode
// with the attached monitor and starts output, and a MainTask that
// services the active display until disconnect, then hands control
// back. Suspension is cooperative and explicit: each handoff is a
// blocking send/receive on an unbuffered channel, never a goroutine
// being preempted mid-operation.
package task

import (
	"context"
	"time"
)

// ReconnectBackoff is the fixed delay ConnectionTask waits between
// failed connect attempts, per the two-wire EDID error-recovery policy.
const ReconnectBackoff = 10 * time.Second

// ConnectFunc performs ConnectionTask's setup: read EDID, select a
// mode, allocate the framebuffer, start the engine. An error means the
// attempt failed and should be retried after ReconnectBackoff.
type ConnectFunc func(ctx context.Context) error

// RunFunc is MainTask's body while the engine is active: it services
// console input and the presence monitor, and returns (nil or an
// error) when the monitor disconnects or a fault is detected.
type RunFunc func(ctx context.Context) error

// TeardownFunc stops the engine and releases the framebuffer once
// RunFunc returns, before control passes back to ConnectionTask.
type TeardownFunc func() error

// Harness runs ConnectionTask and MainTask as two goroutines,
// coordinated by a pair of unbuffered channels standing in for the
// system's event flags.
type Harness struct {
	Connect  ConnectFunc
	Run      RunFunc
	Teardown TeardownFunc

	// toMain carries ConnectionTask's "engine started" handoff.
	toMain chan struct{}
	// toConn carries MainTask's "disconnected, resume" handoff.
	toConn chan struct{}
}

// New builds a Harness. Teardown may be nil if there is nothing to
// release between runs.
func New(connect ConnectFunc, run RunFunc, teardown TeardownFunc) *Harness {
	return &Harness{
		Connect:  connect,
		Run:      run,
		Teardown: teardown,
		toMain:   make(chan struct{}),
		toConn:   make(chan struct{}),
	}
}

// Start launches both tasks. They run until ctx is cancelled.
func (h *Harness) Start(ctx context.Context) {
	go h.connectionTask(ctx)
	go h.mainTask(ctx)
}

func (h *Harness) connectionTask(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := h.backoffConnect(ctx); err != nil {
			return
		}
		select {
		case h.toMain <- struct{}{}:
		case <-ctx.Done():
			return
		}
		select {
		case <-h.toConn:
		case <-ctx.Done():
			return
		}
	}
}

// backoffConnect retries Connect every ReconnectBackoff until it
// succeeds or ctx is cancelled.
func (h *Harness) backoffConnect(ctx context.Context) error {
	for {
		if err := h.Connect(ctx); err == nil {
			return nil
		}
		select {
		case <-time.After(ReconnectBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Harness) mainTask(ctx context.Context) {
	for {
		select {
		case <-h.toMain:
		case <-ctx.Done():
			return
		}

		_ = h.Run(ctx)
		if h.Teardown != nil {
			_ = h.Teardown()
		}

		select {
		case h.toConn <- struct{}{}:
		case <-ctx.Done():
			return
		}
	}
}
