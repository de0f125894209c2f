// Package presence watches for a monitor being attached or detached on
// the EDID bus, on the fixed poll/timeout/retry schedule the scan-out
// engine's mode-negotiation sequence depends on.
package presence

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Period, Timeout and Retries are the fixed presence-check schedule: a
// probe every Period, each attempt bounded by Timeout, with one retry
// before a probe is counted as failed.
const (
	Period  = 5 * time.Second
	Timeout = 2 * time.Second
	Retries = 1
)

// Prober performs one presence check, e.g. an EDID header read or an
// I²C bus ping. It must respect ctx's deadline.
type Prober interface {
	Probe(ctx context.Context) error
}

// State is the monitor's last-observed presence.
type State int

const (
	// Absent means the most recent probe (with its retry) failed.
	Absent State = iota
	// Present means the most recent probe succeeded.
	Present
)

func (s State) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// Transition is sent on Monitor.Events whenever State changes.
type Transition struct {
	From, To State
	Cause    error
}

// Monitor runs Prober on the fixed schedule and reports state
// transitions. An optional fsnotify watch on the bus device node lets a
// hot-unplug short-circuit the wait for the next poll tick; the poll
// schedule remains the system of record; the watch only wakes it early.
type Monitor struct {
	prober  Prober
	watcher *fsnotify.Watcher
	Events  chan Transition

	// period is the poll interval. New sets it to Period (the package
	// constant); tests in this package shrink it.
	period time.Duration
}

// New creates a Monitor. devNode, if non-empty, is watched with
// fsnotify as a fast-path wakeup; failure to establish the watch is not
// fatal, since the poll schedule alone already satisfies the presence
// contract.
func New(prober Prober, devNode string) *Monitor {
	m := &Monitor{prober: prober, Events: make(chan Transition, 1), period: Period}
	if devNode == "" {
		return m
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return m
	}
	if err := w.Add(devNode); err != nil {
		w.Close()
		return m
	}
	m.watcher = w
	return m
}

// Close releases the fsnotify watch, if any.
func (m *Monitor) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}

// Run probes on Period until ctx is cancelled, sending a Transition on
// Events each time State changes. It never closes Events.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	state := Absent
	var fsEvents <-chan fsnotify.Event
	if m.watcher != nil {
		fsEvents = m.watcher.Events
	}

	check := func() {
		err := m.probeWithRetry(ctx)
		next := Present
		if err != nil {
			next = Absent
		}
		if next != state {
			m.Events <- Transition{From: state, To: next, Cause: err}
			state = next
		}
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		case <-fsEvents:
			check()
			ticker.Reset(m.period)
		}
	}
}

// probeWithRetry runs one probe attempt, retrying Retries times on
// failure before giving up.
func (m *Monitor) probeWithRetry(ctx context.Context) error {
	var err error
	for attempt := 0; attempt <= Retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, Timeout)
		err = m.prober.Probe(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
	}
	return errors.Wrap(err, "presence: probe failed after retry")
}
