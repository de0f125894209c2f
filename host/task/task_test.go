package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestHarness_ConnectRunTeardownCycle(t *testing.T) {
	var connects, runs, teardowns int32

	connect := func(ctx context.Context) error {
		atomic.AddInt32(&connects, 1)
		return nil
	}
	ranOnce := make(chan struct{}, 1)
	run := func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		ranOnce <- struct{}{}
		return nil
	}
	teardown := func() error {
		atomic.AddInt32(&teardowns, 1)
		return nil
	}

	h := New(connect, run, teardown)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx)

	select {
	case <-ranOnce:
	case <-time.After(time.Second):
		t.Fatalf("Run was never invoked")
	}

	// Give the teardown/handoff a moment to land before asserting counts.
	time.Sleep(20 * time.Millisecond)

	if atomic.LoadInt32(&connects) < 1 {
		t.Fatalf("connects = %d, want >= 1", connects)
	}
	if atomic.LoadInt32(&runs) < 1 {
		t.Fatalf("runs = %d, want >= 1", runs)
	}
	if atomic.LoadInt32(&teardowns) < 1 {
		t.Fatalf("teardowns = %d, want >= 1", teardowns)
	}
}

func TestHarness_WaitsBackoffAfterFailedConnect(t *testing.T) {
	var attempts int32
	connect := func(ctx context.Context) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			return errors.New("not ready yet")
		}
		return nil
	}
	ran := make(chan struct{}, 1)
	run := func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	}

	h := New(connect, run, nil)
	h.toMain = make(chan struct{})
	h.toConn = make(chan struct{})

	// ReconnectBackoff is a fixed 10 s constant, far longer than this
	// test's 50 ms context: the first attempt fails, the harness waits out
	// the backoff, and ctx ends before a second attempt or Run can happen.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	h.Start(ctx)

	<-ctx.Done()
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry before ReconnectBackoff)", got)
	}
	select {
	case <-ran:
		t.Fatalf("Run invoked although the only connect attempt failed")
	default:
	}
}
