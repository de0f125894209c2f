// Package vgascan is the top-level registry for this module's hardware
// drivers.
//
// It plays the same role periph.io's own root package plays for its host
// drivers: every concrete backend that needs exclusive access to real
// hardware (the register-level pixel clock, line DMA and sync generator in
// host/rpi, chiefly) registers itself from an init() function by calling
// MustRegister, and the application calls Init() once at startup to bring
// up every registered driver in dependency order.
//
//   - conn/ declares the protocol-level contracts used by devices/ (DMA
//     channel, sync timer pair) that are not already covered by the
//     imported periph.io/x/conn/v3 packages.
//   - devices/ contains the VGA scan-out engine, the EDID reader and the SD
//     card reader — these only depend on the interfaces in conn/, never on
//     a specific host.
//   - host/ contains the concrete backends: host/rpi implements the
//     register-level timing and DMA backend, host/ramarena the bump
//     allocator, host/presence the monitor liveness poller, host/task the
//     two-task cooperative harness, host/console the serial console and
//     host/diag the structured fault/event log sink.
package vgascan // import "github.com/go-vga/vgascan"

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Driver is a hardware backend that must be brought up before the devices
// that depend on it can be used.
type Driver interface {
	// String returns the driver's unique name, as presented to the user.
	String() string
	// Prerequisites lists driver names that must load successfully first.
	//
	// A driver listing a prerequisite that is never registered is a fatal
	// initialization failure.
	Prerequisites() []string
	// Init brings the driver up.
	//
	// On success it returns true, nil. When the driver is irrelevant on this
	// host it returns false, <reason>. On failure to load a relevant driver it
	// returns true, <reason>.
	Init() (bool, error)
}

// DriverFailure pairs a driver with why it did not load.
type DriverFailure struct {
	D   Driver
	Err error
}

func (d DriverFailure) String() string {
	return fmt.Sprintf("%s: %v", d.D, d.Err)
}

// State is the outcome of Init(): which drivers loaded, which were skipped
// as irrelevant, and which failed outright.
type State struct {
	Loaded  []Driver
	Skipped []DriverFailure
	Failed  []DriverFailure
}

var (
	mu         sync.Mutex
	allDrivers []Driver
	byName     = map[string]Driver{}
	state      *State
)

// Register records a driver to be brought up by the next Init() call.
//
// It is an error to call Register after Init has already run.
func Register(d Driver) error {
	mu.Lock()
	defer mu.Unlock()
	if state != nil {
		return errors.New("vgascan: can't call Register() after Init()")
	}
	n := d.String()
	if _, ok := byName[n]; ok {
		return errors.Errorf("vgascan: driver with same name %q was already registered", n)
	}
	byName[n] = d
	allDrivers = append(allDrivers, d)
	return nil
}

// MustRegister calls Register and panics on failure.
//
// This is the function a driver's package init() should call.
func MustRegister(d Driver) {
	if err := Register(d); err != nil {
		panic(err)
	}
}

// Init initializes every registered driver, honoring prerequisite ordering.
//
// Each dependency stage loads its drivers concurrently since real init work
// (mmap'ing register windows, probing a bus) is I/O bound. It is safe to call
// Init multiple times; the first call's result is cached and returned again.
func Init() (*State, error) {
	mu.Lock()
	defer mu.Unlock()
	if state != nil {
		return state, nil
	}
	s := &State{}
	stages, err := explodeStages(allDrivers)
	if err != nil {
		return nil, err
	}
	loaded := map[string]struct{}{}
	for _, stage := range stages {
		loadStage(stage, loaded, s)
	}
	sort.Sort(byDriverName(s.Loaded))
	sort.Sort(byFailureName(s.Skipped))
	sort.Sort(byFailureName(s.Failed))
	state = s
	return state, nil
}

// explodeStages groups drivers into dependency-ordered waves: every driver
// in stage N has all its prerequisites satisfied by stages 0..N-1.
func explodeStages(drvs []Driver) ([][]Driver, error) {
	remaining := map[string]map[string]struct{}{}
	for _, d := range drvs {
		remaining[d.String()] = map[string]struct{}{}
	}
	for _, d := range drvs {
		name := d.String()
		for _, dep := range d.Prerequisites() {
			if _, ok := byName[dep]; !ok {
				return nil, errors.Errorf("vgascan: %q depends on unregistered driver %q", name, dep)
			}
			remaining[name][dep] = struct{}{}
		}
	}

	var stages [][]Driver
	for len(remaining) != 0 {
		var ready []string
		for name, deps := range remaining {
			if len(deps) == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			return nil, errors.Errorf("vgascan: dependency cycle among drivers: %v", remaining)
		}
		sort.Strings(ready)
		stage := make([]Driver, 0, len(ready))
		for _, name := range ready {
			stage = append(stage, byName[name])
			delete(remaining, name)
		}
		stages = append(stages, stage)
		for _, passed := range ready {
			for name := range remaining {
				delete(remaining[name], passed)
			}
		}
	}
	return stages, nil
}

func loadStage(drvs []Driver, loaded map[string]struct{}, s *State) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, d := range drvs {
		mu.Lock()
		missing := ""
		for _, dep := range d.Prerequisites() {
			if _, ok := loaded[dep]; !ok {
				missing = dep
				break
			}
		}
		if missing != "" {
			s.Skipped = append(s.Skipped, DriverFailure{d, errors.Errorf("prerequisite %q did not load", missing)})
		}
		mu.Unlock()
		if missing != "" {
			continue
		}
		wg.Add(1)
		go func(d Driver) {
			defer wg.Done()
			ok, err := d.Init()
			mu.Lock()
			defer mu.Unlock()
			switch {
			case ok && err == nil:
				s.Loaded = append(s.Loaded, d)
				loaded[d.String()] = struct{}{}
			case ok:
				s.Failed = append(s.Failed, DriverFailure{d, err})
			default:
				if err == nil {
					err = errors.New("no reason was given")
				}
				s.Skipped = append(s.Skipped, DriverFailure{d, err})
			}
		}(d)
	}
	wg.Wait()
}

type byDriverName []Driver

func (d byDriverName) Len() int           { return len(d) }
func (d byDriverName) Less(i, j int) bool { return d[i].String() < d[j].String() }
func (d byDriverName) Swap(i, j int)      { d[i], d[j] = d[j], d[i] }

type byFailureName []DriverFailure

func (f byFailureName) Len() int           { return len(f) }
func (f byFailureName) Less(i, j int) bool { return f[i].D.String() < f[j].D.String() }
func (f byFailureName) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }
