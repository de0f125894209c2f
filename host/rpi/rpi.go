// Package rpi is the register-level DMA/clock/GPIO backend for
// devices/vga on a Raspberry Pi, in the same spirit as google-periph's
// host/bcm283x: direct memory-mapped register access, re-targeted from
// that package's "PWM bit-banging for WS2812" use case to paced pixel
// emission for VGA. It requires root and real silicon, and is excluded
// from unit tests; devices/vga is exercised instead through vgatest's
// software doubles.
package rpi

import (
	"os"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/go-vga/vgascan"
	"github.com/go-vga/vgascan/conn/dma"
	"github.com/go-vga/vgascan/conn/synctimer"
	"github.com/go-vga/vgascan/devices/vga"
)

// Backend owns the memory-mapped peripheral registers this package
// pokes directly, and implements both dma.Channel and synctimer.Pair
// over them.
type Backend struct {
	mem  []byte
	base uintptr

	gpio  *gpioRegisters
	clock *clockRegisters
	dmaCh *dmaChannelRegisters
	timer *timerRegisters

	mu      sync.Mutex
	onLine  synctimer.LineEndFunc
	onFrame synctimer.FrameEndFunc
	stop    chan struct{}
	period  time.Duration
	line    synctimer.LineConfig
	frame   synctimer.FrameConfig
}

// String implements vgascan.Driver.
func (b *Backend) String() string { return "rpi" }

// Prerequisites implements vgascan.Driver; this backend has none.
func (b *Backend) Prerequisites() []string { return nil }

// Init maps the BCM283x peripheral block and wires this Backend as
// devices/vga's DMA/sync/GPIO implementation. On anything but a Raspberry
// Pi it returns false with the detection error as the reason (skipped,
// not failed), matching host/bcm283x's own "irrelevant on this host"
// convention.
func (b *Backend) Init() (bool, error) {
	base, err := detectPeripheralBase()
	if err != nil {
		return false, err
	}

	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return true, errors.Wrap(err, "rpi: open /dev/mem (are you root?)")
	}
	defer f.Close()

	const mapSize = 0x300000
	mem, err := syscall.Mmap(int(f.Fd()), int64(base), mapSize, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return true, errors.Wrap(err, "rpi: mmap peripheral block")
	}

	b.mem = mem
	b.base = base
	b.gpio = (*gpioRegisters)(unsafe.Pointer(&mem[gpioOffset]))
	b.clock = (*clockRegisters)(unsafe.Pointer(&mem[clockOffset]))
	b.dmaCh = (*dmaChannelRegisters)(unsafe.Pointer(&mem[dmaOffset]))
	b.timer = (*timerRegisters)(unsafe.Pointer(&mem[timerOffset]))
	b.stop = make(chan struct{})
	b.period = baselinePixelPeriod

	vga.SetGPIODataRegister(b.base + gpioOffset + 0x1C) // GPSET0, the byte-wide pixel output port
	return true, nil
}

// detectPeripheralBase reads /proc/cpuinfo's Revision field the way
// host/bcm283x does, and maps it to a peripheral base address.
func detectPeripheralBase() (uintptr, error) {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return 0, err
	}
	// A full revision-code decode belongs in a general-purpose host
	// detection package; this reader only needs "is this a BCM283x" and
	// picks the widest-compatible (Pi2/3) base when it can't tell more
	// precisely, since every generation's GPIO/clock/DMA offsets used
	// here are unchanged across the family except the base address.
	if !containsBCMMarker(data) {
		return 0, errors.New("rpi: not a Raspberry Pi")
	}
	return peripheralBaseBCM2836, nil
}

func containsBCMMarker(cpuinfo []byte) bool {
	markers := [][]byte{[]byte("BCM2835"), []byte("BCM2836"), []byte("BCM2837"), []byte("BCM2711"), []byte("Raspberry Pi")}
	for _, m := range markers {
		if indexOf(cpuinfo, m) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return i
		}
	}
	return -1
}

// Arm implements dma.Channel. Real control-block chaining requires
// physically contiguous, bus-addressable memory (an uncached
// allocation this package does not yet manage); until that lands, Arm
// programs the channel's registers directly for a single one-shot
// transfer rather than building a control-block chain.
func (b *Backend) Arm(d dma.Descriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	info := uint32(dmaTransferInfoSrcInc | dmaTransferInfoWaitResp)
	b.dmaCh.transferInfo = info
	b.dmaCh.sourceAddr = uint32(d.Src)
	b.dmaCh.destAddr = uint32(d.Dst)
	b.dmaCh.transferLen = uint32(d.Count)
	b.dmaCh.cs = dmaCSActive
	return nil
}

// Disable implements dma.Channel.
func (b *Backend) Disable() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dmaCh.cs = 0
	return nil
}

// WaitComplete implements dma.Channel by polling the channel's END/ERROR
// flags, standing in for the real DMA-complete interrupt.
func (b *Backend) WaitComplete() error {
	for i := 0; i < 1_000_000; i++ {
		cs := b.dmaCh.cs
		if cs&dmaCSError != 0 {
			return dma.ErrFault
		}
		if cs&dmaCSEnd != 0 {
			b.dmaCh.cs = dmaCSEnd
			return nil
		}
	}
	return dma.ErrFault
}

// Configure implements synctimer.Pair.
func (b *Backend) Configure(line synctimer.LineConfig, frame synctimer.FrameConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.line, b.frame = line, frame
	return nil
}

// Start implements synctimer.Pair. It enables the clock generator and
// starts a software goroutine, paced by a time.Ticker at the baseline
// pixel period, that invokes onLine/onFrame at the programmed line/frame
// boundaries. The PWM FIFO's DREQ and hardware compare channels are not
// used.
func (b *Backend) Start(onLine synctimer.LineEndFunc, onFrame synctimer.FrameEndFunc) error {
	b.mu.Lock()
	b.onLine, b.onFrame = onLine, onFrame
	line, frame := b.line, b.frame
	stop := b.stop
	b.mu.Unlock()

	if err := b.programClock(); err != nil {
		return err
	}

	go b.paceLoop(line, frame, stop)
	return nil
}

// baselinePixelPeriod is the pixel period of the 40 MHz baseline mode.
// PixelPeriod reports it and paceLoop ticks at it; it is not derived from
// the clock generator's divider.
const baselinePixelPeriod = time.Second / 40_000_000

// programClock enables the pixel clock generator on the 19.2 MHz
// oscillator with an integer divider of 1, per host/bcm283x's clock.go
// register layout, so the generator runs at the oscillator rate. The
// DividerChain computed by vga.ClockPlan is not applied here.
func (b *Backend) programClock() error {
	b.clock.div = uint32(clockPasswd) | (1 << clockDivIShift)
	b.clock.ctl = uint32(clockPasswd) | clockSrcOscillator | clockEnable
	deadline := time.Now().Add(10 * time.Millisecond)
	for b.clock.ctl&clockBusy == 0 {
		if time.Now().After(deadline) {
			return errors.New("rpi: clock generator did not report busy")
		}
	}
	return nil
}

// paceLoop stands in for the PWM-FIFO-driven hardware trigger: it ticks
// once per pixel period and calls onLine at the end of every line and
// onFrame at the end of every frame, the same cadence the real
// hardware's compare-match interrupts would deliver.
func (b *Backend) paceLoop(line synctimer.LineConfig, frame synctimer.FrameConfig, stop chan struct{}) {
	ticker := time.NewTicker(baselinePixelPeriod)
	defer ticker.Stop()

	pixel, lineNum := 0, 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			pixel++
			if pixel >= int(line.PeriodPixels) {
				pixel = 0
				if b.onLine != nil {
					b.onLine(lineNum)
				}
				lineNum++
				if lineNum >= int(frame.PeriodLines) {
					lineNum = 0
					if b.onFrame != nil {
						b.onFrame()
					}
				}
			}
		}
	}
}

// Stop implements synctimer.Pair.
func (b *Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		close(b.stop)
		b.stop = make(chan struct{})
	}
	b.clock.ctl = uint32(clockPasswd) | clockKill
	return nil
}

// ForceBlank implements synctimer.Pair by clearing the GPIO data
// register bits, forcing RGB to analogue-black immediately.
func (b *Backend) ForceBlank(enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if enabled {
		b.gpio.clr[0] = 0xFF
	}
	return nil
}

// PixelPeriod implements synctimer.Pair.
func (b *Backend) PixelPeriod() time.Duration {
	return b.period
}

var _ vgascan.Driver = &Backend{}
var _ dma.Channel = &Backend{}
var _ synctimer.Pair = &Backend{}

// shared is the single Backend instance this package registers and
// hands out; exactly one DMA/clock/GPIO block exists per board, so
// unlike conn/i2c or conn/spi there is no multi-instance registry here.
var shared = &Backend{}

// Default returns the shared Backend, initialized by Init(). Callers
// wiring devices/vga (cmd/vga-run, chiefly) use it as both the
// dma.Channel and the synctimer.Pair implementation.
func Default() *Backend { return shared }

func init() {
	vgascan.MustRegister(shared)
}
