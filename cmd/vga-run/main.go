// vga-run wires the scan-out engine's ConnectionTask/MainTask harness
// end to end against real hardware: it waits for a monitor, negotiates
// a mode from its EDID, and drives the display until disconnected,
// repeating indefinitely.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/kidoman/embd"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/go-vga/vgascan"
	"github.com/go-vga/vgascan/devices/edid"
	"github.com/go-vga/vgascan/devices/sdcard"
	"github.com/go-vga/vgascan/devices/vga"
	"github.com/go-vga/vgascan/host/console"
	"github.com/go-vga/vgascan/host/diag"
	"github.com/go-vga/vgascan/host/presence"
	"github.com/go-vga/vgascan/host/ramarena"
	"github.com/go-vga/vgascan/host/rpi"
	"github.com/go-vga/vgascan/host/task"
)

// rearmLatency bounds host/rpi's worst-case DMA rearm time; it is
// conservative until that backend's control-block chaining lands.
const rearmLatency = 2 * time.Microsecond

func mainImpl() error {
	i2cBus := flag.String("i2c-bus", "", "I²C bus the monitor's EDID is on")
	spiBus := flag.String("spi-bus", "", "SPI bus the SD card is on; omit to skip the content card entirely")
	sdPowerPin := flag.Int("sd-power-pin", 0, "embd GPIO key driving the SD card's VDD pin; 0 leaves VDD under external control")
	consolePath := flag.String("console", "/dev/ttyAMA0", "serial console device")
	logPath := flag.String("log", "/var/log/vga-run.log", "rotated diagnostic log path")
	arenaBytes := flag.Int("arena-bytes", 4*1024*1024, "framebuffer arena size in bytes")
	flag.Parse()

	if _, err := host.Init(); err != nil {
		return err
	}
	if _, err := vgascan.Init(); err != nil {
		return err
	}

	con, err := console.Open(*consolePath)
	if err != nil {
		return err
	}
	defer con.Close()

	logger := diag.New(zapcore.AddSync(os.Stdout), diag.Config{
		FilePath:         *logPath,
		MaxSizeMB:        8,
		MaxBackups:       4,
		SnapshotRingSize: 16,
	})
	defer logger.Sync()

	arena := ramarena.New(*arenaBytes)

	var engine *vga.ScanoutEngine
	var fb *vga.FrameBuffer

	backend := rpi.Default()
	clock := vga.ClockPlan{OscillatorFrequency: 19_200_000 * physic.Hertz}

	sdPower, closePowerPin, err := newPowerPin(*sdPowerPin)
	if err != nil {
		return err
	}
	defer closePowerPin()

	connect := func(ctx context.Context) error {
		bus, err := i2creg.Open(*i2cBus)
		if err != nil {
			return err
		}
		defer bus.Close()

		reader := edid.NewReader(&i2c.Dev{Bus: bus, Addr: edid.Address})
		block, err := reader.Read()
		if err != nil {
			logger.Warn("edid read failed", zap.Error(err))
			return err
		}
		logger.LogSummary("edid", block.Summary())

		selector := vga.ModeSelector{Clock: clock, ArenaBudget: arena.Cap()}
		scaled, err := selector.Select(block, vga.VisualizationRequest{
			Frame:   vga.VideoFrame800x600At60Hz,
			Scaling: 1,
			Bpp:     vga.Bpp3,
		})
		if err != nil {
			return err
		}

		buf, err := vga.NewFrameBuffer(arena, vga.Bpp3, int(scaled.HTiming.Visible), int(scaled.VTiming.Visible), true)
		if err != nil {
			return err
		}

		if *spiBus != "" {
			if err := logSDCard(logger, *spiBus, sdPower); err != nil {
				logger.Warn("sd card probe failed", zap.Error(err))
			}
		}

		sync := vga.NewSyncGenerator(backend)
		dmaCh := vga.NewLineDma(backend, vga.Bpp3)

		e := vga.NewScanoutEngine(vga.VideoFrame800x600At60Hz, scaled, buf, sync, dmaCh, clock, rearmLatency)
		if err := e.Start(); err != nil {
			return err
		}
		engine = e
		fb = buf
		return nil
	}

	run := func(ctx context.Context) error {
		prober := edidProber{i2cBus: *i2cBus}
		mon := presence.New(prober, "")
		defer mon.Close()

		go mon.Run(ctx)

		for {
			select {
			case <-ctx.Done():
				return nil
			case cmd := <-con.Commands:
				handleCommand(engine, cmd)
			case tr := <-mon.Events:
				if tr.To == presence.Absent {
					return tr.Cause
				}
			case rec := <-engine.Faults():
				logger.LogFault(diag.FaultRecord{
					State:           rec.State.String(),
					Cause:           rec.Cause.Error(),
					TimestampUnixNs: rec.TimestampUnix,
					LineAtFault:     rec.LineAtFault,
				})
				return rec.Cause
			}
		}
	}

	teardown := func() error {
		if engine == nil {
			return nil
		}
		err := engine.Stop()
		engine = nil
		if fb != nil {
			_ = fb.Close()
			fb = nil
		}
		return err
	}

	h := task.New(connect, run, teardown)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		cancel()
	}()

	h.Start(ctx)
	<-ctx.Done()
	return nil
}

func handleCommand(e *vga.ScanoutEngine, cmd console.Command) {
	if e == nil {
		return
	}
	switch cmd {
	case console.CommandSuspend:
		_ = e.Suspend()
	case console.CommandResume:
		_ = e.Resume()
	case console.CommandReconnect:
		_ = e.Stop()
	}
}

// newPowerPin builds the embd-backed PowerPin driving the SD card's VDD
// rail from pinKey, or a no-op pin when pinKey is 0 (VDD already under
// external control). The returned func releases the GPIO pin and the
// embd GPIO driver; it is always safe to call, even for the no-op case.
func newPowerPin(pinKey int) (sdcard.PowerPin, func(), error) {
	if pinKey == 0 {
		return noopPowerPin{}, func() {}, nil
	}
	if err := embd.InitGPIO(); err != nil {
		return nil, nil, err
	}
	pin, err := embd.NewDigitalPin(pinKey)
	if err != nil {
		embd.CloseGPIO()
		return nil, nil, err
	}
	if err := pin.SetDirection(embd.Out); err != nil {
		pin.Close()
		embd.CloseGPIO()
		return nil, nil, err
	}
	return pin, func() {
		pin.Close()
		embd.CloseGPIO()
	}, nil
}

// noopPowerPin is used when the SD card's VDD rail is already powered
// externally.
type noopPowerPin struct{}

func (noopPowerPin) Write(val int) error { return nil }

// logSDCard power-cycles and connects to the card on spiBusName, logging
// its CSD/CID summary as a diagnostic snapshot. It never feeds the
// framebuffer: decoding the card's filesystem and bitmap content is out
// of scope here, same as for vga-info.
func logSDCard(logger *diag.Logger, spiBusName string, power sdcard.PowerPin) error {
	port, err := spireg.Open(spiBusName)
	if err != nil {
		return err
	}
	defer port.Close()

	c, err := port.Connect(25*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return err
	}

	card := sdcard.New(c, power)
	if err := card.PowerCycle(); err != nil {
		return err
	}
	if err := card.TryConnect(); err != nil {
		return err
	}

	logger.LogSummary("sdcard", struct {
		MaxTransferRate uint32
		CCC             uint16
		AddressingMode  sdcard.AddressingMode
	}{
		MaxTransferRate: card.CSD().MaxTransferRate(),
		CCC:             card.CSD().CCC(),
		AddressingMode:  card.AddressingMode(),
	})
	return nil
}

// edidProber implements presence.Prober by re-opening the I²C bus and
// attempting a one-byte EDID header read.
type edidProber struct {
	i2cBus string
}

func (p edidProber) Probe(ctx context.Context) error {
	bus, err := i2creg.Open(p.i2cBus)
	if err != nil {
		return err
	}
	defer bus.Close()
	dev := &i2c.Dev{Bus: bus, Addr: edid.Address}
	return dev.Tx([]byte{0x00}, make([]byte, 1))
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "vga-run: %v\n", err)
		os.Exit(1)
	}
}
