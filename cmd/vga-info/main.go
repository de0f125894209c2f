// vga-info dumps the EDID block from an attached monitor and, when a
// card is present, the CSD/CID registers from an SD card reader, in
// the style of periph.io's own bus-dump utilities.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/kidoman/embd"

	"github.com/go-vga/vgascan"
	"github.com/go-vga/vgascan/devices/edid"
	"github.com/go-vga/vgascan/devices/sdcard"
	_ "github.com/go-vga/vgascan/host/rpi"
)

func mainImpl() error {
	i2cBus := flag.String("i2c-bus", "", "I²C bus to read EDID from")
	spiBus := flag.String("spi-bus", "", "SPI bus the SD card is on; omit to skip the CSD/CID dump")
	sdPowerPin := flag.Int("sd-power-pin", 0, "embd GPIO key driving the SD card's VDD pin; 0 leaves VDD under external control")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}

	if _, err := host.Init(); err != nil {
		return err
	}
	if _, err := vgascan.Init(); err != nil {
		return err
	}

	if err := dumpEDID(*i2cBus); err != nil {
		return err
	}
	if *spiBus != "" {
		if err := dumpSD(*spiBus, *sdPowerPin); err != nil {
			return err
		}
	}
	return nil
}

func dumpEDID(busName string) error {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return err
	}
	defer bus.Close()

	reader := edid.NewReader(&i2c.Dev{Bus: bus, Addr: edid.Address})
	block, err := reader.Read()
	if err != nil {
		return err
	}

	s := block.Summary()
	fmt.Printf("EDID manufacturer: %s, product 0x%04x\n", s.Manufacturer, s.ProductCode)
	fmt.Printf("  manufactured:    week %d of %d\n", s.ManufactureWeek, s.ManufactureYear)
	fmt.Printf("  version:         %d.%d\n", s.VersionMajor, s.VersionMinor)
	fmt.Printf("  digital input:   %v\n", s.DigitalInput)
	fmt.Printf("  gamma:           %.2f\n", s.Gamma)
	fmt.Printf("  supports 800x600@60Hz: %v\n", s.Supports800x600)
	return nil
}

func dumpSD(busName string, powerPin int) error {
	port, err := spireg.Open(busName)
	if err != nil {
		return err
	}
	defer port.Close()

	c, err := port.Connect(25*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return err
	}

	power, closePowerPin, err := newPowerPin(powerPin)
	if err != nil {
		return err
	}
	defer closePowerPin()

	card := sdcard.New(c, power)
	if err := card.PowerCycle(); err != nil {
		return err
	}
	if err := card.TryConnect(); err != nil {
		return err
	}

	csd := card.CSD()
	fmt.Printf("CSD version:        %d\n", csd.Version())
	fmt.Printf("  max transfer rate: %d Hz\n", csd.MaxTransferRate())
	fmt.Printf("  max block length:  %d bytes\n", csd.MaxReadDataBlockLength())
	fmt.Printf("  command classes:   0x%03x\n", csd.CCC())

	cid := card.CID()
	fmt.Printf("CID manufacturer ID: 0x%02x\n", cid.ManufacturerID())
	return nil
}

// newPowerPin builds the embd-backed PowerPin driving the SD card's VDD
// rail from pinKey, or a no-op pin when pinKey is 0 (VDD already powered
// externally). The returned func releases the GPIO pin and the embd GPIO
// driver; it is always safe to call, even for the no-op case.
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

// noopPowerPin is used when the host's VDD rail is already powered
// externally and vga-info is only reading registers.
type noopPowerPin struct{}

func (noopPowerPin) Write(val int) error { return nil }

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "vga-info: %v\n", err)
		os.Exit(1)
	}
}
