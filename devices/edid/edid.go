// Package edid parses and validates the 128-byte Extended Display
// Identification Data block a monitor returns over its DDC2B channel,
// and reads it over an I²C bus.
package edid

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"

	"github.com/go-vga/vgascan/devices/vga"
)

// Size is the fixed length of an EDID block.
const Size = 128

// Error taxonomy, per spec.md §4.8/§7.
var (
	// ErrHeaderInvalid means the fixed 8-byte header pattern did not
	// match.
	ErrHeaderInvalid = errors.New("edid: header pattern invalid")
	// ErrChecksumInvalid means the 128-byte sum modulo 256 was nonzero.
	ErrChecksumInvalid = errors.New("edid: checksum invalid")
)

// headerPattern is the fixed byte sequence every EDID block starts with.
var headerPattern = [8]byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

// Timing identifies one of the established-timing bitmap's bits, in the
// byte*8+bit order the bitmap is laid out in.
type Timing int

// Established timings, byte 0 (bits 7..0) then byte 1, then byte 2 of
// the 3-byte bitmap, per VESA EDID §3.8.
const (
	Timing800x600At60Hz  Timing = 0
	Timing800x600At56Hz  Timing = 1
	Timing640x480At75Hz  Timing = 2
	Timing640x480At72Hz  Timing = 3
	Timing640x480At67Hz  Timing = 4
	Timing640x480At60Hz  Timing = 5
	Timing720x400At88Hz  Timing = 6
	Timing720x400At70Hz  Timing = 7
)

// Edid is a parsed and validated 128-byte EDID block.
type Edid struct {
	raw [Size]byte
}

// Parse validates raw and returns an Edid wrapping it. raw must be
// exactly Size bytes.
func Parse(raw []byte) (Edid, error) {
	if len(raw) != Size {
		return Edid{}, errors.Errorf("edid: block must be %d bytes, got %d", Size, len(raw))
	}
	var e Edid
	copy(e.raw[:], raw)

	if [8]byte(e.raw[:8]) != headerPattern {
		return Edid{}, errors.Wrapf(ErrHeaderInvalid, "got % x", e.raw[:8])
	}

	var sum byte
	for _, b := range e.raw {
		sum += b
	}
	if sum != 0 {
		return Edid{}, errors.Wrapf(ErrChecksumInvalid, "sum mod 256 = %d", sum)
	}

	return e, nil
}

// Manufacturer decodes the three-letter manufacturer code: two bytes,
// big-endian, three 5-bit letters each offset by '@'.
func (e Edid) Manufacturer() string {
	v := binary.BigEndian.Uint16(e.raw[8:10])
	letter := func(shift uint) byte {
		return byte((v>>shift)&0x1F) + '@'
	}
	return string([]byte{letter(10), letter(5), letter(0)})
}

// ProductCode is the manufacturer's product code, little-endian.
func (e Edid) ProductCode() uint16 {
	return binary.LittleEndian.Uint16(e.raw[10:12])
}

// Serial is the manufacturer's serial number, little-endian.
func (e Edid) Serial() uint32 {
	return binary.LittleEndian.Uint32(e.raw[12:16])
}

// ManufactureWeek is the week of manufacture, 1-54 (0 or 255 mean
// unspecified, per VESA EDID §3.4).
func (e Edid) ManufactureWeek() byte {
	return e.raw[16]
}

// ManufactureYear is the year of manufacture, decoded from its EDID
// offset-from-1990 encoding.
func (e Edid) ManufactureYear() int {
	return 1990 + int(e.raw[17])
}

// Version returns the EDID major and minor version numbers.
func (e Edid) Version() (major, minor byte) {
	return e.raw[18], e.raw[19]
}

// DigitalInput reports whether the display's video input is digital
// (true) or analog (false), from the MSB of the basic display
// parameters' first byte.
func (e Edid) DigitalInput() bool {
	return e.raw[20]&0x80 != 0
}

// Gamma returns the display's reported gamma: 1.0 + gammaByte/100.
func (e Edid) Gamma() float64 {
	return 1.0 + float64(e.raw[23])/100.0
}

// Supports implements vga.ModeAdvertiser: it reports whether the
// baseline 800x600@60Hz mode is advertised in the established-timing
// bitmap. Other frame shapes are never advertised by this reader, since
// the engine only ever requests the baseline mode, per spec.md §4.3.
func (e Edid) Supports(frame vga.VideoFrameInfo) bool {
	if frame.PixelFrequency != 40*physic.MegaHertz {
		return false
	}
	if frame.HTiming.Visible != 800 || frame.VTiming.Visible != 600 {
		return false
	}
	return e.HasEstablishedTiming(Timing800x600At60Hz)
}

// HasEstablishedTiming reports whether timing's bit is set in the
// 3-byte established-timing bitmap.
func (e Edid) HasEstablishedTiming(timing Timing) bool {
	byteIndex := int(timing) / 8
	if byteIndex < 0 || byteIndex >= 3 {
		return false
	}
	bitIndex := uint(timing) % 8
	return e.raw[35+byteIndex]&(1<<bitIndex) != 0
}

// standardTimingOffset is the byte offset of the eight 2-byte standard
// timing descriptors.
const standardTimingOffset = 38

// StandardTimingFilled reports whether the i-th (0-based) standard
// timing slot carries data; {0x01, 0x01} marks an empty slot.
func (e Edid) StandardTimingFilled(i int) bool {
	off := standardTimingOffset + i*2
	return e.raw[off] != 0x01 || e.raw[off+1] != 0x01
}

// descriptorOffset is the byte offset of the i-th (0-based, 0..3) 18-byte
// descriptor block.
func descriptorOffset(i int) int {
	return 54 + i*18
}

// DetailedTiming describes a parsed detailed-timing descriptor.
type DetailedTiming struct {
	PixelClock physic.Frequency
	HActive    int
	HBlanking  int
	VActive    int
	VBlanking  int
	HFrontPorch, HSyncWidth int
	VFrontPorch, VSyncWidth int
}

// IsDetailedTiming reports whether the i-th descriptor is a
// detailed-timing descriptor (its first two bytes are not both zero).
func (e Edid) IsDetailedTiming(i int) bool {
	off := descriptorOffset(i)
	return e.raw[off] != 0 || e.raw[off+1] != 0
}

// DetailedTiming parses the i-th descriptor as a detailed-timing block.
// The caller must check IsDetailedTiming(i) first.
func (e Edid) DetailedTiming(i int) DetailedTiming {
	d := e.raw[descriptorOffset(i) : descriptorOffset(i)+18]

	hActive := int(d[2]) | int(d[4]>>4)<<8
	hBlanking := int(d[3]) | int(d[4]&0x0F)<<8
	vActive := int(d[5]) | int(d[7]>>4)<<8
	vBlanking := int(d[6]) | int(d[7]&0x0F)<<8

	hFrontPorch := int(d[8]) | int(d[11]>>6)<<8
	hSyncWidth := int(d[9]) | int((d[11]>>4)&0x03)<<8
	vFrontPorch := int(d[10]>>4) | int((d[11]>>2)&0x03)<<4
	vSyncWidth := int(d[10]&0x0F) | int(d[11]&0x03)<<4

	return DetailedTiming{
		PixelClock:  physic.Frequency(binary.LittleEndian.Uint16(d[0:2])) * 10 * physic.KiloHertz,
		HActive:     hActive,
		HBlanking:   hBlanking,
		VActive:     vActive,
		VBlanking:   vBlanking,
		HFrontPorch: hFrontPorch,
		HSyncWidth:  hSyncWidth,
		VFrontPorch: vFrontPorch,
		VSyncWidth:  vSyncWidth,
	}
}

// Extensions is the declared extension-block count.
func (e Edid) Extensions() byte {
	return e.raw[126]
}

// Summary is a machine-dumpable snapshot of the fields cmd/vga-info and
// host/diag report, adapted from the original firmware's
// EDIDDumpStructure.
type Summary struct {
	Manufacturer    string
	ProductCode     uint16
	ManufactureWeek byte
	ManufactureYear int
	VersionMajor    byte
	VersionMinor    byte
	DigitalInput    bool
	Gamma           float64
	Supports800x600 bool
}

// Summary builds a Summary for logging or CBOR encoding.
func (e Edid) Summary() Summary {
	major, minor := e.Version()
	return Summary{
		Manufacturer:    e.Manufacturer(),
		ProductCode:     e.ProductCode(),
		ManufactureWeek: e.ManufactureWeek(),
		ManufactureYear: e.ManufactureYear(),
		VersionMajor:    major,
		VersionMinor:    minor,
		DigitalInput:    e.DigitalInput(),
		Gamma:           e.Gamma(),
		Supports800x600: e.HasEstablishedTiming(Timing800x600At60Hz),
	}
}
