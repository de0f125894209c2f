package sdcard

import "github.com/pkg/errors"

// Size is the length in bytes of both the CSD and the CID registers.
const Size = 16

// Version identifies the CSD register layout, encoded in the top two
// bits of the CSD's first byte.
type Version byte

const (
	// V1p0 is the standard-capacity SD card CSD.
	V1p0 Version = 0
	// V2p0 is the high/extended-capacity SD card CSD.
	V2p0 Version = 1
	// V3p0 is the SDUC CSD.
	V3p0 Version = 2
	// VReserved marks a CSD version value the SD spec reserves.
	VReserved Version = 3
)

// ValidationError enumerates why SDCSDValidate-equivalent checks failed,
// mirroring the original firmware's SDCSDValidation enum so a caller can
// branch on the exact reason.
type ValidationError int

const (
	// ValidationOk means the register passed every check.
	ValidationOk ValidationError = iota
	// ValidationCRCFailed means the trailing CRC-7 did not match.
	ValidationCRCFailed
	// ValidationInvalidVersion means the CSD structure version is
	// reserved or (for CSD) not one this reader supports.
	ValidationInvalidVersion
	// ValidationReservedMismatch means a bit documented as reserved was
	// nonzero, or the register's fixed low bit was not 1.
	ValidationReservedMismatch
	// ValidationTranSpeedNotSupported means TRAN_SPEED was neither of
	// the two values the SD spec mandates after a CMD0 reset.
	ValidationTranSpeedNotSupported
	// ValidationInvalidReadBlLen means READ_BL_LEN was out of the range
	// this CSD version allows.
	ValidationInvalidReadBlLen
)

func (v ValidationError) String() string {
	switch v {
	case ValidationOk:
		return "ok"
	case ValidationCRCFailed:
		return "CRC error"
	case ValidationInvalidVersion:
		return "invalid version"
	case ValidationReservedMismatch:
		return "reserved fields mismatch"
	case ValidationTranSpeedNotSupported:
		return "transfer speed not supported"
	case ValidationInvalidReadBlLen:
		return "invalid read block length"
	default:
		return "unknown"
	}
}

// Error implements the error interface so ValidationError can be
// returned (and matched with errors.As) directly.
func (v ValidationError) Error() string {
	return "sdcard: csd validation: " + v.String()
}

// ErrChecksumInvalid is the sentinel ParseCSD and ParseCID wrap when the
// trailing CRC-7 does not match; match it with errors.Is. That error does
// not carry ValidationCRCFailed, so errors.As to a ValidationError does
// not match a CRC failure.
var ErrChecksumInvalid = errors.New("sdcard: checksum invalid")

// CSD is a parsed and validated 16-byte Card-Specific Data register.
type CSD struct {
	raw [Size]byte
}

// ParseCSD validates raw and returns a CSD wrapping it. raw must be
// exactly Size bytes.
func ParseCSD(raw []byte) (CSD, error) {
	if len(raw) != Size {
		return CSD{}, errors.Errorf("sdcard: csd must be %d bytes, got %d", Size, len(raw))
	}
	var c CSD
	copy(c.raw[:], raw)
	if err := c.validate(); err != nil {
		return CSD{}, err
	}
	return c, nil
}

func (c CSD) validate() error {
	computed := crc7(c.raw[:Size-1])
	want := c.raw[Size-1] >> 1
	if computed != want {
		return errors.Wrapf(ErrChecksumInvalid, "csd: computed crc7 0x%02x, register carries 0x%02x", computed, want)
	}
	if c.raw[Size-1]&0x1 == 0 {
		return errors.Wrap(ValidationReservedMismatch, "csd: fixed low bit is not 1")
	}

	v := c.Version()
	if v != V1p0 && v != V2p0 {
		return errors.Wrapf(ValidationInvalidVersion, "csd: version %d", v)
	}
	if c.raw[0]&0x3F != 0 {
		return errors.Wrap(ValidationReservedMismatch, "csd: reserved bits of byte 0 are nonzero")
	}

	// Per CSD §5.3, TRAN_SPEED is mandated to 25 MHz (0x32) or, in high
	// speed mode, 50 MHz (0x5A); a CMD0 reset clamps to these values
	// regardless of CSD version.
	switch c.tranSpeedByte() {
	case 0x32, 0x5A:
	default:
		return errors.Wrapf(ValidationTranSpeedNotSupported, "csd: tran_speed 0x%02x", c.tranSpeedByte())
	}

	readBlLen := c.readBlLen()
	switch {
	case v == V1p0 && (readBlLen < 9 || readBlLen > 11):
		return errors.Wrapf(ValidationInvalidReadBlLen, "csd v1: read_bl_len %d", readBlLen)
	case v == V2p0 && readBlLen != 9:
		return errors.Wrapf(ValidationInvalidReadBlLen, "csd v2: read_bl_len %d", readBlLen)
	}

	return nil
}

// Version returns the CSD structure version, from the top two bits of
// byte 0.
func (c CSD) Version() Version {
	return Version(c.raw[0] >> 6 & 0x3)
}

func (c CSD) tranSpeedByte() byte {
	return c.raw[3]
}

func (c CSD) readBlLen() byte {
	return c.raw[5] & 0x0F
}

// CCC returns the card command class bitmap, bits [95:84] of the CSD:
// the top byte at offset 4 (CCC[11:4]) and the top nibble of byte 5
// (CCC[3:0]), per SD Physical Layer Simplified Specification §5.3 Table
// 5-3. This reads bytes 4 and 5 directly rather than reinterpreting the
// register as an array of little-endian 16-bit words, which is
// equivalent on a little-endian host but ambiguous (and wrong on a
// big-endian one) when expressed that way.
func (c CSD) CCC() uint16 {
	return uint16(c.raw[4])<<4 | uint16(c.raw[5])>>4
}

// tranSpeedTimeValues are the TRAN_SPEED time-value mantissas from SD
// spec §5.3 Table 5-5, indexed by the top nibble of the TRAN_SPEED byte.
var tranSpeedTimeValues = [16]float64{
	0.0, 1.0, 1.2, 1.3, 1.5, 2.0, 2.5, 3.0,
	3.5, 4.0, 4.5, 5.0, 5.5, 6.0, 7.0, 8.0,
}

// MaxTransferRate returns TRAN_SPEED decoded into a frequency in Hz.
func (c CSD) MaxTransferRate() uint32 {
	tranSpeed := c.tranSpeedByte()
	baseFreq := uint32(100000)
	for i := 0; i < int(tranSpeed&0x07); i++ {
		baseFreq *= 10
	}
	timeValue := (tranSpeed >> 3) & 0x0F
	return uint32(tranSpeedTimeValues[timeValue] * float64(baseFreq))
}

// MaxReadDataBlockLength returns READ_BL_LEN decoded into a byte count:
// 2^READ_BL_LEN.
func (c CSD) MaxReadDataBlockLength() uint16 {
	return 1 << c.readBlLen()
}

// ByteAddressed reports whether addressing this card uses byte offsets
// (CSD v1.0) rather than 512-byte sector indices (CSD v2.0+).
func (c CSD) ByteAddressed() bool {
	return c.Version() == V1p0
}
