package sdcard

import "github.com/pkg/errors"

// CID is a parsed and validated 16-byte Card Identification register.
type CID struct {
	raw [Size]byte
}

// ParseCID validates raw and returns a CID wrapping it. raw must be
// exactly Size bytes. Unlike the CSD, the CID carries no version
// discriminator or field-level rules beyond the trailing CRC-7.
func ParseCID(raw []byte) (CID, error) {
	if len(raw) != Size {
		return CID{}, errors.Errorf("sdcard: cid must be %d bytes, got %d", Size, len(raw))
	}
	var c CID
	copy(c.raw[:], raw)

	computed := crc7(c.raw[:Size-1])
	want := c.raw[Size-1] >> 1
	if computed != want {
		return CID{}, errors.Wrapf(ErrChecksumInvalid, "cid: computed crc7 0x%02x, register carries 0x%02x", computed, want)
	}
	if c.raw[Size-1]&0x1 == 0 {
		return CID{}, errors.Wrap(ValidationReservedMismatch, "cid: fixed low bit is not 1")
	}
	return c, nil
}

// ManufacturerID is the single-byte manufacturer code assigned by the SD
// Association, the first byte of the CID.
func (c CID) ManufacturerID() byte {
	return c.raw[0]
}

// Raw returns a copy of the 16 underlying bytes.
func (c CID) Raw() [Size]byte {
	return c.raw
}
