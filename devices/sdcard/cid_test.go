package sdcard

import (
	"testing"

	"github.com/pkg/errors"
)

func sampleCID() [Size]byte {
	var raw [Size]byte
	raw[0] = 0x03 // SanDisk's assigned manufacturer ID
	raw[Size-1] = crc7(raw[:Size-1])<<1 | 0x1
	return raw
}

func TestParseCID_Accepts(t *testing.T) {
	raw := sampleCID()
	cid, err := ParseCID(raw[:])
	if err != nil {
		t.Fatalf("ParseCID: %v", err)
	}
	if cid.ManufacturerID() != 0x03 {
		t.Fatalf("ManufacturerID() = 0x%02x, want 0x03", cid.ManufacturerID())
	}
}

func TestParseCID_RejectsBadCRC(t *testing.T) {
	raw := sampleCID()
	raw[1] ^= 0xFF
	if _, err := ParseCID(raw[:]); !errors.Is(err, ErrChecksumInvalid) {
		t.Fatalf("got %v, want ErrChecksumInvalid", err)
	}
}

func TestParseCID_RejectsMissingFixedBit(t *testing.T) {
	raw := sampleCID()
	raw[Size-1] &^= 0x1
	if _, err := ParseCID(raw[:]); !errors.Is(err, ValidationReservedMismatch) {
		t.Fatalf("got %v, want ValidationReservedMismatch", err)
	}
}
