package sdcard

import (
	"testing"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/spi"
)

// streamSPI is a fake spi.Conn that serves read bytes from a
// pre-scripted stream, in the order the client requests them, and
// discards everything written. It is deliberately simple: tests build
// the exact byte stream the happy-path protocol sequence consumes.
type streamSPI struct {
	stream []byte
	pos    int
	writes [][]byte
}

func (s *streamSPI) Tx(w, r []byte) error {
	s.writes = append(s.writes, append([]byte(nil), w...))
	if r != nil {
		if s.pos+len(r) > len(s.stream) {
			return errors.Errorf("streamSPI: out of scripted bytes at pos %d, want %d more", s.pos, len(r))
		}
		copy(r, s.stream[s.pos:s.pos+len(r)])
		s.pos += len(r)
	}
	return nil
}

func (s *streamSPI) TxPackets(p []spi.Packet) error { return nil }

var _ spi.Conn = &streamSPI{}

// fakePin is a fake PowerPin recording every level it was driven to.
type fakePin struct {
	levels []int
}

func (p *fakePin) Write(val int) error {
	p.levels = append(p.levels, val)
	return nil
}

var _ PowerPin = &fakePin{}

func TestSD_PowerCycle_DrivesLowThenHigh(t *testing.T) {
	pin := &fakePin{}
	sd := New(&streamSPI{}, pin)
	if err := sd.PowerCycle(); err != nil {
		t.Fatalf("PowerCycle: %v", err)
	}
	if len(pin.levels) != 2 || pin.levels[0] != powerLow || pin.levels[1] != powerHigh {
		t.Fatalf("levels = %v, want [Low High]", pin.levels)
	}
}

func buildHappyPathStream(t *testing.T) []byte {
	t.Helper()
	var stream []byte
	stream = append(stream, 0x01) // CMD0 R1: idle
	stream = append(stream, 0x00) // ACMD41 R1: ready

	csd := sampleCSDV2()
	stream = append(stream, 0x00)       // CMD9 R1
	stream = append(stream, 0xFE)       // CMD9 data token
	stream = append(stream, csd[:]...) // CSD register
	stream = append(stream, 0x00, 0x00) // trailing dummy bytes

	cid := sampleCID()
	stream = append(stream, 0x00)
	stream = append(stream, 0xFE)
	stream = append(stream, cid[:]...)
	stream = append(stream, 0x00, 0x00)

	block := make([]byte, BlockSize)
	for i := range block {
		block[i] = byte(i)
	}
	crc := crc16(block)
	stream = append(stream, 0x00) // CMD17 R1
	stream = append(stream, 0xFE) // CMD17 data token
	stream = append(stream, block...)
	stream = append(stream, byte(crc>>8), byte(crc))

	return stream
}

func TestSD_TryConnectAndReadBlock(t *testing.T) {
	fake := &streamSPI{stream: buildHappyPathStream(t)}
	sd := New(fake, &fakePin{})

	if err := sd.TryConnect(); err != nil {
		t.Fatalf("TryConnect: %v", err)
	}
	if sd.AddressingMode() != SectorAddressing {
		t.Fatalf("AddressingMode() = %v, want SectorAddressing", sd.AddressingMode())
	}

	dst := make([]byte, BlockSize)
	if err := sd.ReadBlock(0, dst); err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if dst[1] != 1 || dst[255] != 255%256 {
		t.Fatalf("unexpected block contents")
	}
}

func TestSD_ReadBlock_RejectsShortDestination(t *testing.T) {
	sd := New(&streamSPI{}, &fakePin{})
	if err := sd.ReadBlock(0, make([]byte, 10)); err == nil {
		t.Fatalf("expected error for undersized destination")
	}
}
