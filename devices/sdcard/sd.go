package sdcard

import (
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/spi"
)

// PowerPin is the narrow embd.DigitalPin surface SD needs to drive the
// card's VDD control line: an *embd.GPIODriver pin (or any GPIO library
// exposing the same Write(int) convention) satisfies it directly,
// without pulling periph.io's richer bus abstraction into a single
// leaf pin.
type PowerPin interface {
	Write(val int) error
}

// powerLow and powerHigh match embd's Low/High digital levels.
const (
	powerLow  = 0
	powerHigh = 1
)

// BlockSize is the fixed SD block size this reader supports.
const BlockSize = 512

// AddressingMode discriminates byte- versus sector-addressed cards,
// determined by the CSD version per spec.md §6.
type AddressingMode int

const (
	// ByteAddressing is used by standard-capacity (CSD v1.0) cards.
	ByteAddressing AddressingMode = iota
	// SectorAddressing is used by high/extended-capacity (CSD v2.0+)
	// cards, where the read-block command argument is a 512-byte sector
	// index rather than a byte offset.
	SectorAddressing
)

// ErrCorrupt is returned by ReadBlock when the data block's CRC-16 does
// not match.
var ErrCorrupt = errors.New("sdcard: block read corrupted")

// ErrTimeout is returned when a card fails to respond within this
// reader's initialization or command-response budget.
var ErrTimeout = errors.New("sdcard: timeout")

// SD is an SD card accessed in SPI mode, over a periph.io SPI connection
// with a GPIO-driven power rail for the card's VDD pin.
type SD struct {
	conn  spi.Conn
	power PowerPin

	csd  CSD
	cid  CID
	mode AddressingMode
}

// New wraps conn (already opened in SPI mode 0) and power (the card's VDD
// control pin).
func New(conn spi.Conn, power PowerPin) *SD {
	return &SD{conn: conn, power: power}
}

// PowerCycle performs the published SD power-cycle sequence from the SD
// Physical Layer Simplified Specification §6.4.1: VDD held low for at
// least 1 ms, then raised and held for at least 1 ms before the host
// begins clocking, with 10x margin on both delays. It does not loop
// waiting for card presence — initialization proceeds unconditionally
// once VDD has stabilized, and TryConnect reports absence if no card
// responds.
func (s *SD) PowerCycle() error {
	if err := s.power.Write(powerLow); err != nil {
		return errors.Wrap(err, "sdcard: power cycle: drive VDD low")
	}
	time.Sleep(10 * time.Millisecond)
	if err := s.power.Write(powerHigh); err != nil {
		return errors.Wrap(err, "sdcard: power cycle: drive VDD high")
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

// maxInitAttempts bounds the ACMD41-equivalent ready-poll loop. The
// original firmware's power-cycle routine polled card presence in an
// unconditional loop with no exit; this reader polls a fixed number of
// times and reports ErrTimeout instead.
const maxInitAttempts = 100

// TryConnect runs a reduced SPI-mode initialization sequence against
// whatever is attached: CMD0, then CMD41 with the HCS bit set (sent
// without a CMD55 prefix), polled until the card leaves the idle state.
// CMD8 and CMD58 are not sent, so no voltage check or OCR read takes
// place. It then reads and validates the CSD and CID. On success
// s.csd/s.cid/s.mode are populated.
func (s *SD) TryConnect() error {
	// 74+ dummy clock cycles with CS deasserted let the card's internal
	// state machine settle before the first command.
	idle := make([]byte, 10)
	for i := range idle {
		idle[i] = 0xFF
	}
	if err := s.conn.Tx(idle, nil); err != nil {
		return errors.Wrap(err, "sdcard: connect: idle clocks")
	}

	if err := s.goIdle(); err != nil {
		return errors.Wrap(err, "sdcard: connect: CMD0")
	}

	ready := false
	for i := 0; i < maxInitAttempts && !ready; i++ {
		r1, err := s.command(41, 0x40000000)
		if err != nil {
			return errors.Wrap(err, "sdcard: connect: ACMD41")
		}
		if r1 == 0x00 {
			ready = true
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !ready {
		return errors.Wrap(ErrTimeout, "sdcard: connect: card did not leave idle state")
	}

	csdRaw, err := s.readRegister(9)
	if err != nil {
		return errors.Wrap(err, "sdcard: connect: CMD9 (CSD)")
	}
	csd, err := ParseCSD(csdRaw)
	if err != nil {
		return errors.Wrap(err, "sdcard: connect: invalid CSD")
	}

	cidRaw, err := s.readRegister(10)
	if err != nil {
		return errors.Wrap(err, "sdcard: connect: CMD10 (CID)")
	}
	cid, err := ParseCID(cidRaw)
	if err != nil {
		return errors.Wrap(err, "sdcard: connect: invalid CID")
	}

	s.csd, s.cid = csd, cid
	if csd.ByteAddressed() {
		s.mode = ByteAddressing
	} else {
		s.mode = SectorAddressing
	}
	return nil
}

// CSD returns the card's validated CSD register, populated by TryConnect.
func (s *SD) CSD() CSD { return s.csd }

// CID returns the card's validated CID register, populated by TryConnect.
func (s *SD) CID() CID { return s.cid }

// AddressingMode reports whether ReadBlock takes byte offsets or sector
// indices, populated by TryConnect.
func (s *SD) AddressingMode() AddressingMode { return s.mode }

// ReadBlock reads one BlockSize-byte block at the given sector index into
// dst, which must be at least BlockSize bytes.
func (s *SD) ReadBlock(sector uint32, dst []byte) error {
	if len(dst) < BlockSize {
		return errors.Errorf("sdcard: read block: destination must be at least %d bytes, got %d", BlockSize, len(dst))
	}

	arg := sector
	if s.mode == ByteAddressing {
		arg = sector * BlockSize
	}

	r1, err := s.command(17, arg)
	if err != nil {
		return errors.Wrap(err, "sdcard: read block: CMD17")
	}
	if r1 != 0x00 {
		return errors.Errorf("sdcard: read block: card returned R1 0x%02x", r1)
	}

	token, err := s.waitToken()
	if err != nil {
		return errors.Wrap(err, "sdcard: read block: data token")
	}
	if token != 0xFE {
		return errors.Errorf("sdcard: read block: unexpected data token 0x%02x", token)
	}

	rx := make([]byte, BlockSize+2)
	tx := make([]byte, BlockSize+2)
	for i := range tx {
		tx[i] = 0xFF
	}
	if err := s.conn.Tx(tx, rx); err != nil {
		return errors.Wrap(err, "sdcard: read block: data phase")
	}
	copy(dst, rx[:BlockSize])

	gotCRC := uint16(rx[BlockSize])<<8 | uint16(rx[BlockSize+1])
	if crc16(rx[:BlockSize]) != gotCRC {
		return errors.Wrap(ErrCorrupt, "sdcard: read block: crc16 mismatch")
	}
	return nil
}

// goIdle sends CMD0 and requires the card respond "idle" (R1 == 0x01).
func (s *SD) goIdle() error {
	r1, err := s.command(0, 0)
	if err != nil {
		return err
	}
	if r1&0x01 == 0 {
		return errors.Errorf("sdcard: CMD0: unexpected R1 0x%02x", r1)
	}
	return nil
}

// readRegister issues cmdIndex (CMD9 or CMD10) and reads the 16-byte
// register that follows the data token, same framing as a block read.
func (s *SD) readRegister(cmdIndex byte) ([]byte, error) {
	r1, err := s.command(cmdIndex, 0)
	if err != nil {
		return nil, err
	}
	if r1 != 0x00 {
		return nil, errors.Errorf("sdcard: CMD%d: unexpected R1 0x%02x", cmdIndex, r1)
	}
	token, err := s.waitToken()
	if err != nil {
		return nil, err
	}
	if token != 0xFE {
		return nil, errors.Errorf("sdcard: CMD%d: unexpected data token 0x%02x", cmdIndex, token)
	}
	rx := make([]byte, Size+2)
	tx := make([]byte, Size+2)
	for i := range tx {
		tx[i] = 0xFF
	}
	if err := s.conn.Tx(tx, rx); err != nil {
		return nil, err
	}
	return rx[:Size], nil
}

// command sends a 6-byte SD command frame and returns the R1 response
// byte, per SD Physical Layer Simplified Specification §7.2.
func (s *SD) command(index byte, arg uint32) (byte, error) {
	frame := [6]byte{
		0x40 | index,
		byte(arg >> 24), byte(arg >> 16), byte(arg >> 8), byte(arg),
		0x01, // CRC is not checked once in SPI data-transfer mode; only CMD0/CMD8 require a real CRC7
	}
	if index == 0 {
		frame[5] = crc7(frame[:5])<<1 | 0x01
	}
	if err := s.conn.Tx(frame[:], nil); err != nil {
		return 0, err
	}
	return s.waitR1()
}

// waitR1 polls for the R1 response byte (top bit clear), per the SD SPI
// mode command-response protocol.
func (s *SD) waitR1() (byte, error) {
	for i := 0; i < 16; i++ {
		rx := make([]byte, 1)
		if err := s.conn.Tx([]byte{0xFF}, rx); err != nil {
			return 0, err
		}
		if rx[0]&0x80 == 0 {
			return rx[0], nil
		}
	}
	return 0, errors.Wrap(ErrTimeout, "sdcard: no R1 response")
}

// waitToken polls for a non-0xFF byte, the start-of-data token preceding
// a CSD/CID/block read's data phase.
func (s *SD) waitToken() (byte, error) {
	for i := 0; i < 4096; i++ {
		rx := make([]byte, 1)
		if err := s.conn.Tx([]byte{0xFF}, rx); err != nil {
			return 0, err
		}
		if rx[0] != 0xFF {
			return rx[0], nil
		}
	}
	return 0, errors.Wrap(ErrTimeout, "sdcard: no data token")
}
