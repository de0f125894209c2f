// Package console implements the serial user-command link: 9600 baud,
// 8 data bits, no parity, one stop bit, with receive delivered one byte
// at a time and transmit blocking until written.
package console

import (
	"io"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// BaudRate is the fixed console link speed.
const BaudRate = 9600

// Command is a single-byte user command read from the console.
type Command byte

// The single-byte user-command set.
const (
	CommandNone      Command = 0
	CommandSuspend   Command = 's'
	CommandResume    Command = 'r'
	CommandDumpEDID  Command = 'e'
	CommandDumpCSD   Command = 'c'
	CommandReconnect Command = 'x'
)

// Console is a serial console opened for 9600 8N1 communication.
type Console struct {
	port io.ReadWriteCloser

	// Commands delivers one byte at a time from the RX goroutine, the
	// same single-byte-at-a-time cadence a UART RX interrupt would.
	Commands chan Command
	errs     chan error
	done     chan struct{}
}

// Open opens devicePath at BaudRate 8N1 and starts the RX goroutine.
func Open(devicePath string) (*Console, error) {
	cfg := &serial.Config{
		Name:     devicePath,
		Baud:     BaudRate,
		Size:     8,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "console: open %s", devicePath)
	}
	return newConsole(port), nil
}

func newConsole(port io.ReadWriteCloser) *Console {
	c := &Console{
		port:     port,
		Commands: make(chan Command),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}
	go c.receiveLoop()
	return c
}

// Errors reports RX errors; a send on this channel means the receive
// loop aborted and will reissue its read before the next byte.
func (c *Console) Errors() <-chan error { return c.errs }

func (c *Console) receiveLoop() {
	buf := make([]byte, 1)
	for {
		select {
		case <-c.done:
			return
		default:
		}
		n, err := c.port.Read(buf)
		if err != nil {
			select {
			case c.errs <- errors.Wrap(err, "console: receive"):
			default:
			}
			continue
		}
		if n == 0 {
			continue
		}
		select {
		case c.Commands <- Command(buf[0]):
		case <-c.done:
			return
		}
	}
}

// Write transmits b and blocks until the write completes, matching the
// transmit-and-wait contract.
func (c *Console) Write(b []byte) (int, error) {
	n, err := c.port.Write(b)
	if err != nil {
		return n, errors.Wrap(err, "console: transmit")
	}
	return n, nil
}

// Close stops the RX goroutine and closes the underlying port.
func (c *Console) Close() error {
	close(c.done)
	return c.port.Close()
}
