package edid

import (
	"syscall"

	"github.com/pkg/errors"
)

// Error taxonomy for Reader.Read's I²C transaction, classified from the
// underlying periph.io/x/conn/v3/i2c driver's syscall.Errno causes.
var (
	// ErrNotAcknowledged is returned when the monitor does not ACK its own
	// DDC2B address.
	ErrNotAcknowledged = errors.New("edid: not acknowledged")
	// ErrArbitrationLost is returned when another bus master won arbitration
	// mid-transaction.
	ErrArbitrationLost = errors.New("edid: arbitration lost")
	// ErrTimeout is returned when the monitor stretches the clock past the
	// controller's timeout.
	ErrTimeout = errors.New("edid: timeout")
	// ErrBus is returned for any other bus-level I/O failure.
	ErrBus = errors.New("edid: bus error")
)

// classifyI2CError maps err's underlying syscall.Errno, if any, to the
// sentinel describing the two-wire failure mode, wrapping it with msg for
// context. Errors without a recognisable errno classify as ErrBus.
func classifyI2CError(err error, msg string) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENXIO:
			return errors.Wrap(ErrNotAcknowledged, msg)
		case syscall.ETIMEDOUT:
			return errors.Wrap(ErrTimeout, msg)
		case syscall.EAGAIN:
			return errors.Wrap(ErrArbitrationLost, msg)
		case syscall.EIO, syscall.EREMOTEIO:
			return errors.Wrap(ErrBus, msg)
		}
	}
	return errors.Wrap(ErrBus, msg)
}
