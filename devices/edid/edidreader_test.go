package edid

import (
	"syscall"
	"testing"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3"
)

// fakeConn is a minimal conn.Conn fake, in the style of conn/conntest's
// Record: it returns a scripted read payload and records the write half
// of the transaction for assertions.
type fakeConn struct {
	read    []byte
	err     error
	written []byte
}

func (f *fakeConn) Tx(w, r []byte) error {
	f.written = append([]byte(nil), w...)
	if f.err != nil {
		return f.err
	}
	copy(r, f.read)
	return nil
}

func (f *fakeConn) Duplex() conn.Duplex { return conn.DuplexUnknown }

func TestReader_Read_SendsOffsetZeroAndParses(t *testing.T) {
	b := sampleBlock(t)
	c := &fakeConn{read: b[:]}
	r := NewReader(c)

	got, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(c.written) != 1 || c.written[0] != 0x00 {
		t.Fatalf("expected a single offset-0 write, got %v", c.written)
	}
	if m := got.Manufacturer(); m != "ACI" {
		t.Fatalf("Manufacturer() = %q, want ACI", m)
	}
}

func TestReader_Read_PropagatesTxError(t *testing.T) {
	c := &fakeConn{err: errors.New("bus timeout")}
	r := NewReader(c)

	if _, err := r.Read(); err == nil {
		t.Fatal("expected an error from Read, got nil")
	}
}

func TestReader_Read_PropagatesParseError(t *testing.T) {
	c := &fakeConn{read: make([]byte, Size)} // all zero, invalid header
	r := NewReader(c)

	if _, err := r.Read(); err == nil {
		t.Fatal("expected a parse error from Read, got nil")
	}
}

func TestReader_Read_ClassifiesI2CErrors(t *testing.T) {
	cases := []struct {
		name string
		errno syscall.Errno
		want  error
	}{
		{"not acknowledged", syscall.ENXIO, ErrNotAcknowledged},
		{"timeout", syscall.ETIMEDOUT, ErrTimeout},
		{"arbitration lost", syscall.EAGAIN, ErrArbitrationLost},
		{"bus error", syscall.EIO, ErrBus},
		{"remote io", syscall.EREMOTEIO, ErrBus},
		{"unrecognised errno falls back to bus", syscall.EINVAL, ErrBus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &fakeConn{err: errors.Wrap(tc.errno, "i2c")}
			r := NewReader(c)

			_, err := r.Read()
			if !errors.Is(err, tc.want) {
				t.Fatalf("Read() error = %v, want errors.Is(_, %v)", err, tc.want)
			}
		})
	}
}

func TestReader_Read_UnclassifiableErrorFallsBackToErrBus(t *testing.T) {
	c := &fakeConn{err: errors.New("bus timeout")}
	r := NewReader(c)

	if _, err := r.Read(); !errors.Is(err, ErrBus) {
		t.Fatalf("Read() error = %v, want errors.Is(_, ErrBus)", err)
	}
}
