package edid

import (
	"periph.io/x/conn/v3"
)

// Address is the fixed DDC2B I²C address every EDID-capable monitor
// answers on.
const Address = 0x50

// Reader reads a 128-byte EDID block over an I²C connection already
// addressed to Address, e.g. an i2c.Dev{Bus: bus, Addr: edid.Address}.
type Reader struct {
	conn conn.Conn
}

// NewReader wraps conn, which must already be bound to Address.
func NewReader(conn conn.Conn) *Reader {
	return &Reader{conn: conn}
}

// Read performs a write-then-repeated-start read of the 128-byte EDID
// block starting at offset 0, then parses and validates it.
func (r *Reader) Read() (Edid, error) {
	raw := make([]byte, Size)
	if err := r.conn.Tx([]byte{0x00}, raw); err != nil {
		return Edid{}, classifyI2CError(err, "edid: i2c read")
	}
	return Parse(raw)
}
