package protocol

import (
	"errors"
	"fmt"
)

// ErrMalformedCommand is returned when a frame payload cannot be decoded as a
// CI-V record. The enclosing frame is still valid, non-command control frames
// are legal.
var ErrMalformedCommand = errors.New("malformed CI-V command")

// Command is the delimited CI-V record carried inside a CmdCIV frame payload:
// FE FE to from op data... FD.
type Command struct {
	To   uint8
	From uint8
	Op   uint8
	Data []byte
}

// Encode serializes the record with preamble and end delimiter.
func (c *Command) Encode() []byte {
	buf := make([]byte, 0, CIVMinLength+len(c.Data))
	buf = append(buf, CIVPreamble, CIVPreamble, c.To, c.From, c.Op)
	buf = append(buf, c.Data...)
	buf = append(buf, CIVEnd)
	return buf
}

// DecodeCommand parses a CI-V record. Delimiters must be present and the
// addresses must belong to the session's bus (radio, controller or broadcast).
func DecodeCommand(data []byte) (Command, error) {
	if len(data) < CIVMinLength {
		return Command{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedCommand, len(data), CIVMinLength)
	}
	if data[0] != CIVPreamble || data[1] != CIVPreamble {
		return Command{}, fmt.Errorf("%w: missing preamble", ErrMalformedCommand)
	}
	if data[len(data)-1] != CIVEnd {
		return Command{}, fmt.Errorf("%w: missing end delimiter", ErrMalformedCommand)
	}

	c := Command{To: data[2], From: data[3], Op: data[4]}
	if !validCIVAddr(c.To) || !validCIVAddr(c.From) {
		return Command{}, fmt.Errorf("%w: unexpected addresses %02X->%02X", ErrMalformedCommand, c.From, c.To)
	}
	if body := data[5 : len(data)-1]; len(body) > 0 {
		c.Data = make([]byte, len(body))
		copy(c.Data, body)
	}
	return c, nil
}

func validCIVAddr(a uint8) bool {
	return a == RadioAddr || a == ControllerAddr || a == BroadcastAddr
}

// IsACK reports whether the record is the radio's single-byte OK reply.
func (c *Command) IsACK() bool {
	return c.Op == CIVResultOK || (len(c.Data) == 1 && c.Data[0] == CIVResultOK)
}

func (c *Command) String() string {
	return fmt.Sprintf("CI-V %02X->%02X op=0x%02X data=% X", c.From, c.To, c.Op, c.Data)
}

// BCDToUint converts the radio's little-endian BCD frequency encoding to Hz.
func BCDToUint(bcd []byte) uint64 {
	var result uint64
	for i := len(bcd) - 1; i >= 0; i-- {
		result = result*100 + uint64(bcd[i]>>4)*10 + uint64(bcd[i]&0x0F)
	}
	return result
}

// UintToBCD converts a frequency in Hz to the radio's BCD encoding.
func UintToBCD(value uint64, length int) []byte {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		low := value % 10
		value /= 10
		high := value % 10
		value /= 10
		result[i] = byte(high<<4 | low)
	}
	return result
}
