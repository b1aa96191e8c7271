package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned when a datagram cannot be decoded as a
// transport envelope. The datagram is dropped; the session continues.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is the transport envelope carried in each UDP datagram. All
// multi-byte fields are little-endian, matching captured traffic.
type Frame struct {
	SessionA uint32
	SessionB uint32
	Command  uint8
	Payload  []byte
}

// Encode serializes the frame. The length field always equals the full
// serialized size; callers must keep payloads within FrameMaxLength.
func (f *Frame) Encode() []byte {
	total := FrameHeaderLength + len(f.Payload)
	buf := make([]byte, total)
	copy(buf[0:4], FrameMagic[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(total))
	binary.LittleEndian.PutUint32(buf[8:12], f.SessionA)
	binary.LittleEndian.PutUint32(buf[12:16], f.SessionB)
	buf[16] = f.Command
	copy(buf[FrameHeaderLength:], f.Payload)
	return buf
}

// DecodeFrame parses a datagram into a Frame. It fails with ErrMalformedFrame
// when the buffer is shorter than the header, the magic is wrong, or the
// declared length disagrees with the bytes actually received.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < FrameHeaderLength {
		return Frame{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedFrame, len(data), FrameHeaderLength)
	}
	if !bytes.Equal(data[0:4], FrameMagic[:]) {
		return Frame{}, fmt.Errorf("%w: bad magic %X", ErrMalformedFrame, data[0:4])
	}
	declared := binary.LittleEndian.Uint32(data[4:8])
	if declared != uint32(len(data)) {
		return Frame{}, fmt.Errorf("%w: declared length %d, received %d", ErrMalformedFrame, declared, len(data))
	}

	f := Frame{
		SessionA: binary.LittleEndian.Uint32(data[8:12]),
		SessionB: binary.LittleEndian.Uint32(data[12:16]),
		Command:  data[16],
	}
	if len(data) > FrameHeaderLength {
		f.Payload = make([]byte, len(data)-FrameHeaderLength)
		copy(f.Payload, data[FrameHeaderLength:])
	}
	return f, nil
}

func (f *Frame) String() string {
	return fmt.Sprintf("cmd=0x%02X session=%08X/%08X payload=%d bytes",
		f.Command, f.SessionA, f.SessionB, len(f.Payload))
}
