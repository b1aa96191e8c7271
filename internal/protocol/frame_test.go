package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{
			name:  "empty payload",
			frame: Frame{SessionA: 0xC2B6D119, SessionB: 0x5F8F361A, Command: CmdIdle},
		},
		{
			name:  "zero session fields",
			frame: Frame{Command: CmdLogin, Payload: []byte("n4ldr\x00icom9700\x00")},
		},
		{
			name: "civ payload",
			frame: Frame{
				SessionA: 1,
				SessionB: 2,
				Command:  CmdCIV,
				Payload:  []byte{0xFE, 0xFE, 0xA2, 0xE0, 0x25, 0xFD},
			},
		},
		{
			name: "max values",
			frame: Frame{
				SessionA: 0xFFFFFFFF,
				SessionB: 0xFFFFFFFF,
				Command:  0xFF,
				Payload:  bytes.Repeat([]byte{0xAA}, 512),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.frame.Encode()

			if got := binary.LittleEndian.Uint32(encoded[4:8]); got != uint32(len(encoded)) {
				t.Errorf("length field = %d, want %d", got, len(encoded))
			}

			decoded, err := DecodeFrame(encoded)
			if err != nil {
				t.Fatalf("DecodeFrame failed: %v", err)
			}
			if decoded.SessionA != tt.frame.SessionA || decoded.SessionB != tt.frame.SessionB {
				t.Errorf("session fields = %08X/%08X, want %08X/%08X",
					decoded.SessionA, decoded.SessionB, tt.frame.SessionA, tt.frame.SessionB)
			}
			if decoded.Command != tt.frame.Command {
				t.Errorf("command = 0x%02X, want 0x%02X", decoded.Command, tt.frame.Command)
			}
			if !bytes.Equal(decoded.Payload, tt.frame.Payload) {
				t.Errorf("payload mismatch: got % X, want % X", decoded.Payload, tt.frame.Payload)
			}
		})
	}
}

func TestDecodeFrameRejectsMalformed(t *testing.T) {
	valid := (&Frame{SessionA: 1, SessionB: 2, Command: CmdIdle, Payload: []byte{1, 2, 3}}).Encode()

	short := make([]byte, FrameHeaderLength-1)
	copy(short, valid)

	badMagic := append([]byte(nil), valid...)
	badMagic[0] = 'X'

	truncated := append([]byte(nil), valid[:len(valid)-1]...)

	padded := append(append([]byte(nil), valid...), 0x00)

	lyingLength := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(lyingLength[4:8], uint32(len(lyingLength)+5))

	tests := []struct {
		name string
		data []byte
	}{
		{"shorter than header", short},
		{"magic mismatch", badMagic},
		{"truncated payload", truncated},
		{"trailing garbage", padded},
		{"declared length too large", lyingLength},
		{"empty buffer", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(tt.data)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("DecodeFrame(% X) error = %v, want ErrMalformedFrame", tt.data, err)
			}
		})
	}
}

func TestDecodeFrameFuzzedLengthField(t *testing.T) {
	// Any buffer whose length field disagrees with its actual size must be
	// rejected, regardless of the rest of the contents.
	base := (&Frame{SessionA: 7, SessionB: 9, Command: CmdAuth, Payload: []byte{0xDE, 0xAD}}).Encode()
	for declared := 0; declared < len(base)*2; declared++ {
		if declared == len(base) {
			continue
		}
		buf := append([]byte(nil), base...)
		binary.LittleEndian.PutUint32(buf[4:8], uint32(declared))
		if _, err := DecodeFrame(buf); !errors.Is(err, ErrMalformedFrame) {
			t.Fatalf("declared=%d actual=%d: error = %v, want ErrMalformedFrame", declared, len(buf), err)
		}
	}
}

func TestDecodeFrameCopiesPayload(t *testing.T) {
	encoded := (&Frame{Command: CmdCIV, Payload: []byte{1, 2, 3}}).Encode()
	decoded, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	encoded[FrameHeaderLength] = 0xFF
	if decoded.Payload[0] != 1 {
		t.Error("decoded payload aliases the input buffer")
	}
}
