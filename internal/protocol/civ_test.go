package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestCommandRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{
			name: "read frequency",
			cmd:  Command{To: RadioAddr, From: ControllerAddr, Op: OpReadFrequency},
		},
		{
			name: "set frequency with bcd data",
			cmd:  Command{To: RadioAddr, From: ControllerAddr, Op: OpSetFrequency, Data: UintToBCD(145500000, 5)},
		},
		{
			name: "broadcast notification",
			cmd:  Command{To: BroadcastAddr, From: RadioAddr, Op: OpReadMode, Data: []byte{0x01, 0x02}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.cmd.Encode()
			if encoded[0] != CIVPreamble || encoded[1] != CIVPreamble {
				t.Errorf("missing preamble: % X", encoded[:2])
			}
			if encoded[len(encoded)-1] != CIVEnd {
				t.Errorf("missing end delimiter: %02X", encoded[len(encoded)-1])
			}

			decoded, err := DecodeCommand(encoded)
			if err != nil {
				t.Fatalf("DecodeCommand failed: %v", err)
			}
			if decoded.To != tt.cmd.To || decoded.From != tt.cmd.From || decoded.Op != tt.cmd.Op {
				t.Errorf("header = %02X/%02X/0x%02X, want %02X/%02X/0x%02X",
					decoded.To, decoded.From, decoded.Op, tt.cmd.To, tt.cmd.From, tt.cmd.Op)
			}
			if !bytes.Equal(decoded.Data, tt.cmd.Data) {
				t.Errorf("data = % X, want % X", decoded.Data, tt.cmd.Data)
			}
		})
	}
}

func TestDecodeCommandRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{0xFE, 0xFE, 0xA2, 0xE0, 0xFD}},
		{"missing preamble", []byte{0xFE, 0x00, 0xA2, 0xE0, 0x25, 0xFD}},
		{"missing end delimiter", []byte{0xFE, 0xFE, 0xA2, 0xE0, 0x25, 0x00}},
		{"unknown destination", []byte{0xFE, 0xFE, 0x42, 0xE0, 0x25, 0xFD}},
		{"unknown source", []byte{0xFE, 0xFE, 0xA2, 0x42, 0x25, 0xFD}},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCommand(tt.data)
			if !errors.Is(err, ErrMalformedCommand) {
				t.Errorf("DecodeCommand(% X) error = %v, want ErrMalformedCommand", tt.data, err)
			}
		})
	}
}

func TestBCDConversion(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
	}{
		{"2m calling", 145500000},
		{"70cm", 432100000},
		{"23cm", 1296200000},
		{"zero", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bcd := UintToBCD(tt.value, 5)
			if len(bcd) != 5 {
				t.Fatalf("UintToBCD length = %d, want 5", len(bcd))
			}
			if got := BCDToUint(bcd); got != tt.value {
				t.Errorf("round trip = %d, want %d", got, tt.value)
			}
		})
	}
}

func TestBCDKnownEncoding(t *testing.T) {
	// 145.500 MHz encodes as 00 00 50 45 01 in the radio's byte order.
	want := []byte{0x00, 0x00, 0x50, 0x45, 0x01}
	got := UintToBCD(145500000, 5)
	if !bytes.Equal(got, want) {
		t.Errorf("UintToBCD(145500000) = % X, want % X", got, want)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name string
		want OperatingMode
	}{
		{"USB", ModeUSB},
		{"usb", ModeUSB},
		{"cw-r", ModeCWR},
		{"DV", ModeDV},
	}
	for _, tt := range tests {
		got, ok := ParseMode(tt.name)
		if !ok || got != tt.want {
			t.Errorf("ParseMode(%q) = %v/%v, want %v", tt.name, got, ok, tt.want)
		}
	}
	if _, ok := ParseMode("SSTV"); ok {
		t.Error("ParseMode accepted an unknown mode name")
	}
}

func TestIsACK(t *testing.T) {
	ack := Command{To: ControllerAddr, From: RadioAddr, Op: CIVResultOK}
	if !ack.IsACK() {
		t.Error("op=0xFB not recognized as ACK")
	}
	echoed := Command{To: ControllerAddr, From: RadioAddr, Op: OpSetFrequency, Data: []byte{CIVResultOK}}
	if !echoed.IsACK() {
		t.Error("data=[0xFB] not recognized as ACK")
	}
	nak := Command{To: ControllerAddr, From: RadioAddr, Op: CIVResultNG}
	if nak.IsACK() {
		t.Error("NG reply misread as ACK")
	}
}
