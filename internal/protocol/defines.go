package protocol

import "strings"

// IC-9700 network protocol constants, reconstructed from packet captures of
// the radio's LAN control sessions.

// FrameMagic marks the start of every transport envelope.
var FrameMagic = [4]byte{'I', 'C', '9', '7'}

const (
	// Envelope layout: magic(4) + length(4) + session A(4) + session B(4) + command(1)
	FrameHeaderLength = 17
	FrameMaxLength    = 1400 // stays under a single ethernet MTU datagram

	// Default UDP ports used by the radio's LAN interface
	DefaultControlPort = 50001
	DefaultAudioPort   = 50002
	DefaultSerialPort  = 50003
)

// Envelope command codes observed on the control session.
const (
	CmdLogin       = 0x01 // credentials, sent once at startup
	CmdAuth        = 0x02 // carries a candidate session pair
	CmdConnect     = 0x03 // per-channel connect with the fixed pair
	CmdReady       = 0x04 // final negotiation
	CmdIdle        = 0x05 // keep-alive
	CmdAreYouThere = 0x06 // liveness probe from the radio
	CmdIAmHere     = 0x07 // probe acknowledgment
	CmdCIV         = 0xC1 // payload is a delimited CI-V record
	CmdDisconnect  = 0xEE
	CmdReject      = 0xFF
)

// CI-V record delimiters and bus addresses.
const (
	CIVPreamble  = 0xFE // doubled at the start of every record
	CIVEnd       = 0xFD
	CIVMinLength = 6 // FE FE to from op FD

	RadioAddr      = 0xA2 // IC-9700 default CI-V address
	ControllerAddr = 0xE0
	BroadcastAddr  = 0x00

	CIVResultOK = 0xFB
	CIVResultNG = 0xFA
)

// CI-V operation codes used by the controller.
const (
	OpSetFrequency  = 0x00
	OpSetMode       = 0x01
	OpReadFrequency = 0x25
	OpReadMode      = 0x26
	OpPTT           = 0x1C
)

// PortRole identifies one of the three UDP channels.
type PortRole int

const (
	RoleControl PortRole = iota
	RoleSerial
	RoleAudio

	RoleCount = 3
)

func (r PortRole) String() string {
	switch r {
	case RoleControl:
		return "control"
	case RoleSerial:
		return "serial"
	case RoleAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// OperatingMode is an IC-9700 mode code.
type OperatingMode uint8

const (
	ModeLSB   OperatingMode = 0x00
	ModeUSB   OperatingMode = 0x01
	ModeAM    OperatingMode = 0x02
	ModeCW    OperatingMode = 0x03
	ModeRTTY  OperatingMode = 0x04
	ModeFM    OperatingMode = 0x05
	ModeWFM   OperatingMode = 0x06
	ModeCWR   OperatingMode = 0x07
	ModeRTTYR OperatingMode = 0x08
	ModeDV    OperatingMode = 0x17
)

var modeNames = map[OperatingMode]string{
	ModeLSB:   "LSB",
	ModeUSB:   "USB",
	ModeAM:    "AM",
	ModeCW:    "CW",
	ModeRTTY:  "RTTY",
	ModeFM:    "FM",
	ModeWFM:   "WFM",
	ModeCWR:   "CW-R",
	ModeRTTYR: "RTTY-R",
	ModeDV:    "DV",
}

func (m OperatingMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// ValidMode reports whether the byte is a mode code the IC-9700 announces.
func ValidMode(b uint8) bool {
	_, ok := modeNames[OperatingMode(b)]
	return ok
}

// ParseMode resolves a mode name like "USB" or "dv" to its code.
func ParseMode(name string) (OperatingMode, bool) {
	for mode, n := range modeNames {
		if strings.EqualFold(n, name) {
			return mode, true
		}
	}
	return 0, false
}
