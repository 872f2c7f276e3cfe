package protocol

import "fmt"

// FrameType is the high nibble of a frame header.
type FrameType byte

// Frame types on the wire.
const (
	// FrameData carries one fragment of a message
	FrameData FrameType = 0x2

	// FrameAck acknowledges a DATA fragment (or a STATUS frame)
	FrameAck FrameType = 0x3

	// FrameNack rejects a DATA fragment with a reason in the flags byte
	FrameNack FrameType = 0x4

	// FrameStatus advertises receiver state, e.g. backpressure released
	FrameStatus FrameType = 0x5

	// FrameLog carries peripheral log text on the side channel
	FrameLog FrameType = 0x6

	// FrameNull is the default reply; its header byte is DefaultChar
	FrameNull FrameType = DefaultChar >> TypeShift
)

func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameAck:
		return "ACK"
	case FrameNack:
		return "NACK"
	case FrameStatus:
		return "STATUS"
	case FrameLog:
		return "LOG"
	case FrameNull:
		return "NULL"
	default:
		return fmt.Sprintf("UNKNOWN(0x%X)", byte(t))
	}
}

// FirmwareVersion is reported to the host in every NULL frame.
type FirmwareVersion struct {
	Major byte
	Minor byte
	Patch byte
	Build byte
}

func (v FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
}

// NullInfo holds the diagnostic fields of a NULL frame.
type NullInfo struct {
	// TestMode is set while the peripheral runs in test mode
	TestMode bool

	// Version is the serial interface version
	Version byte

	// RxSeq is the last sequence number the sender of the frame received
	RxSeq uint8

	// TxSeq is the last sequence number the sender of the frame had acknowledged
	TxSeq uint8

	// Firmware is the application firmware version
	Firmware FirmwareVersion
}

// Frame is a decoded frame header. Payload aliases the parsed buffer.
type Frame struct {
	Type FrameType

	// Seq is the 2-bit sequence number (DATA, ACK, NACK)
	Seq uint8

	// Last marks the final fragment of a message (DATA)
	Last bool

	// StatusResponse marks ACK/NACK frames answering STATUS, and is always set on STATUS
	StatusResponse bool

	// Flags holds NACK reasons or STATUS flags
	Flags byte

	// Payload is the DATA payload or LOG text
	Payload []byte

	// Length is the number of frame bytes including the CRC, 0 when unknown
	Length int
}

// Sequence returns the next sequence number after seq.
func Sequence(seq uint8) uint8 {
	return (seq + 1) % SeqModulo
}
