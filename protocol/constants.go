package protocol

// Version is the serial interface version reported in NULL frames.
const Version = 0x01

// Transfer geometry.
const (
	// TransferSize is the default number of bytes clocked per SPI transfer (128)
	TransferSize = 128

	// DataHeaderSize is the DATA frame header: type/seq/flags, reserved, payload length
	DataHeaderSize = 3

	// CRCSize is the size of the trailing CRC-16
	CRCSize = 2

	// Overhead is the per-fragment overhead: header + CRC
	Overhead = DataHeaderSize + CRCSize

	// MaxPayload is the largest DATA payload at the default transfer size (123)
	MaxPayload = TransferSize - Overhead

	// MaxMessageSize is the largest message the link reassembles (SRL_HOST_MAX_FRAME_SZ)
	MaxMessageSize = 1024

	// MinPacketSize is the smallest transfer still able to carry a one-byte fragment
	MinPacketSize = Overhead + 1
)

// Fixed frame lengths, CRC included.
const (
	// AckFrameLength is header + reserved + CRC
	AckFrameLength = 4

	// NackFrameLength is header + reserved + flags + CRC
	NackFrameLength = 5

	// StatusFrameLength is header + reserved + flags + CRC
	StatusFrameLength = 5

	// NullFrameLength is the number of meaningful bytes in a NULL frame
	NullFrameLength = 7

	// LogHeaderSize is header + length + index
	LogHeaderSize = 3
)

// DefaultChar pads every frame and is the first byte of a NULL frame.
const DefaultChar = 0xC0

// Header byte layout.
const (
	// TypeShift positions the frame type in the high nibble
	TypeShift = 4

	// SeqShift positions the 2-bit sequence number
	SeqShift = 2

	// SeqMask masks a sequence number after shifting
	SeqMask = 0x03

	// SeqModulo is the size of the sequence space
	SeqModulo = SeqMask + 1

	// FlagLast marks the final fragment of a message in a DATA header
	FlagLast = 1 << 1

	// FlagStatusResponse marks ACK/NACK frames answering a STATUS frame
	FlagStatusResponse = 1 << 0
)

// NACK and STATUS flag bits.
const (
	// NackCRC reports a CRC mismatch
	NackCRC = 1 << 7

	// NackOverflow reports a receive buffer or reassembly overflow
	NackOverflow = 1 << 6

	// NackDuplicate reports an already received sequence number
	NackDuplicate = 1 << 5

	// NackOther reports any other rejection, e.g. an invalid payload length
	NackOther = 1 << 4

	// NackBackpressure is set in STATUS flags while the receiver holds an undelivered message
	NackBackpressure = 1 << 0
)

// NULL frame mode bits, OR'ed with Version in byte 1.
const (
	// ModeNormal is reported during normal operation
	ModeNormal = 0x00

	// ModeTest is reported while the peripheral runs in test mode
	ModeTest = 0x80
)
