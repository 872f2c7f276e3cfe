package protocol

import "fmt"

// header builds a frame header byte.
func header(t FrameType, seq uint8, flags byte) byte {
	return byte(t)<<TypeShift | (seq&SeqMask)<<SeqShift | flags&(FlagLast|FlagStatusResponse)
}

// pad fills buf with DefaultChar.
func pad(buf []byte) {
	for i := range buf {
		buf[i] = DefaultChar
	}
}

// BuildNull fills buf with a NULL (default reply) frame.
//
// Frame format (no CRC, remaining bytes are DefaultChar):
//
//	[0xC0][MODE|VERSION][RX_SEQ<<4|TX_SEQ][MAJOR][MINOR][PATCH][BUILD]
func BuildNull(buf []byte, info NullInfo) error {
	if len(buf) < NullFrameLength {
		return &FrameError{
			Operation: "build null",
			Reason:    ReasonShortBuffer,
			Detail:    fmt.Sprintf("got %d bytes, need %d", len(buf), NullFrameLength),
		}
	}

	pad(buf)
	mode := byte(ModeNormal)
	if info.TestMode {
		mode = ModeTest
	}
	version := info.Version
	if version == 0 {
		version = Version
	}
	buf[1] = mode | version&^ModeTest
	buf[2] = (info.RxSeq&0x0F)<<4 | info.TxSeq&0x0F
	buf[3] = info.Firmware.Major
	buf[4] = info.Firmware.Minor
	buf[5] = info.Firmware.Patch
	buf[6] = info.Firmware.Build
	return nil
}

// BuildData fills buf with a DATA frame carrying payload and returns the frame length.
//
// Frame format:
//
//	[0x2<<4|SEQ<<2|LAST<<1][RESERVED][LEN][PAYLOAD...][CRC_H][CRC_L]
func BuildData(buf []byte, seq uint8, last bool, payload []byte) (int, error) {
	if len(payload) > 0xFF || len(payload)+Overhead > len(buf) {
		return 0, &FrameError{
			Operation: "build data",
			Reason:    ReasonPayloadLength,
			Detail:    fmt.Sprintf("payload %d bytes does not fit a %d byte transfer", len(payload), len(buf)),
		}
	}

	pad(buf)
	var flags byte
	if last {
		flags = FlagLast
	}
	buf[0] = header(FrameData, seq, flags)
	buf[1] = 0
	buf[2] = byte(len(payload))
	copy(buf[DataHeaderSize:], payload)
	return putCRC(buf, DataHeaderSize+len(payload)), nil
}

// BuildAck fills buf with an ACK frame and returns its length.
func BuildAck(buf []byte, seq uint8, statusResp bool) (int, error) {
	if len(buf) < AckFrameLength {
		return 0, shortBuffer("build ack", len(buf), AckFrameLength)
	}

	pad(buf)
	buf[0] = header(FrameAck, seq, statusFlag(statusResp))
	buf[1] = 0
	return putCRC(buf, 2), nil
}

// BuildNack fills buf with a NACK frame carrying the given reason flags.
func BuildNack(buf []byte, seq uint8, flags byte, statusResp bool) (int, error) {
	if len(buf) < NackFrameLength {
		return 0, shortBuffer("build nack", len(buf), NackFrameLength)
	}

	pad(buf)
	buf[0] = header(FrameNack, seq, statusFlag(statusResp))
	buf[1] = 0
	buf[2] = flags
	return putCRC(buf, 3), nil
}

// BuildStatus fills buf with a STATUS frame. The status-response bit is always set.
func BuildStatus(buf []byte, flags byte) (int, error) {
	if len(buf) < StatusFrameLength {
		return 0, shortBuffer("build status", len(buf), StatusFrameLength)
	}

	pad(buf)
	buf[0] = header(FrameStatus, 0, FlagStatusResponse)
	buf[1] = 0
	buf[2] = flags
	return putCRC(buf, 3), nil
}

// BuildLog fills buf with a LOG frame carrying as much of text as fits and
// returns the number of text bytes written. Unused bytes are zero.
//
// Frame format (no CRC):
//
//	[0x6<<4][LEN][INDEX][TEXT...]
func BuildLog(buf []byte, index byte, text []byte) (int, error) {
	if len(buf) <= LogHeaderSize {
		return 0, shortBuffer("build log", len(buf), LogHeaderSize+1)
	}

	for i := range buf {
		buf[i] = 0
	}
	n := copy(buf[LogHeaderSize:], text)
	if n > 0xFF {
		n = 0xFF
	}
	buf[0] = header(FrameLog, 0, 0)
	buf[1] = byte(n)
	buf[2] = index
	return n, nil
}

func statusFlag(statusResp bool) byte {
	if statusResp {
		return FlagStatusResponse
	}
	return 0
}

func shortBuffer(op string, got, need int) error {
	return &FrameError{
		Operation: op,
		Reason:    ReasonShortBuffer,
		Detail:    fmt.Sprintf("got %d bytes, need %d", got, need),
	}
}
