package protocol

import "fmt"

// Parse decodes the frame at the start of buf.
//
// Parse only validates that the declared lengths fit in buf; it does not check
// the CRC. Callers that enforce integrity call VerifyCRC on buf[:f.Length].
//
// Example:
//
//	f, err := protocol.Parse(rx)
//	if err != nil {
//	    return err
//	}
//	if f.Type == protocol.FrameData && !protocol.VerifyCRC(rx[:f.Length]) {
//	    // reject
//	}
func Parse(buf []byte) (Frame, error) {
	if len(buf) == 0 {
		return Frame{}, shortBuffer("parse", 0, 1)
	}

	hdr := buf[0]
	f := Frame{
		Type:           FrameType(hdr >> TypeShift),
		Seq:            (hdr >> SeqShift) & SeqMask,
		Last:           hdr&FlagLast != 0,
		StatusResponse: hdr&FlagStatusResponse != 0,
	}

	switch f.Type {
	case FrameData:
		if len(buf) < Overhead {
			return f, shortBuffer("parse data", len(buf), Overhead)
		}
		n := int(buf[2])
		f.Length = n + Overhead
		if f.Length > len(buf) {
			return f, &FrameError{
				Operation: "parse data",
				Reason:    ReasonPayloadLength,
				Detail:    fmt.Sprintf("payload length %d exceeds %d byte transfer", n, len(buf)),
			}
		}
		f.Payload = buf[DataHeaderSize : DataHeaderSize+n]

	case FrameAck:
		if len(buf) < AckFrameLength {
			return f, shortBuffer("parse ack", len(buf), AckFrameLength)
		}
		f.Length = AckFrameLength

	case FrameNack, FrameStatus:
		if len(buf) < NackFrameLength {
			return f, shortBuffer("parse "+f.Type.String(), len(buf), NackFrameLength)
		}
		f.Flags = buf[2]
		f.Length = NackFrameLength

	case FrameLog:
		if len(buf) < LogHeaderSize {
			return f, shortBuffer("parse log", len(buf), LogHeaderSize)
		}
		n := int(buf[1])
		if LogHeaderSize+n > len(buf) {
			n = len(buf) - LogHeaderSize
		}
		f.Flags = buf[2]
		f.Payload = buf[LogHeaderSize : LogHeaderSize+n]
		f.Length = LogHeaderSize + n

	case FrameNull:
		f.Seq, f.Last, f.StatusResponse = 0, false, false
		f.Length = NullFrameLength

	default:
		return f, &FrameError{
			Operation: "parse",
			Reason:    ReasonUnknownType,
			Detail:    fmt.Sprintf("header 0x%02X", hdr),
		}
	}

	return f, nil
}

// ParseNull decodes the diagnostic fields of a NULL frame.
func ParseNull(buf []byte) (NullInfo, error) {
	if len(buf) < NullFrameLength {
		return NullInfo{}, shortBuffer("parse null", len(buf), NullFrameLength)
	}
	if buf[0] != DefaultChar {
		return NullInfo{}, &FrameError{
			Operation: "parse null",
			Reason:    ReasonNotNull,
			Detail:    fmt.Sprintf("header 0x%02X", buf[0]),
		}
	}

	return NullInfo{
		TestMode: buf[1]&ModeTest != 0,
		Version:  buf[1] &^ ModeTest,
		RxSeq:    buf[2] >> 4,
		TxSeq:    buf[2] & 0x0F,
		Firmware: FirmwareVersion{
			Major: buf[3],
			Minor: buf[4],
			Patch: buf[5],
			Build: buf[6],
		},
	}, nil
}
