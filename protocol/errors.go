package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Frame error reasons.
const (
	// ReasonShortBuffer indicates the buffer cannot hold the frame
	ReasonShortBuffer = 0x01

	// ReasonPayloadLength indicates a payload length outside the allowed range
	ReasonPayloadLength = 0x02

	// ReasonUnknownType indicates an unrecognized frame type
	ReasonUnknownType = 0x03

	// ReasonNotNull indicates the buffer is not a NULL frame
	ReasonNotNull = 0x05
)

// FrameError describes a frame that could not be built or decoded.
type FrameError struct {
	// Operation is the codec operation that failed
	Operation string

	// Reason is one of the Reason* codes
	Reason byte

	// Detail carries optional context such as lengths
	Detail string
}

func (e *FrameError) Error() string {
	msg := fmt.Sprintf("%s failed: %s (0x%02X)", e.Operation, getReasonName(e.Reason), e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// IsFrameError returns true if err is or wraps a FrameError.
func IsFrameError(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe)
}

// getReasonName returns a human-readable name for a reason code.
func getReasonName(code byte) string {
	switch code {
	case ReasonShortBuffer:
		return "buffer too short"
	case ReasonPayloadLength:
		return "invalid payload length"
	case ReasonUnknownType:
		return "unknown frame type"
	case ReasonNotNull:
		return "not a null frame"
	default:
		return fmt.Sprintf("unknown reason 0x%02X", code)
	}
}

// NackFlagString renders NACK or STATUS flags as "CRC|DUPLICATE".
func NackFlagString(flags byte) string {
	if flags == 0 {
		return "none"
	}
	var names []string
	for _, f := range []struct {
		bit  byte
		name string
	}{
		{NackCRC, "CRC"},
		{NackOverflow, "OVERFLOW"},
		{NackDuplicate, "DUPLICATE"},
		{NackOther, "OTHER"},
		{NackBackpressure, "BACKPRESSURE"},
	} {
		if flags&f.bit != 0 {
			names = append(names, f.name)
			flags &^= f.bit
		}
	}
	if flags != 0 {
		names = append(names, fmt.Sprintf("0x%02X", flags))
	}
	return strings.Join(names, "|")
}
