package link

import (
	"errors"
	"fmt"
)

var (
	// ErrNullPointer is returned by New when a collaborator or callback is missing.
	ErrNullPointer = errors.New("link: missing bus, line or callback")

	// ErrBusy is returned by Send while a message is still outbound.
	ErrBusy = errors.New("link: message already outbound")

	// ErrOutOfMemory is returned by an RxDone callback that cannot accept a message yet.
	ErrOutOfMemory = errors.New("link: receiver out of memory")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("link: transport closed")
)

// MessageSizeError indicates a message that is empty or larger than the MTU.
type MessageSizeError struct {
	Size int
	Max  int
}

func (e *MessageSizeError) Error() string {
	return fmt.Sprintf("message size %d is out of range: valid range is 1-%d", e.Size, e.Max)
}

// TransferError records a failed SPI transfer reported by the bus.
type TransferError struct {
	// Count is the number of bytes the bus reported
	Count int

	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("spi transfer failed after %d bytes: %v", e.Count, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
