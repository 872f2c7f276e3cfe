package host

import (
	"errors"
	"fmt"
)

// ErrBusy is returned by Send while a message is still outbound.
var ErrBusy = errors.New("host: message already outbound")

// MessageSizeError indicates a message that is empty or larger than the MTU.
type MessageSizeError struct {
	Size int
	Max  int
}

func (e *MessageSizeError) Error() string {
	return fmt.Sprintf("message size %d is out of range: valid range is 1-%d", e.Size, e.Max)
}
