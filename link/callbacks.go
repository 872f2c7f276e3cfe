package link

// Callbacks connects the transport to the upper layer.
// Both callbacks are required and are called from Process without the
// transport lock held, so they may call Send.
type Callbacks struct {
	// TxDone is called once per message after its last fragment is acknowledged
	TxDone func()

	// RxDone delivers a reassembled message. The slice is only valid during the call.
	// Returning ErrOutOfMemory keeps the message and retries on the next Process.
	RxDone func(frame []byte) error
}

// Bus is the SPI peripheral in slave mode.
//
// Transfer arms one full-duplex transfer of len(tx) bytes. The master decides when
// it happens; done is called once it completes with the number of bytes clocked,
// possibly from another goroutine. Transfer must not call done synchronously.
// The transport may rewrite tx after Transfer returns, so implementations
// copy it before returning.
type Bus interface {
	Transfer(tx, rx []byte, done func(n int, err error)) error

	// Cancel aborts the armed transfer; its done callback must not be called afterwards
	Cancel()

	Close() error
}

// Line is the interrupt-to-host output. It is active low.
type Line interface {
	// Set drives the line high (released) or low (asserted)
	Set(high bool) error

	// High reports the current line level
	High() bool
}

// LogSource supplies text for the log side channel.
//
// Example:
//
//	type ringLogs struct{ /* ... */ }
//	func (r *ringLogs) ReadLog(p []byte) (int, byte, bool) { /* copy pending text */ }
type LogSource interface {
	// ReadLog copies pending log text into p and returns the count, a rolling
	// index and whether anything was available
	ReadLog(p []byte) (n int, index byte, ok bool)
}
