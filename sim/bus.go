// Package sim provides in-memory stand-ins for the SPI slave peripheral and
// the interrupt line, driven by a test or a host acting as SPI master.
package sim

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/moffa90/go-spilink/protocol"
)

var (
	// ErrNotArmed is returned by Clock when no transfer is armed.
	ErrNotArmed = errors.New("sim: no transfer armed")

	// ErrArmed is returned by Transfer when a transfer is already armed.
	ErrArmed = errors.New("sim: transfer already armed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("sim: bus closed")
)

// Bus is a simulated SPI slave. The peripheral arms transfers with Transfer
// and the master completes them with Clock.
//
// The transmit bytes are copied when the transfer is armed, like a DMA
// descriptor that was filled beforehand.
type Bus struct {
	mu sync.Mutex

	log *zap.Logger

	armed bool
	tx    []byte
	rx    []byte
	done  func(n int, err error)

	closed    bool
	transfers int
	cancels   int
}

// NewBus returns an idle bus. A nil logger disables tracing.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{log: logger}
}

// Transfer arms one transfer.
func (b *Bus) Transfer(tx, rx []byte, done func(n int, err error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.armed {
		return ErrArmed
	}

	b.armed = true
	b.tx = append(b.tx[:0], tx...)
	b.rx = rx
	b.done = done
	return nil
}

// Cancel disarms the pending transfer without completing it.
func (b *Bus) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.armed {
		b.cancels++
	}
	b.disarm()
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.disarm()
	return nil
}

func (b *Bus) disarm() {
	b.armed = false
	b.rx = nil
	b.done = nil
}

// Armed reports whether a transfer is waiting for the master.
func (b *Bus) Armed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.armed
}

// Clock performs the armed transfer as master: mosi is shifted in and the
// armed transmit bytes are returned. A mosi shorter than the armed transfer
// produces a short transfer. The completion callback runs before Clock returns.
func (b *Bus) Clock(mosi []byte) ([]byte, error) {
	b.mu.Lock()
	if !b.armed {
		b.mu.Unlock()
		return nil, ErrNotArmed
	}

	n := len(b.tx)
	if len(mosi) < n {
		n = len(mosi)
	}
	miso := make([]byte, n)
	copy(miso, b.tx[:n])
	copy(b.rx, mosi[:n])

	done := b.done
	b.transfers++
	b.disarm()
	b.mu.Unlock()

	b.trace(miso, mosi[:n])
	done(n, nil)
	return miso, nil
}

// Fail completes the armed transfer with err.
func (b *Bus) Fail(err error) error {
	b.mu.Lock()
	if !b.armed {
		b.mu.Unlock()
		return ErrNotArmed
	}
	done := b.done
	b.disarm()
	b.mu.Unlock()

	done(0, err)
	return nil
}

// Transfers returns the number of completed transfers.
func (b *Bus) Transfers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transfers
}

// Cancels returns how many armed transfers were cancelled.
func (b *Bus) Cancels() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cancels
}

func (b *Bus) trace(miso, mosi []byte) {
	if ce := b.log.Check(zap.DebugLevel, "transfer"); ce != nil {
		ce.Write(
			zap.Int("len", len(miso)),
			zap.Stringer("miso", frameKind(miso)),
			zap.Stringer("mosi", frameKind(mosi)),
		)
	}
}

func frameKind(buf []byte) protocol.FrameType {
	if len(buf) == 0 {
		return protocol.FrameNull
	}
	return protocol.FrameType(buf[0] >> protocol.TypeShift)
}
