package periph

import (
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by Transfer after Close.
var ErrClosed = errors.New("periph: bus closed")

type txer interface {
	Tx(w, r []byte) error
}

// Bus implements link.Bus on an SPI port in slave mode. Each Transfer runs
// one blocking Tx on its own goroutine, which returns once the master has
// clocked the bytes.
//
// A cancelled Tx cannot be aborted on the port; it still occupies the next
// master transfer but its result is discarded.
type Bus struct {
	conn txer
	port io.Closer
	log  *zap.Logger

	// tx serialises access to the port
	tx sync.Mutex

	mu     sync.Mutex
	gen    uint64
	closed bool
}

func newBus(conn txer, port io.Closer, log *zap.Logger) *Bus {
	return &Bus{conn: conn, port: port, log: log}
}

func (b *Bus) Transfer(tx, rx []byte, done func(n int, err error)) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	w := append([]byte(nil), tx...)
	r := make([]byte, len(rx))

	go func() {
		b.tx.Lock()
		err := b.conn.Tx(w, r)
		b.tx.Unlock()

		n := len(w)
		if err != nil {
			n = 0
		}

		b.mu.Lock()
		live := !b.closed && gen == b.gen
		if live && err == nil {
			copy(rx, r)
		}
		b.mu.Unlock()

		if !live {
			b.log.Debug("discarding cancelled transfer", zap.Uint64("gen", gen))
			return
		}
		done(n, err)
	}()
	return nil
}

func (b *Bus) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
}

// Close discards the armed transfer and closes the port. It is safe to call
// more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.gen++
	b.mu.Unlock()

	if b.port == nil {
		return nil
	}
	return b.port.Close()
}
