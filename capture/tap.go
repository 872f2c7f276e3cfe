package capture

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/moffa90/go-spilink/link"
	"github.com/moffa90/go-spilink/protocol"
)

// Tap wraps a link.Bus and records both directions of every completed
// transfer. The transmit bytes are copied when the transfer is armed, the
// receive bytes when it completes.
type Tap struct {
	bus   link.Bus
	clock clockwork.Clock

	mu      sync.Mutex
	start   time.Time
	capture Capture
}

var _ link.Bus = (*Tap)(nil)

// NewTap starts a capture of bus. A nil clock uses the real clock.
func NewTap(bus link.Bus, clock clockwork.Clock) *Tap {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tap{
		bus:   bus,
		clock: clock,
		start: clock.Now(),
		capture: Capture{
			Version: FormatVersion,
			Records: make([]*Record, 0, DefaultRecordCapacity),
		},
	}
}

func (t *Tap) Transfer(tx, rx []byte, done func(n int, err error)) error {
	sent := append([]byte(nil), tx...)

	t.mu.Lock()
	if t.capture.PacketSize == 0 {
		t.capture.PacketSize = len(tx)
	}
	t.mu.Unlock()

	return t.bus.Transfer(tx, rx, func(n int, err error) {
		if err == nil {
			t.record(sent, rx, n)
		}
		done(n, err)
	})
}

func (t *Tap) record(tx, rx []byte, n int) {
	if n > len(tx) {
		n = len(tx)
	}
	if n > len(rx) {
		n = len(rx)
	}
	if n > MaxRecordData {
		n = MaxRecordData
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	offset := t.clock.Since(t.start).Truncate(time.Millisecond)
	mosi := &Record{Dir: MOSI, Offset: offset, Data: append([]byte(nil), rx[:n]...)}
	miso := &Record{Dir: MISO, Offset: offset, Data: append([]byte(nil), tx[:n]...)}
	t.capture.Records = append(t.capture.Records, mosi, miso)
}

func (t *Tap) Cancel() {
	t.bus.Cancel()
}

func (t *Tap) Close() error {
	return t.bus.Close()
}

// Capture returns a copy of what has been recorded so far.
func (t *Tap) Capture() *Capture {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.capture
	c.Records = append([]*Record(nil), t.capture.Records...)
	if c.PacketSize == 0 {
		c.PacketSize = protocol.TransferSize
	}
	return &c
}

// Reset discards the recorded transfers and restarts the offsets at zero.
func (t *Tap) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.start = t.clock.Now()
	t.capture.Records = t.capture.Records[:0]
}
