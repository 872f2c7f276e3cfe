package link

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap/zaptest"

	"github.com/moffa90/go-spilink/protocol"
	"github.com/moffa90/go-spilink/sim"
)

// harness drives a Transport from the master side of a simulated bus.
type harness struct {
	t     *testing.T
	clock clockwork.FakeClock
	bus   *sim.Bus
	line  *sim.Line
	tr    *Transport

	mu     sync.Mutex
	txDone int
	rx     [][]byte
	rxErr  error
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		clock: clockwork.NewFakeClock(),
	}
	h.bus = sim.NewBus(nil)
	h.line = sim.NewLine(h.clock)

	opts = append([]Option{
		WithClock(h.clock),
		WithLogger(zaptest.NewLogger(t)),
		WithPulseWidth(0),
	}, opts...)

	tr, err := New(h.bus, h.line, Callbacks{
		TxDone: h.onTxDone,
		RxDone: h.onRxDone,
	}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.tr = tr
	t.Cleanup(func() { tr.Close() })
	return h
}

func (h *harness) onTxDone() {
	h.mu.Lock()
	h.txDone++
	h.mu.Unlock()
}

func (h *harness) onRxDone(msg []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rxErr != nil {
		return h.rxErr
	}
	h.rx = append(h.rx, append([]byte(nil), msg...))
	return nil
}

func (h *harness) setRxErr(err error) {
	h.mu.Lock()
	h.rxErr = err
	h.mu.Unlock()
}

func (h *harness) sent() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.txDone
}

func (h *harness) received() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]byte(nil), h.rx...)
}

func (h *harness) process() {
	h.t.Helper()
	if err := h.tr.Process(); err != nil {
		h.t.Fatalf("Process() error = %v", err)
	}
}

// pump runs one Process / transfer / Process cycle and returns the frame the
// peripheral sent.
func (h *harness) pump(mosi []byte) protocol.Frame {
	h.t.Helper()

	h.process()
	miso, err := h.bus.Clock(mosi)
	if err != nil {
		h.t.Fatalf("Clock() error = %v", err)
	}
	h.process()

	f, err := protocol.Parse(miso)
	if err != nil {
		h.t.Fatalf("Parse(% X) error = %v", miso, err)
	}
	return f
}

// next sends mosi, then idles until the peripheral sends something other than NULL.
func (h *harness) next(mosi []byte) protocol.Frame {
	h.t.Helper()

	for i := 0; i < 8; i++ {
		f := h.pump(mosi)
		if f.Type != protocol.FrameNull {
			return f
		}
		mosi = idle()
	}
	h.t.Fatalf("no frame from peripheral after 8 transfers")
	return protocol.Frame{}
}

// expect is next with a type check.
func (h *harness) expect(mosi []byte, want protocol.FrameType) protocol.Frame {
	h.t.Helper()

	f := h.next(mosi)
	if f.Type != want {
		h.t.Fatalf("frame type = %v, want %v", f.Type, want)
	}
	return f
}

// started consumes the STATUS frame sent after New.
func (h *harness) started() {
	h.t.Helper()
	h.expect(idle(), protocol.FrameStatus)
}

func idle() []byte {
	return bytes.Repeat([]byte{protocol.DefaultChar}, protocol.TransferSize)
}

func dataFrame(t *testing.T, seq uint8, last bool, payload []byte) []byte {
	t.Helper()
	buf := idle()
	if _, err := protocol.BuildData(buf, seq, last, payload); err != nil {
		t.Fatalf("BuildData() error = %v", err)
	}
	return buf
}

func ackFrame(t *testing.T, seq uint8) []byte {
	t.Helper()
	buf := idle()
	if _, err := protocol.BuildAck(buf, seq, false); err != nil {
		t.Fatalf("BuildAck() error = %v", err)
	}
	return buf
}

func nackFrame(t *testing.T, seq uint8, flags byte) []byte {
	t.Helper()
	buf := idle()
	if _, err := protocol.BuildNack(buf, seq, flags, false); err != nil {
		t.Fatalf("BuildNack() error = %v", err)
	}
	return buf
}

func message(n int) []byte {
	msg := make([]byte, n)
	for i := range msg {
		msg[i] = byte(i)
	}
	return msg
}

// waitFor polls cond; timer callbacks of the fake clock run on their own goroutine.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
