package periph

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"periph.io/x/conn/v3/gpio"
)

// fakeConn completes each Tx when the test sends the master bytes.
type fakeConn struct {
	clock chan []byte
	err   error

	mu   sync.Mutex
	sent [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{clock: make(chan []byte)}
}

func (c *fakeConn) Tx(w, r []byte) error {
	mosi := <-c.clock
	c.mu.Lock()
	c.sent = append(c.sent, append([]byte(nil), w...))
	c.mu.Unlock()
	copy(r, mosi)
	return c.err
}

func (c *fakeConn) lastSent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

type closer struct{ closed int }

func (c *closer) Close() error {
	c.closed++
	return nil
}

type fakePin struct {
	mu     sync.Mutex
	level  gpio.Level
	outErr error
	pull   gpio.Pull
	edge   gpio.Edge
	waits  int
}

func (p *fakePin) Name() string { return "GPIO25" }

func (p *fakePin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outErr != nil {
		return p.outErr
	}
	p.level = l
	return nil
}

func (p *fakePin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.pull, p.edge = pull, edge
	return nil
}

func (p *fakePin) Read() gpio.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *fakePin) WaitForEdge(timeout time.Duration) bool {
	p.mu.Lock()
	p.waits++
	p.mu.Unlock()
	time.Sleep(time.Millisecond)
	return false
}

func (p *fakePin) set(l gpio.Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = l
}

type result struct {
	n   int
	err error
}

func TestBusTransfer(t *testing.T) {
	conn := newFakeConn()
	port := &closer{}
	bus := newBus(conn, port, zaptest.NewLogger(t))

	tx := []byte{0x51, 0x00, 0x00, 0xA5, 0x62}
	rx := make([]byte, len(tx))
	done := make(chan result, 1)
	if err := bus.Transfer(tx, rx, func(n int, err error) { done <- result{n, err} }); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	tx[0] = 0xFF

	mosi := []byte{0xC0, 0xC0, 0xC0, 0xC0, 0xC0}
	conn.clock <- mosi

	select {
	case r := <-done:
		if r.err != nil || r.n != len(tx) {
			t.Errorf("done(%d, %v), want (%d, nil)", r.n, r.err, len(tx))
		}
	case <-time.After(time.Second):
		t.Fatal("done not called")
	}
	if !bytes.Equal(rx, mosi) {
		t.Errorf("rx = % X, want % X", rx, mosi)
	}
	if got := conn.lastSent(); got[0] != 0x51 {
		t.Errorf("sent % X, want the bytes armed at Transfer", got)
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if port.closed != 1 {
		t.Errorf("port closed %d times, want 1", port.closed)
	}
	if err := bus.Transfer(tx, rx, func(int, error) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Transfer() after Close error = %v, want ErrClosed", err)
	}
}

func TestBusCancel(t *testing.T) {
	conn := newFakeConn()
	bus := newBus(conn, nil, zaptest.NewLogger(t))

	rx := make([]byte, 4)
	called := make(chan struct{}, 1)
	if err := bus.Transfer(make([]byte, 4), rx, func(int, error) { called <- struct{}{} }); err != nil {
		t.Fatal(err)
	}
	bus.Cancel()

	conn.clock <- []byte{1, 2, 3, 4}
	select {
	case <-called:
		t.Fatal("done called for a cancelled transfer")
	case <-time.After(50 * time.Millisecond):
	}
	if !bytes.Equal(rx, make([]byte, 4)) {
		t.Errorf("rx = % X, cancelled transfer must not write it", rx)
	}
}

func TestBusTransferError(t *testing.T) {
	conn := newFakeConn()
	conn.err = errors.New("bus fault")
	bus := newBus(conn, nil, zaptest.NewLogger(t))

	done := make(chan result, 1)
	if err := bus.Transfer(make([]byte, 4), make([]byte, 4), func(n int, err error) { done <- result{n, err} }); err != nil {
		t.Fatal(err)
	}
	conn.clock <- make([]byte, 4)

	r := <-done
	if r.err == nil || r.n != 0 {
		t.Errorf("done(%d, %v), want (0, error)", r.n, r.err)
	}
}

func TestLine(t *testing.T) {
	pin := &fakePin{}
	line, err := newLine(pin)
	if err != nil {
		t.Fatalf("newLine() error = %v", err)
	}
	if !line.High() || pin.Read() != gpio.High {
		t.Fatal("line must start released")
	}

	if err := line.Set(false); err != nil {
		t.Fatal(err)
	}
	if line.High() || pin.Read() != gpio.Low {
		t.Error("Set(false) did not drive the pin low")
	}

	pin.outErr = errors.New("pin gone")
	if err := line.Set(true); err == nil {
		t.Error("Set() error = nil, want pin error")
	}
	if line.High() {
		t.Error("failed Set changed the recorded level")
	}
}

func TestIRQ(t *testing.T) {
	pin := &fakePin{level: gpio.High}
	irq, err := newIRQ(pin, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if pin.pull != gpio.PullUp || pin.edge != gpio.FallingEdge {
		t.Errorf("pin configured with (%v, %v), want (PullUp, FallingEdge)", pin.pull, pin.edge)
	}
	if irq.Asserted() {
		t.Error("Asserted() = true on a high line")
	}

	t.Run("timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := irq.WaitAsserted(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("WaitAsserted() = %v, want DeadlineExceeded", err)
		}
	})

	t.Run("asserted", func(t *testing.T) {
		go func() {
			time.Sleep(5 * time.Millisecond)
			pin.set(gpio.Low)
		}()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := irq.WaitAsserted(ctx); err != nil {
			t.Errorf("WaitAsserted() = %v", err)
		}
	})
}

func TestMasterClock(t *testing.T) {
	conn := newFakeConn()
	m := &Master{conn: conn, log: zaptest.NewLogger(t)}

	go func() { conn.clock <- []byte{0x34, 0x00, 0xD4, 0x5E} }()
	miso, err := m.Clock([]byte{0xC0, 0xC0, 0xC0, 0xC0})
	if err != nil {
		t.Fatalf("Clock() error = %v", err)
	}
	if !bytes.Equal(miso, []byte{0x34, 0x00, 0xD4, 0x5E}) {
		t.Errorf("Clock() = % X", miso)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestOpenRequiresPin(t *testing.T) {
	if _, err := OpenSlave(Config{}); err == nil {
		t.Error("OpenSlave() without a pin succeeded")
	}
	if _, err := OpenMaster(Config{}); err == nil {
		t.Error("OpenMaster() without a pin succeeded")
	}
}
