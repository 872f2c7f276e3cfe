package capture

import (
	"bytes"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/moffa90/go-spilink/sim"
)

func TestTap(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bus := sim.NewBus(nil)
	tap := NewTap(bus, clock)

	var got []int
	done := func(n int, err error) {
		if err != nil {
			t.Errorf("done() err = %v", err)
		}
		got = append(got, n)
	}

	tx := []byte{0x51, 0x00, 0x00, 0xA5, 0x62, 0xC0}
	rx := make([]byte, len(tx))
	if err := tap.Transfer(tx, rx, done); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	// the transport may reuse its buffer once the transfer is armed
	tx[0] = 0xFF

	clock.Advance(25 * time.Millisecond)
	mosi := []byte{0xC0, 0xC0, 0xC0, 0xC0, 0xC0, 0xC0}
	if _, err := bus.Clock(mosi); err != nil {
		t.Fatalf("Clock() error = %v", err)
	}
	if len(got) != 1 || got[0] != len(tx) {
		t.Fatalf("done calls = %v, want [%d]", got, len(tx))
	}

	c := tap.Capture()
	if c.PacketSize != len(tx) {
		t.Errorf("PacketSize = %d, want %d", c.PacketSize, len(tx))
	}
	pairs := c.Transfers()
	if len(pairs) != 1 {
		t.Fatalf("Transfers() = %d, want 1", len(pairs))
	}
	if !bytes.Equal(pairs[0][0].Data, mosi) {
		t.Errorf("MOSI = % X, want % X", pairs[0][0].Data, mosi)
	}
	if pairs[0][1].Data[0] != 0x51 {
		t.Errorf("MISO = % X, want armed bytes", pairs[0][1].Data)
	}
	if pairs[0][0].Offset != 25*time.Millisecond {
		t.Errorf("Offset = %v, want 25ms", pairs[0][0].Offset)
	}

	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	back, err := ParseReader(&buf)
	if err != nil {
		t.Fatalf("ParseReader() error = %v", err)
	}
	if len(back.Records) != 2 {
		t.Errorf("parsed %d records, want 2", len(back.Records))
	}
}

func TestTapSkipsFailedTransfers(t *testing.T) {
	bus := sim.NewBus(nil)
	tap := NewTap(bus, clockwork.NewFakeClock())

	if err := tap.Transfer(make([]byte, 8), make([]byte, 8), func(int, error) {}); err != nil {
		t.Fatal(err)
	}
	if err := bus.Fail(sim.ErrClosed); err != nil {
		t.Fatal(err)
	}
	if n := len(tap.Capture().Records); n != 0 {
		t.Errorf("recorded %d records after a failed transfer, want 0", n)
	}

	tap.Cancel()
	if err := tap.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := tap.Transfer(make([]byte, 8), make([]byte, 8), func(int, error) {}); err == nil {
		t.Error("Transfer() after Close error = nil")
	}
}

func TestTapReset(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bus := sim.NewBus(nil)
	tap := NewTap(bus, clock)

	for i := 0; i < 3; i++ {
		if err := tap.Transfer(make([]byte, 4), make([]byte, 4), func(int, error) {}); err != nil {
			t.Fatal(err)
		}
		if _, err := bus.Clock(make([]byte, 4)); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(tap.Capture().Records); n != 6 {
		t.Fatalf("recorded %d records, want 6", n)
	}

	clock.Advance(time.Second)
	tap.Reset()
	if n := len(tap.Capture().Records); n != 0 {
		t.Errorf("after Reset: %d records, want 0", n)
	}
}
