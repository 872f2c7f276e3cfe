package link

import (
	"math/rand"
	"sync"
)

// Injector corrupts or drops frames to exercise the recovery paths.
type Injector interface {
	// CorruptTx may modify a frame after it is staged for the host
	CorruptTx(frame []byte)

	// CorruptRx may modify a received frame before it is interpreted
	CorruptRx(frame []byte)

	// DropRx reports whether the received frame should be ignored entirely
	DropRx() bool
}

// corruptOffset is the byte overwritten in a corrupted frame. It lies in the
// payload of DATA frames and past the end of ACK frames.
const corruptOffset = 4

// RandomInjector corrupts and drops frames at fixed percentages.
type RandomInjector struct {
	mu      sync.Mutex
	rng     *rand.Rand
	errPct  int
	dropPct int
}

// NewRandomInjector returns an injector that corrupts errPercent and drops
// dropPercent of the frames. The seed makes runs reproducible.
//
// Example:
//
//	tr, err := link.New(bus, line, cb, link.WithInjector(link.NewRandomInjector(5, 1, 42)))
func NewRandomInjector(errPercent, dropPercent int, seed int64) *RandomInjector {
	return &RandomInjector{
		rng:     rand.New(rand.NewSource(seed)),
		errPct:  errPercent,
		dropPct: dropPercent,
	}
}

func (r *RandomInjector) CorruptTx(frame []byte) { r.corrupt(frame) }

func (r *RandomInjector) CorruptRx(frame []byte) { r.corrupt(frame) }

func (r *RandomInjector) DropRx() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(100) < r.dropPct
}

func (r *RandomInjector) corrupt(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng.Intn(100) < r.errPct && len(frame) > corruptOffset {
		frame[corruptOffset] = byte(r.rng.Intn(256))
	}
}

func (t *Transport) injectTx(frame []byte) {
	if t.cfg.Injector != nil {
		t.cfg.Injector.CorruptTx(frame)
	}
}
