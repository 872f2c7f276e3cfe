package sim

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Level is one recorded state of the interrupt line.
type Level struct {
	High bool
	At   time.Time
}

// Line is a simulated active-low interrupt line. It starts high.
type Line struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	high    bool
	history []Level
	err     error
}

// NewLine returns a released line. A nil clock uses the real clock.
func NewLine(clock clockwork.Clock) *Line {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Line{clock: clock, high: true}
}

func (l *Line) Set(high bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return l.err
	}
	if l.high != high {
		l.history = append(l.history, Level{High: high, At: l.clock.Now()})
	}
	l.high = high
	return nil
}

func (l *Line) High() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.high
}

// Asserted reports whether the peripheral is requesting a transfer.
func (l *Line) Asserted() bool {
	return !l.High()
}

// History returns the level changes seen so far.
func (l *Line) History() []Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Level(nil), l.history...)
}

// Fail makes every following Set return err. A nil err restores the line.
func (l *Line) Fail(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}
