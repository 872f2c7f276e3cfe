package periph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

type outPin interface {
	Out(l gpio.Level) error
	Name() string
}

type inPin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
	WaitForEdge(timeout time.Duration) bool
	Name() string
}

// Line implements link.Line on a GPIO output. Low means asserted.
type Line struct {
	pin outPin

	mu   sync.Mutex
	high bool
}

func newLine(pin outPin) (*Line, error) {
	l := &Line{pin: pin}
	if err := l.Set(true); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Line) Set(high bool) error {
	level := gpio.Low
	if high {
		level = gpio.High
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.pin.Out(level); err != nil {
		return fmt.Errorf("periph: drive %s %s: %w", l.pin.Name(), levelString(level), err)
	}
	l.high = high
	return nil
}

func (l *Line) High() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.high
}

// IRQ watches the interrupt line from the host side.
type IRQ struct {
	pin  inPin
	poll time.Duration
}

func newIRQ(pin inPin, poll time.Duration) (*IRQ, error) {
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("periph: configure %s: %w", pin.Name(), err)
	}
	return &IRQ{pin: pin, poll: poll}, nil
}

// Asserted reports whether the peripheral is pulling the line low.
func (i *IRQ) Asserted() bool {
	return i.pin.Read() == gpio.Low
}

// WaitAsserted blocks until the line is low or ctx is done.
func (i *IRQ) WaitAsserted(ctx context.Context) error {
	for {
		if i.Asserted() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		i.pin.WaitForEdge(i.poll)
	}
}
