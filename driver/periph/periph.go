// Package periph runs the link on real hardware through periph.io.
//
// OpenSlave gives the peripheral side a link.Bus over an SPI port whose
// controller runs in slave mode, plus the interrupt output line.
// OpenMaster gives the host side a host.Clocker and a watcher for that line.
//
// Example:
//
//	s, err := periph.OpenSlave(periph.Config{Port: "/dev/spidev1.0", Pin: "GPIO25"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tr, err := link.New(s.Bus, s.Line, cb)
package periph

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// DefaultSpeed is the SPI clock used when Config.Speed is zero
	DefaultSpeed = 8 * physic.MegaHertz

	// DefaultPoll bounds each wait for an interrupt edge
	DefaultPoll = 100 * time.Millisecond
)

// Config selects the SPI port and interrupt pin.
type Config struct {
	// Port is the spireg name of the SPI port; empty opens the first one
	Port string

	Speed physic.Frequency
	Mode  spi.Mode

	// Pin is the gpioreg name of the interrupt line, required
	Pin string

	// Poll bounds each WaitForEdge call of the interrupt watcher
	Poll time.Duration

	Logger *zap.Logger
}

func (c *Config) defaults() {
	if c.Speed == 0 {
		c.Speed = DefaultSpeed
	}
	if c.Poll <= 0 {
		c.Poll = DefaultPoll
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Slave is the peripheral end on hardware.
type Slave struct {
	Bus  *Bus
	Line *Line
}

// Close releases the line and closes the port.
func (s *Slave) Close() error {
	return multierr.Combine(s.Line.Set(true), s.Bus.Close())
}

// Master is the host end on hardware. It implements host.Clocker.
type Master struct {
	conn  txer
	port  spi.PortCloser
	irq   *IRQ
	log   *zap.Logger
	count uint64
}

// Clock performs one full-duplex transfer.
func (m *Master) Clock(mosi []byte) ([]byte, error) {
	miso := make([]byte, len(mosi))
	if err := m.conn.Tx(mosi, miso); err != nil {
		return nil, fmt.Errorf("periph: tx: %w", err)
	}
	m.count++
	return miso, nil
}

// IRQ returns the interrupt watcher.
func (m *Master) IRQ() *IRQ {
	return m.irq
}

func (m *Master) Close() error {
	if m.port == nil {
		return nil
	}
	if err := m.port.Close(); err != nil {
		return fmt.Errorf("periph: close port: %w", err)
	}
	m.log.Debug("port closed", zap.Uint64("transfers", m.count))
	return nil
}

// OpenSlave initialises periph.io and opens the port and the interrupt output.
func OpenSlave(cfg Config) (*Slave, error) {
	cfg.defaults()

	port, conn, err := open(cfg)
	if err != nil {
		return nil, err
	}

	pin := gpioreg.ByName(cfg.Pin)
	if pin == nil {
		return nil, multierr.Append(fmt.Errorf("periph: no pin %q", cfg.Pin), port.Close())
	}
	line, err := newLine(pin)
	if err != nil {
		return nil, multierr.Append(err, port.Close())
	}

	cfg.Logger.Info("spi slave opened",
		zap.String("port", cfg.Port),
		zap.Stringer("speed", cfg.Speed),
		zap.String("pin", cfg.Pin),
	)
	return &Slave{
		Bus:  newBus(conn, port, cfg.Logger),
		Line: line,
	}, nil
}

// OpenMaster initialises periph.io and opens the port and the interrupt input.
func OpenMaster(cfg Config) (*Master, error) {
	cfg.defaults()

	port, conn, err := open(cfg)
	if err != nil {
		return nil, err
	}

	pin := gpioreg.ByName(cfg.Pin)
	if pin == nil {
		return nil, multierr.Append(fmt.Errorf("periph: no pin %q", cfg.Pin), port.Close())
	}
	irq, err := newIRQ(pin, cfg.Poll)
	if err != nil {
		return nil, multierr.Append(err, port.Close())
	}

	cfg.Logger.Info("spi master opened",
		zap.String("port", cfg.Port),
		zap.Stringer("speed", cfg.Speed),
		zap.String("pin", cfg.Pin),
	)
	return &Master{conn: conn, port: port, irq: irq, log: cfg.Logger}, nil
}

func open(cfg Config) (spi.PortCloser, spi.Conn, error) {
	if cfg.Pin == "" {
		return nil, nil, errors.New("periph: interrupt pin not configured")
	}
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periph: init host: %w", err)
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, nil, fmt.Errorf("periph: open port %q: %w", cfg.Port, err)
	}

	conn, err := port.Connect(cfg.Speed, cfg.Mode, 8)
	if err != nil {
		return nil, nil, multierr.Append(fmt.Errorf("periph: connect: %w", err), port.Close())
	}
	return port, conn, nil
}

// Level names for log output.
func levelString(l gpio.Level) string {
	if l == gpio.Low {
		return "low"
	}
	return "high"
}
