package link

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/moffa90/go-spilink/protocol"
)

// Config holds the transport configuration.
type Config struct {
	// Logger is used for protocol tracing (optional, defaults to a no-op logger)
	Logger *zap.Logger

	// Clock provides time and timers (optional, defaults to the real clock)
	Clock clockwork.Clock

	// PacketSize is the number of bytes clocked per transfer.
	// Default is 128; the first short transfer from the master trims it.
	PacketSize int

	// RetransmitPeriod is the DATA retransmission timeout
	RetransmitPeriod time.Duration

	// QueueResetTimeout is how long a message may stay outbound before the
	// whole link state is reset
	QueueResetTimeout time.Duration

	// BackToBackDelay is the minimum spacing between a completed transfer (or the
	// previous assert) and the next interrupt assert
	BackToBackDelay time.Duration

	// PulseThreshold is how long the interrupt line may stay asserted before it is pulsed
	PulseThreshold time.Duration

	// PulseWidth is how long the line is released when pulsed
	PulseWidth time.Duration

	// CRCCheck rejects frames with a bad CRC
	CRCCheck bool

	// SeqCheck rejects duplicate and out-of-window sequence numbers
	SeqCheck bool

	// WaitForAcks keeps fragments outstanding until acknowledged.
	// When false a fragment counts as delivered once its transfer completes.
	WaitForAcks bool

	// WindowSize is the number of unacknowledged fragments allowed in flight (1-3)
	WindowSize int

	// TestMode is reported to the host in NULL frames
	TestMode bool

	// Firmware is reported to the host in NULL frames
	Firmware protocol.FirmwareVersion

	// LogSource feeds the log side channel (optional)
	LogSource LogSource

	// Injector corrupts or drops frames for fault testing (optional)
	Injector Injector
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Logger:            zap.NewNop(),
		Clock:             clockwork.NewRealClock(),
		PacketSize:        protocol.TransferSize,
		RetransmitPeriod:  time.Second,
		QueueResetTimeout: 3 * time.Second,
		BackToBackDelay:   8 * time.Millisecond,
		PulseThreshold:    20 * time.Millisecond,
		PulseWidth:        100 * time.Microsecond,
		CRCCheck:          true,
		SeqCheck:          true,
		WaitForAcks:       true,
		WindowSize:        1,
		Firmware:          protocol.FirmwareVersion{Major: 99},
	}
}

// Option is a functional option for configuring the Transport.
type Option func(*Config)

// WithLogger sets the logger for link events.
//
// Example:
//
//	logger, _ := zap.NewDevelopment()
//	tr, err := link.New(bus, line, cb, link.WithLogger(logger))
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithClock sets the clock used for timestamps and timers.
// Tests pass a clockwork.FakeClock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// WithPacketSize sets the transfer size in bytes.
//
// Example:
//
//	tr, err := link.New(bus, line, cb, link.WithPacketSize(64))
func WithPacketSize(size int) Option {
	return func(c *Config) {
		if size >= protocol.MinPacketSize && size <= protocol.TransferSize {
			c.PacketSize = size
		}
	}
}

// WithRetransmitPeriod sets the DATA retransmission timeout. Default is 1s.
func WithRetransmitPeriod(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.RetransmitPeriod = d
		}
	}
}

// WithQueueResetTimeout sets the outbound watchdog timeout. Default is 3s.
func WithQueueResetTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.QueueResetTimeout = d
		}
	}
}

// WithBackToBackDelay sets the minimum delay between interrupt asserts. Default is 8ms.
//
// Example:
//
//	tr, err := link.New(bus, line, cb, link.WithBackToBackDelay(3*time.Millisecond))
func WithBackToBackDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.BackToBackDelay = d
		}
	}
}

// WithPulseThreshold sets how long the interrupt line may stay asserted
// before it is pulsed. Default is 20ms.
func WithPulseThreshold(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PulseThreshold = d
		}
	}
}

// WithPulseWidth sets how long the line is released when pulsed. Default is 100µs.
func WithPulseWidth(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.PulseWidth = d
		}
	}
}

// WithCRCCheck enables or disables CRC validation of received frames.
// Default is true.
func WithCRCCheck(enabled bool) Option {
	return func(c *Config) {
		c.CRCCheck = enabled
	}
}

// WithSeqCheck enables or disables sequence number validation.
// Default is true.
func WithSeqCheck(enabled bool) Option {
	return func(c *Config) {
		c.SeqCheck = enabled
	}
}

// WithWaitForAcks enables or disables waiting for ACKs. Default is true.
func WithWaitForAcks(enabled bool) Option {
	return func(c *Config) {
		c.WaitForAcks = enabled
	}
}

// WithWindowSize sets how many fragments may be unacknowledged at once.
// Values outside 1-3 are ignored; the 2-bit sequence space allows at most 3.
func WithWindowSize(n int) Option {
	return func(c *Config) {
		if n >= 1 && n < protocol.SeqModulo {
			c.WindowSize = n
		}
	}
}

// WithTestMode reports test mode to the host.
func WithTestMode(enabled bool) Option {
	return func(c *Config) {
		c.TestMode = enabled
	}
}

// WithFirmwareVersion sets the version reported in NULL frames.
//
// Example:
//
//	tr, err := link.New(bus, line, cb,
//	    link.WithFirmwareVersion(protocol.FirmwareVersion{Major: 1, Minor: 2}),
//	)
func WithFirmwareVersion(v protocol.FirmwareVersion) Option {
	return func(c *Config) {
		c.Firmware = v
	}
}

// WithLogSource enables the log side channel.
//
// Example:
//
//	logs := link.NewLogBuffer(4096)
//	logger := zap.New(zapcore.NewCore(enc, logs, zap.InfoLevel))
//	tr, err := link.New(bus, line, cb, link.WithLogSource(logs))
func WithLogSource(src LogSource) Option {
	return func(c *Config) {
		c.LogSource = src
	}
}

// WithInjector installs a fault injector. Intended for testing only.
func WithInjector(inj Injector) Option {
	return func(c *Config) {
		c.Injector = inj
	}
}
