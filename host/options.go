package host

import (
	"go.uber.org/zap"

	"github.com/moffa90/go-spilink/protocol"
)

// Config holds the peer configuration.
type Config struct {
	// Logger is used for protocol tracing (optional, defaults to a no-op logger)
	Logger *zap.Logger

	// PacketSize is the number of bytes clocked per transfer
	PacketSize int

	// RetryAfter is the number of transfers to wait for an ACK before resending
	RetryAfter int

	// PauseLimit is the number of transfers to stay paused after NACK OVERFLOW
	// when no STATUS frame arrives
	PauseLimit int

	// CRCCheck rejects frames with a bad CRC
	CRCCheck bool

	// OnMessage receives each reassembled message; the slice is owned by the callee
	OnMessage func(msg []byte)

	// OnSent is called when the peripheral has acknowledged a whole message
	OnSent func()

	// OnLog receives text from LOG frames
	OnLog func(index byte, text []byte)
}

func defaultConfig() Config {
	return Config{
		Logger:     zap.NewNop(),
		PacketSize: protocol.TransferSize,
		RetryAfter: 4,
		PauseLimit: 64,
		CRCCheck:   true,
	}
}

// Option is a functional option for configuring the Peer.
type Option func(*Config)

// WithLogger sets the logger for peer events.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithPacketSize sets the transfer size in bytes.
func WithPacketSize(size int) Option {
	return func(c *Config) {
		if size >= protocol.MinPacketSize && size <= protocol.TransferSize {
			c.PacketSize = size
		}
	}
}

// WithRetryAfter sets how many transfers to wait for an ACK. Default is 4.
//
// The peripheral answers two transfers after a fragment at the earliest, so
// values below 3 cause needless duplicates.
func WithRetryAfter(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.RetryAfter = n
		}
	}
}

// WithPauseLimit sets how long to stay paused without a STATUS frame. Default is 64 transfers.
func WithPauseLimit(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.PauseLimit = n
		}
	}
}

// WithCRCCheck enables or disables CRC validation. Default is true.
func WithCRCCheck(enabled bool) Option {
	return func(c *Config) {
		c.CRCCheck = enabled
	}
}

// WithOnMessage sets the message callback.
//
// Example:
//
//	peer := host.New(host.WithOnMessage(func(msg []byte) {
//	    fmt.Printf("rx % X\n", msg)
//	}))
func WithOnMessage(fn func(msg []byte)) Option {
	return func(c *Config) {
		c.OnMessage = fn
	}
}

// WithOnSent sets the callback run when an outbound message is acknowledged.
func WithOnSent(fn func()) Option {
	return func(c *Config) {
		c.OnSent = fn
	}
}

// WithOnLog sets the callback for the peripheral log side channel.
func WithOnLog(fn func(index byte, text []byte)) Option {
	return func(c *Config) {
		c.OnLog = fn
	}
}
