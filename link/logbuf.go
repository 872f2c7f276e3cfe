package link

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/moffa90/go-spilink/protocol"
)

// logState tracks the single log slot through one transfer.
type logState uint8

const (
	logReady  logState = iota // slot free
	logRead                   // text copied, waiting for a free transfer
	logStaged                 // armed on the bus
	logSent                   // clocked out, slot can be reused
)

type logSlot struct {
	buf     [protocol.TransferSize]byte
	scratch [protocol.TransferSize]byte
	used    int
	state   logState
}

// pollLogs fills the log slot from the log source when it is free.
func (t *Transport) pollLogs() {
	if t.cfg.LogSource == nil || t.logs.state != logReady {
		return
	}

	text := t.logs.scratch[:t.packetSize-protocol.LogHeaderSize]
	n, index, ok := t.cfg.LogSource.ReadLog(text)
	if !ok || n <= 0 {
		return
	}
	if n > len(text) {
		n = len(text)
	}

	if _, err := protocol.BuildLog(t.logs.buf[:t.packetSize], index, text[:n]); err != nil {
		t.log.Error("build log frame", zap.Error(err))
		return
	}
	t.logs.used = n + protocol.LogHeaderSize
	t.logs.state = logRead
}

// LogBuffer is a bounded byte queue that collects log output and feeds it to
// the log side channel. It implements zapcore.WriteSyncer and LogSource.
//
// Example:
//
//	logs := link.NewLogBuffer(4096)
//	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), logs, zap.InfoLevel)
//	tr, err := link.New(bus, line, cb, link.WithLogSource(logs), link.WithLogger(zap.New(core)))
type LogBuffer struct {
	mu      sync.Mutex
	buf     []byte
	max     int
	index   byte
	dropped int
}

var (
	_ zapcore.WriteSyncer = (*LogBuffer)(nil)
	_ LogSource           = (*LogBuffer)(nil)
)

// NewLogBuffer returns a buffer holding at most capacity bytes.
// Writes beyond that discard the oldest text.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &LogBuffer{
		buf: make([]byte, 0, capacity),
		max: capacity,
	}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.dropped += over
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *LogBuffer) Sync() error {
	return nil
}

// ReadLog implements LogSource. Each successful read advances the index.
func (b *LogBuffer) ReadLog(p []byte) (int, byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buf) == 0 || len(p) == 0 {
		return 0, 0, false
	}
	n := copy(p, b.buf)
	b.buf = append(b.buf[:0], b.buf[n:]...)

	index := b.index
	b.index++
	return n, index, true
}

// Len returns the number of buffered bytes.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Dropped returns how many bytes were discarded because the buffer was full.
func (b *LogBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
