package link

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLogBuffer(t *testing.T) {
	b := NewLogBuffer(8)

	if _, _, ok := b.ReadLog(make([]byte, 4)); ok {
		t.Fatal("ReadLog() on empty buffer reported text")
	}

	b.Write([]byte("abcdef"))
	b.Write([]byte("ghij"))

	if got := b.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}

	p := make([]byte, 5)
	n, index, ok := b.ReadLog(p)
	if !ok || string(p[:n]) != "cdefg" || index != 0 {
		t.Fatalf("ReadLog() = %q/%d/%v, want cdefg/0/true", p[:n], index, ok)
	}

	n, index, ok = b.ReadLog(p)
	if !ok || string(p[:n]) != "hij" || index != 1 {
		t.Fatalf("ReadLog() = %q/%d/%v, want hij/1/true", p[:n], index, ok)
	}

	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestLogBufferAsZapSink(t *testing.T) {
	b := NewLogBuffer(1024)
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	logger := zap.New(zapcore.NewCore(enc, b, zap.InfoLevel))

	logger.Debug("hidden")
	logger.Info("radio up", zap.Int("channel", 7))
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	p := make([]byte, 1024)
	n, _, ok := b.ReadLog(p)
	if !ok {
		t.Fatal("nothing logged")
	}
	text := string(p[:n])
	if !strings.Contains(text, "radio up") || strings.Contains(text, "hidden") {
		t.Errorf("log text = %q", text)
	}
}
