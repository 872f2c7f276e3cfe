package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/moffa90/go-spilink/driver/periph"
	"github.com/moffa90/go-spilink/host"
	"github.com/moffa90/go-spilink/link"
)

// LinkOptions converts the link section. The logger, clock and log source
// are left to the caller.
func (f *File) LinkOptions() []link.Option {
	c := f.Link
	fw, _ := ParseFirmware(c.Firmware)

	opts := []link.Option{
		link.WithPacketSize(c.PacketSize),
		link.WithRetransmitPeriod(c.RetransmitPeriod.Std()),
		link.WithQueueResetTimeout(c.QueueResetTimeout.Std()),
		link.WithBackToBackDelay(c.BackToBackDelay.Std()),
		link.WithPulseThreshold(c.PulseThreshold.Std()),
		link.WithPulseWidth(c.PulseWidth.Std()),
		link.WithCRCCheck(c.CRCCheck),
		link.WithSeqCheck(c.SeqCheck),
		link.WithWaitForAcks(c.WaitForAcks),
		link.WithWindowSize(c.WindowSize),
		link.WithTestMode(c.TestMode),
		link.WithFirmwareVersion(fw),
	}
	if c.Fault.ErrorPercent > 0 || c.Fault.DropPercent > 0 {
		opts = append(opts, link.WithInjector(link.NewRandomInjector(c.Fault.ErrorPercent, c.Fault.DropPercent, c.Fault.Seed)))
	}
	return opts
}

// HostOptions converts the host section.
func (f *File) HostOptions() []host.Option {
	return []host.Option{
		host.WithPacketSize(f.Host.PacketSize),
		host.WithRetryAfter(f.Host.RetryAfter),
		host.WithPauseLimit(f.Host.PauseLimit),
		host.WithCRCCheck(f.Host.CRCCheck),
	}
}

// Periph converts the spi section.
func (f *File) Periph(logger *zap.Logger) periph.Config {
	return periph.Config{
		Port:   f.SPI.Port,
		Speed:  physic.Frequency(f.SPI.SpeedHz) * physic.Hertz,
		Mode:   spi.Mode(f.SPI.Mode),
		Pin:    f.SPI.Pin,
		Poll:   f.SPI.Poll.Std(),
		Logger: logger,
	}
}

func (c LogConfig) level() (zap.AtomicLevel, error) {
	lvl, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return lvl, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Logger builds the zap logger described by the log section.
func (f *File) Logger() (*zap.Logger, error) {
	lvl, err := f.Log.level()
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if f.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = lvl
	zc.Encoding = f.Log.Encoding
	if zc.Encoding == "console" {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	if len(f.Log.Output) > 0 {
		zc.OutputPaths = f.Log.Output
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("config: build logger: %w", err)
	}
	return logger, nil
}

// SideChannel tees logger into a log buffer for the link's LOG frames.
// It returns logger unchanged and a nil buffer when link.log_buffer is 0.
func (f *File) SideChannel(logger *zap.Logger) (*zap.Logger, *link.LogBuffer) {
	if f.Link.LogBuffer == 0 {
		return logger, nil
	}

	buf := link.NewLogBuffer(f.Link.LogBuffer)
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), buf, zap.InfoLevel)

	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	})), buf
}
