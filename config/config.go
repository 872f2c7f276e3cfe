// Package config loads the YAML configuration of the spilink tools and turns
// it into link options, host options, driver settings and a logger.
//
// Example file:
//
//	link:
//	  retransmit_period: 1s
//	  queue_reset_timeout: 3s
//	  window_size: 1
//	  firmware: 1.4.0.12
//	spi:
//	  port: /dev/spidev1.0
//	  speed_hz: 8000000
//	  pin: GPIO25
//	log:
//	  level: debug
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-spilink/protocol"
)

// File is the top level of a configuration file.
type File struct {
	Link LinkConfig `yaml:"link"`
	Host HostConfig `yaml:"host"`
	SPI  SPIConfig  `yaml:"spi"`
	Log  LogConfig  `yaml:"log"`
}

// LinkConfig configures the peripheral transport.
type LinkConfig struct {
	PacketSize        int      `yaml:"packet_size"`
	RetransmitPeriod  Duration `yaml:"retransmit_period"`
	QueueResetTimeout Duration `yaml:"queue_reset_timeout"`
	BackToBackDelay   Duration `yaml:"back_to_back_delay"`
	PulseThreshold    Duration `yaml:"pulse_threshold"`
	PulseWidth        Duration `yaml:"pulse_width"`
	CRCCheck          bool     `yaml:"crc_check"`
	SeqCheck          bool     `yaml:"seq_check"`
	WaitForAcks       bool     `yaml:"wait_for_acks"`
	WindowSize        int      `yaml:"window_size"`
	TestMode          bool     `yaml:"test_mode"`
	Firmware          string   `yaml:"firmware"`

	// LogBuffer is the size of the log side channel buffer, 0 disables it
	LogBuffer int `yaml:"log_buffer"`

	Fault FaultConfig `yaml:"fault"`
}

// FaultConfig enables random fault injection when either percentage is set.
type FaultConfig struct {
	ErrorPercent int   `yaml:"error_percent"`
	DropPercent  int   `yaml:"drop_percent"`
	Seed         int64 `yaml:"seed"`
}

// HostConfig configures the host peer.
type HostConfig struct {
	PacketSize int  `yaml:"packet_size"`
	RetryAfter int  `yaml:"retry_after"`
	PauseLimit int  `yaml:"pause_limit"`
	CRCCheck   bool `yaml:"crc_check"`
}

// SPIConfig selects the hardware port and interrupt pin.
type SPIConfig struct {
	Port    string   `yaml:"port"`
	SpeedHz int64    `yaml:"speed_hz"`
	Mode    int      `yaml:"mode"`
	Pin     string   `yaml:"pin"`
	Poll    Duration `yaml:"poll"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string   `yaml:"level"`
	Encoding    string   `yaml:"encoding"`
	Development bool     `yaml:"development"`
	Output      []string `yaml:"output"`
}

// Duration is a time.Duration written as a Go duration string ("250ms").
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Default returns the configuration used when no file is given.
func Default() *File {
	return &File{
		Link: LinkConfig{
			PacketSize:        protocol.TransferSize,
			RetransmitPeriod:  Duration(time.Second),
			QueueResetTimeout: Duration(3 * time.Second),
			BackToBackDelay:   Duration(8 * time.Millisecond),
			PulseThreshold:    Duration(20 * time.Millisecond),
			PulseWidth:        Duration(100 * time.Microsecond),
			CRCCheck:          true,
			SeqCheck:          true,
			WaitForAcks:       true,
			WindowSize:        1,
			Firmware:          "99.0.0.0",
			LogBuffer:         4096,
		},
		Host: HostConfig{
			PacketSize: protocol.TransferSize,
			RetryAfter: 4,
			PauseLimit: 64,
			CRCCheck:   true,
		},
		SPI: SPIConfig{
			SpeedHz: 8_000_000,
			Poll:    Duration(100 * time.Millisecond),
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
			Output:   []string{"stderr"},
		},
	}
}

// Load reads and validates the file at path. Missing keys keep their defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates YAML on top of Default.
func Parse(data []byte) (*File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Marshal encodes f as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// Validate reports every invalid setting.
func (f *File) Validate() error {
	var err error

	if n := f.Link.PacketSize; n < protocol.MinPacketSize || n > protocol.TransferSize {
		err = multierr.Append(err, fmt.Errorf("link.packet_size %d out of range %d-%d", n, protocol.MinPacketSize, protocol.TransferSize))
	}
	if f.Link.RetransmitPeriod <= 0 {
		err = multierr.Append(err, fmt.Errorf("link.retransmit_period must be positive"))
	}
	if f.Link.QueueResetTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("link.queue_reset_timeout must be positive"))
	}
	if f.Link.BackToBackDelay < 0 || f.Link.PulseWidth < 0 {
		err = multierr.Append(err, fmt.Errorf("link delays must not be negative"))
	}
	if f.Link.PulseThreshold <= 0 {
		err = multierr.Append(err, fmt.Errorf("link.pulse_threshold must be positive"))
	}
	if n := f.Link.WindowSize; n < 1 || n >= protocol.SeqModulo {
		err = multierr.Append(err, fmt.Errorf("link.window_size %d out of range 1-%d", n, protocol.SeqModulo-1))
	}
	if _, ferr := ParseFirmware(f.Link.Firmware); ferr != nil {
		err = multierr.Append(err, ferr)
	}
	if f.Link.LogBuffer < 0 {
		err = multierr.Append(err, fmt.Errorf("link.log_buffer must not be negative"))
	}
	if p := f.Link.Fault; p.ErrorPercent < 0 || p.ErrorPercent > 100 || p.DropPercent < 0 || p.DropPercent > 100 {
		err = multierr.Append(err, fmt.Errorf("link.fault percentages must be 0-100"))
	}

	if n := f.Host.PacketSize; n < protocol.MinPacketSize || n > protocol.TransferSize {
		err = multierr.Append(err, fmt.Errorf("host.packet_size %d out of range %d-%d", n, protocol.MinPacketSize, protocol.TransferSize))
	}
	if f.Host.RetryAfter < 1 || f.Host.PauseLimit < 1 {
		err = multierr.Append(err, fmt.Errorf("host.retry_after and host.pause_limit must be at least 1"))
	}

	if f.SPI.SpeedHz <= 0 {
		err = multierr.Append(err, fmt.Errorf("spi.speed_hz must be positive"))
	}
	if f.SPI.Mode < 0 || f.SPI.Mode > 3 {
		err = multierr.Append(err, fmt.Errorf("spi.mode %d out of range 0-3", f.SPI.Mode))
	}

	if _, lerr := f.Log.level(); lerr != nil {
		err = multierr.Append(err, lerr)
	}
	switch f.Log.Encoding {
	case "console", "json":
	default:
		err = multierr.Append(err, fmt.Errorf("log.encoding %q must be console or json", f.Log.Encoding))
	}

	return err
}

// ParseFirmware parses a dotted version of up to four parts ("1.4", "1.4.0.12").
func ParseFirmware(s string) (protocol.FirmwareVersion, error) {
	var v protocol.FirmwareVersion
	parts := strings.Split(s, ".")
	if s == "" || len(parts) > 4 {
		return v, fmt.Errorf("link.firmware %q must be up to four dotted numbers", s)
	}

	fields := []*byte{&v.Major, &v.Minor, &v.Patch, &v.Build}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return v, fmt.Errorf("link.firmware %q: %w", s, err)
		}
		*fields[i] = byte(n)
	}
	return v, nil
}
