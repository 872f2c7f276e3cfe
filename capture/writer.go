package capture

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// WriteTo writes c in the capture file format.
func (c *Capture) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	if c.PacketSize <= 0 || c.PacketSize > 0xFF {
		return 0, fmt.Errorf("capture: invalid packet size %d", c.PacketSize)
	}

	version := c.Version
	if version == 0 {
		version = FormatVersion
	}
	header := []byte{Magic >> 8, Magic & 0xFF, version, byte(c.PacketSize)}
	if _, err := fmt.Fprintf(bw, "%X\n", header); err != nil {
		return cw.n, fmt.Errorf("capture: write header: %w", err)
	}

	for i, rec := range c.Records {
		line, err := encodeRecord(rec)
		if err != nil {
			return cw.n, fmt.Errorf("capture: record %d: %w", i, err)
		}
		if _, err := bw.WriteString(line); err != nil {
			return cw.n, fmt.Errorf("capture: record %d: %w", i, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return cw.n, fmt.Errorf("capture: flush: %w", err)
	}
	return cw.n, nil
}

// WriteFile writes c to path, replacing any existing file.
func (c *Capture) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("capture: create: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	_, err = c.WriteTo(f)
	return err
}

func encodeRecord(rec *Record) (string, error) {
	if rec.Dir != MOSI && rec.Dir != MISO {
		return "", fmt.Errorf("invalid direction %q", byte(rec.Dir))
	}
	if len(rec.Data) > MaxRecordData {
		return "", fmt.Errorf("data too long: %d bytes, maximum is %d", len(rec.Data), MaxRecordData)
	}

	ms := uint32(rec.Offset / time.Millisecond)
	buf := make([]byte, 0, RecordHeaderSize+len(rec.Data)+RecordChecksumSize)
	buf = append(buf, byte(ms>>24), byte(ms>>16), byte(ms>>8), byte(ms), byte(len(rec.Data)))
	buf = append(buf, rec.Data...)
	buf = append(buf, Checksum(buf))

	return string([]byte{byte(rec.Dir)}) + strings.ToUpper(hex.EncodeToString(buf)) + "\n", nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
