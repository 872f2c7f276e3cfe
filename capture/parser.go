package capture

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// Parse parses a capture file from the given path.
//
// Example:
//
//	c, err := capture.Parse("link.cap")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d records, packet size %d\n", len(c.Records), c.PacketSize)
func Parse(path string) (*Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f)
}

// ParseReader parses a capture from any io.Reader.
func ParseReader(r io.Reader) (*Capture, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		return nil, errors.New("empty file")
	}

	c, err := parseHeader(scanner.Text())
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		rec, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		c.Records = append(c.Records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return c, nil
}

// parseHeader parses the capture header.
//
//	[Magic(2 bytes)][Version(1 byte)][PacketSize(1 byte)]
func parseHeader(line string) (*Capture, error) {
	if len(line) != HeaderLength {
		return nil, fmt.Errorf("invalid header length: got %d characters, expected %d", len(line), HeaderLength)
	}

	data, err := hex.DecodeString(line)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}

	if magic := uint16(data[0])<<8 | uint16(data[1]); magic != Magic {
		return nil, fmt.Errorf("bad magic: 0x%04X", magic)
	}
	if data[2] != FormatVersion {
		return nil, fmt.Errorf("unsupported version: %d", data[2])
	}
	if data[3] == 0 {
		return nil, errors.New("packet size is zero")
	}

	return &Capture{
		Version:    data[2],
		PacketSize: int(data[3]),
		Records:    make([]*Record, 0, DefaultRecordCapacity),
	}, nil
}

// parseRecord parses one record line.
//
//	[Dir(1 char)][Offset(4 bytes)][Len(1 byte)][Data(N bytes)][CRC8(1 byte)]
//
// The offset is big-endian milliseconds.
func parseRecord(line string) (*Record, error) {
	dir := Direction(line[0])
	if dir != MOSI && dir != MISO {
		return nil, fmt.Errorf("record must start with '>' or '<', got %q", line[0])
	}
	line = line[1:]

	if len(line) < MinimumRecordLength {
		return nil, fmt.Errorf("record too short: got %d characters, minimum is %d", len(line), MinimumRecordLength)
	}

	data, err := hex.DecodeString(line)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}

	ms := uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	dataLen := int(data[4])

	expectedLen := RecordHeaderSize + dataLen + RecordChecksumSize
	if len(data) != expectedLen {
		return nil, fmt.Errorf("data length mismatch: got %d bytes, expected %d (header=%d + data=%d + checksum=%d)",
			len(data), expectedLen, RecordHeaderSize, dataLen, RecordChecksumSize)
	}

	checksum := data[len(data)-1]
	if calculated := Checksum(data[:len(data)-1]); checksum != calculated {
		return nil, fmt.Errorf("checksum mismatch: got 0x%02X, expected 0x%02X", checksum, calculated)
	}

	rec := &Record{
		Dir:      dir,
		Offset:   time.Duration(ms) * time.Millisecond,
		Data:     make([]byte, dataLen),
		Checksum: checksum,
	}
	copy(rec.Data, data[RecordHeaderSize:RecordHeaderSize+dataLen])

	return rec, nil
}
