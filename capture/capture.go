package capture

import (
	"time"

	"github.com/sigurn/crc8"
)

// Constants for capture file parsing.
const (
	// Magic is the first two bytes of the header
	Magic = 0x534C

	// FormatVersion is the only format version understood
	FormatVersion = 1

	// HeaderLength is the expected length of the header line in hex characters
	HeaderLength = 8

	// RecordHeaderSize is the size of record metadata (offset + length)
	RecordHeaderSize = 5

	// RecordChecksumSize is the size of the record CRC8
	RecordChecksumSize = 1

	// MinimumRecordLength is the minimum length of a record line in hex
	// characters, not counting the direction marker
	MinimumRecordLength = 2 * (RecordHeaderSize + RecordChecksumSize)

	// MaxRecordData is the largest data length a record can carry
	MaxRecordData = 0xFF

	// DefaultRecordCapacity is the default initial capacity for the records slice
	DefaultRecordCapacity = 256
)

var table = crc8.MakeTable(crc8.CRC8)

// Direction tells which side of the bus drove a record.
type Direction byte

const (
	MOSI Direction = '>' // master to slave
	MISO Direction = '<' // slave to master
)

func (d Direction) String() string {
	switch d {
	case MOSI:
		return "MOSI"
	case MISO:
		return "MISO"
	default:
		return "unknown"
	}
}

// Capture is a parsed capture file.
type Capture struct {
	Version    byte
	PacketSize int
	Records    []*Record
}

// Record is one direction of one transfer.
type Record struct {
	Dir Direction

	// Offset since the start of the capture, millisecond resolution
	Offset time.Duration

	Data     []byte
	Checksum byte
}

// Checksum computes the record CRC8 of data.
func Checksum(data []byte) byte {
	return crc8.Checksum(data, table)
}

// Transfers pairs each MOSI record with the MISO record that follows it.
// Unpaired records are skipped.
func (c *Capture) Transfers() [][2]*Record {
	var out [][2]*Record
	for i := 0; i+1 < len(c.Records); i++ {
		if c.Records[i].Dir == MOSI && c.Records[i+1].Dir == MISO {
			out = append(out, [2]*Record{c.Records[i], c.Records[i+1]})
			i++
		}
	}
	return out
}
