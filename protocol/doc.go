// Package protocol implements the wire format of the SPI host-transport link.
//
// This package provides functions to build and decode the fixed-size frames
// exchanged on every SPI transfer between a peripheral (slave) and a host (master).
//
// # Frame Overview
//
// Every transfer clocks exactly packet-size bytes (128 by default) in each direction.
// The first byte is a header:
//
//	bit 7..4  frame type
//	bit 3..2  sequence number (mod 4)
//	bit 1     last fragment (DATA)
//	bit 0     status response (ACK, NACK, STATUS)
//
// Frame kinds:
//
//	DATA:   [HDR][0][LEN][PAYLOAD...][CRC_H][CRC_L]
//	ACK:    [HDR][0][CRC_H][CRC_L]
//	NACK:   [HDR][0][FLAGS][CRC_H][CRC_L]
//	STATUS: [HDR][0][FLAGS][CRC_H][CRC_L]
//	LOG:    [HDR][LEN][INDEX][TEXT...]
//	NULL:   [0xC0][MODE|VERSION][RX_SEQ<<4|TX_SEQ][MAJOR][MINOR][PATCH][BUILD]
//
// Unused bytes are padded with DefaultChar (0xC0).
//
// # Builders
//
// Use the Build* functions to fill a transfer buffer:
//
//	n, err := protocol.BuildData(buf, seq, last, payload)
//	n, err := protocol.BuildAck(buf, seq, false)
//	// ... etc
//
// # Parsing
//
// Parse decodes the header and bounds; integrity is checked separately so that
// CRC checking can be switched off for interoperability testing:
//
//	f, err := protocol.Parse(rx)
//	ok := protocol.VerifyCRC(rx[:f.Length])
//
// # CRC
//
// CRC16 is bit-exact with the peripheral firmware and is written big-endian
// after the covered bytes.
package protocol
