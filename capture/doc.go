// Package capture records SPI transfers of the link in a line-oriented hex
// text format and reads them back.
//
// # Capture File Format
//
// The first line is the header (8 hex characters):
//
//	[Magic(4)][Version(2)][PacketSize(2)]
//
// Example header:
//
//	534C0180
//	  534C = Magic ("SL")
//	  01 = Format version
//	  80 = Packet size (128 bytes)
//
// Every following line is one direction of one transfer. The first
// character gives the direction, '>' for MOSI (master to slave) and '<' for
// MISO (slave to master), followed by hex:
//
//	[Offset(8)][Len(2)][Data(variable)][CRC8(2)]
//
// Offset is the big-endian number of milliseconds since the capture started.
// CRC8 covers every byte of the record before it.
//
// Example record:
//
//	>00000000083400D45EC0C0C0C058
//	  00000000 = Offset (0 ms)
//	  08 = Data length
//	  3400D45EC0C0C0C0 = Data (an ACK for sequence 1 plus filler)
//	  58 = CRC8
//
// # Usage
//
// Record a transport's bus and save it:
//
//	tap := capture.NewTap(bus, clockwork.NewRealClock())
//	tr, err := link.New(tap, line, cb)
//	...
//	_, err = tap.Capture().WriteFile("link.cap")
//
// Read it back:
//
//	c, err := capture.Parse("link.cap")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range c.Records {
//	    f, err := protocol.Parse(r.Data)
//	    ...
//	}
package capture
