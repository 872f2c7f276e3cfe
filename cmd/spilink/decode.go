package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/moffa90/go-spilink/capture"
	"github.com/moffa90/go-spilink/protocol"
)

func runDecode(args []string) error {
	fs := newFlagSet("decode")
	raw := fs.Bool("raw", false, "also print the raw bytes of each record")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected one capture file")
	}

	c, err := capture.Parse(fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Printf("capture v%d, packet size %d, %d records\n", c.Version, c.PacketSize, len(c.Records))
	for _, rec := range c.Records {
		printRecord(os.Stdout, rec, *raw)
	}
	return nil
}

func printRecord(w io.Writer, rec *capture.Record, raw bool) {
	fmt.Fprintf(w, "%10v %s %s\n", rec.Offset, rec.Dir, describe(rec.Data))
	if raw {
		fmt.Fprintf(w, "%15s% X\n", "", rec.Data)
	}
}

// describe renders one frame on a line.
func describe(buf []byte) string {
	f, err := protocol.Parse(buf)
	if err != nil {
		return fmt.Sprintf("undecodable: %v", err)
	}

	crc := "ok"
	if f.Type != protocol.FrameNull && f.Type != protocol.FrameLog {
		if f.Length > len(buf) || !protocol.VerifyCRC(buf[:f.Length]) {
			crc = "BAD"
		}
	}

	switch f.Type {
	case protocol.FrameData:
		return fmt.Sprintf("DATA seq=%d last=%t len=%d crc=%s", f.Seq, f.Last, len(f.Payload), crc)
	case protocol.FrameAck:
		return fmt.Sprintf("ACK  seq=%d status_resp=%t crc=%s", f.Seq, f.StatusResponse, crc)
	case protocol.FrameNack:
		return fmt.Sprintf("NACK seq=%d flags=%s status_resp=%t crc=%s",
			f.Seq, protocol.NackFlagString(f.Flags), f.StatusResponse, crc)
	case protocol.FrameStatus:
		return fmt.Sprintf("STATUS flags=%s crc=%s", protocol.NackFlagString(f.Flags), crc)
	case protocol.FrameLog:
		return fmt.Sprintf("LOG  index=%d %q", f.Flags, f.Payload)
	case protocol.FrameNull:
		info, err := protocol.ParseNull(buf)
		if err != nil || buf[1] == protocol.DefaultChar {
			return "NULL (filler)"
		}
		return fmt.Sprintf("NULL v%d rx=%d tx=%d fw=%s test=%t",
			info.Version, info.RxSeq, info.TxSeq, info.Firmware, info.TestMode)
	default:
		return f.Type.String()
	}
}
