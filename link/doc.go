// Package link implements the peripheral side of a half-duplex message link
// carried over full-duplex SPI transfers in slave mode.
//
// # Overview
//
// The host (SPI master) clocks fixed-size transfers, 128 bytes by default. In
// each transfer the peripheral sends one frame and receives one frame. Messages
// of up to 1024 bytes are split into DATA fragments with a 2-bit sequence
// number and a CRC-16, and each fragment is acknowledged with an ACK or
// rejected with a NACK. When nothing else is pending the peripheral answers
// with a NULL frame carrying its sequence state and firmware version.
//
// The peripheral asks to be clocked by pulling an active-low interrupt line.
//
// # Basic Usage
//
//	tr, err := link.New(bus, line, link.Callbacks{
//	    TxDone: func() { done <- struct{}{} },
//	    RxDone: func(msg []byte) error {
//	        inbox <- append([]byte(nil), msg...)
//	        return nil
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tr.Close()
//
//	tr.Send([]byte("hello"))
//	for range wake {
//	    tr.Process()
//	}
//
// Process must run after every completed transfer and whenever a timer may
// have fired. The driver packages provide a wake channel for that.
//
// # Recovery
//
// An unacknowledged fragment is retransmitted after RetransmitPeriod. A message
// stuck for longer than QueueResetTimeout resets the whole link and sends a
// STATUS frame so the host resynchronizes.
//
// A receiver that cannot take a message yet returns ErrOutOfMemory from RxDone.
// Further fragments are rejected with NACK OVERFLOW until the message is
// delivered, after which a STATUS frame tells the host to resume.
//
// # Side Channel
//
// With WithLogSource, text from the source is sent in LOG frames whenever a
// transfer would otherwise carry a NULL frame. LogBuffer connects a zap logger
// to it.
package link
