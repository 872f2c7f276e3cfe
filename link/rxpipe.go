package link

import (
	"go.uber.org/zap"

	"github.com/moffa90/go-spilink/protocol"
)

// seqNone is outside the 2-bit sequence space and never matches a received frame.
const seqNone uint8 = 128

// rxPipe is the inbound half of the link.
type rxPipe struct {
	buffers doubleBuffer

	// current holds the bytes of the last completed transfer,
	// next is armed for the transfer in flight
	current []byte
	next    []byte

	frame     [protocol.MaxMessageSize]byte
	size      int
	completed bool

	seqCurrent   uint8
	seqConfirmed uint8

	nackFlags   byte
	statusFlags byte
}

func (p *rxPipe) finish() {
	p.size = 0
	p.completed = false
}

func (p *rxPipe) reset() {
	*p = rxPipe{}
	p.seqCurrent = seqNone
}

// handleRx interprets the frame received in the last completed transfer and
// schedules the replies it calls for.
func (t *Transport) handleRx() {
	src := t.rx.current
	if src == nil {
		return
	}
	src = src[:t.packetSize]

	if inj := t.cfg.Injector; inj != nil {
		if inj.DropRx() {
			t.log.Warn("rx frame dropped by injector")
			return
		}
		inj.CorruptRx(src)
	}

	hdr := src[0]
	seq := (hdr >> protocol.SeqShift) & protocol.SeqMask
	statusResp := hdr&protocol.FlagStatusResponse != 0
	ackSeq, nackSeq := seqNone, seqNone

	switch protocol.FrameType(hdr >> protocol.TypeShift) {
	case protocol.FrameData:
		ackSeq, nackSeq = t.handleData(src, seq)

	case protocol.FrameAck:
		t.stats.AcksReceived++
		if !protocol.VerifyCRC(src[:protocol.AckFrameLength]) {
			t.stats.CRCErrors++
			if t.cfg.CRCCheck {
				t.log.Warn("rx ack: crc mismatch", zap.Uint8("seq", seq))
				break
			}
		}
		if statusResp {
			t.log.Debug("rx status ack")
			break
		}
		if t.tx.size == 0 {
			break
		}
		if t.cfg.SeqCheck && !t.tx.inWindow(seq) {
			t.log.Warn("rx ack: out of window",
				zap.Uint8("seq", seq),
				zap.Uint8("confirmed", t.tx.seqConfirmed),
				zap.Uint8("current", t.tx.seqCurrent),
			)
			break
		}
		t.log.Debug("rx ack", zap.Uint8("seq", seq))
		t.commit(seq)

	case protocol.FrameNack:
		t.stats.NacksReceived++
		if !protocol.VerifyCRC(src[:protocol.NackFrameLength]) {
			t.stats.CRCErrors++
			if t.cfg.CRCCheck {
				t.log.Warn("rx nack: crc mismatch", zap.Uint8("seq", seq))
				break
			}
		}
		flags := src[2]
		if statusResp {
			if flags == protocol.NackOther {
				t.log.Warn("rx status nack", zap.String("flags", protocol.NackFlagString(flags)))
			}
			break
		}
		if t.tx.size == 0 {
			break
		}
		if t.cfg.SeqCheck && flags == protocol.NackDuplicate && t.tx.inWindow(seq) {
			// the host already holds this fragment
			t.log.Debug("rx nack duplicate", zap.Uint8("seq", seq))
			t.commit(seq)
			break
		}
		t.log.Debug("rx nack",
			zap.Uint8("seq", seq),
			zap.String("flags", protocol.NackFlagString(flags)),
		)
	}

	if t.tx.size != t.tx.sent {
		t.events.push(eventData)
	}

	if ackSeq != seqNone {
		t.events.pushSeq(eventAck, ackSeq)
	} else if nackSeq != seqNone {
		t.events.pushSeq(eventNack, nackSeq)
	}
}

// handleData appends an inbound fragment to the message being reassembled.
// It returns the sequence number to ACK or NACK, seqNone for neither.
func (t *Transport) handleData(src []byte, seq uint8) (ackSeq, nackSeq uint8) {
	hdr := src[0]
	n := int(src[2])
	last := hdr&protocol.FlagLast != 0

	if n > t.capacity() {
		t.rx.nackFlags |= protocol.NackOther
		t.log.Warn("rx data: bad payload length", zap.Int("len", n), zap.Int("max", t.capacity()))
		return seqNone, seq
	}

	if !protocol.VerifyCRC(src[:n+protocol.Overhead]) {
		t.stats.CRCErrors++
		if t.cfg.CRCCheck {
			t.rx.nackFlags |= protocol.NackCRC
			t.log.Warn("rx data: crc mismatch", zap.Uint8("seq", seq), zap.Int("len", n))
			return seqNone, seq
		}
	}

	if t.rx.completed {
		t.rx.nackFlags |= protocol.NackOverflow
		t.rx.statusFlags |= protocol.NackBackpressure
		t.stats.Overflows++
		t.log.Info("rx data: previous message not delivered", zap.Uint8("seq", seq))
		return seqNone, seq
	}

	if t.cfg.SeqCheck && t.rx.seqCurrent == seq {
		t.rx.nackFlags |= protocol.NackDuplicate
		t.stats.Duplicates++
		t.log.Warn("rx data: duplicate", zap.Uint8("seq", seq))
		return seqNone, seq
	}

	if t.rx.size+n > protocol.MaxMessageSize {
		t.log.Error("rx data: message too large", zap.Int("size", t.rx.size+n))
		t.rx.size = 0
		t.rx.nackFlags |= protocol.NackOverflow
		t.stats.Overflows++
		return seqNone, seq
	}

	copy(t.rx.frame[t.rx.size:], src[protocol.DataHeaderSize:protocol.DataHeaderSize+n])
	t.rx.size += n
	if last {
		t.rx.completed = true
	}
	t.rx.seqCurrent = seq
	t.rx.seqConfirmed = seq

	t.log.Debug("rx data",
		zap.Uint8("seq", seq),
		zap.Int("len", n),
		zap.Bool("last", last),
		zap.Int("total", t.rx.size),
	)

	if t.cfg.SeqCheck || t.cfg.CRCCheck {
		return seq, seqNone
	}
	return seqNone, seqNone
}
