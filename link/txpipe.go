package link

import (
	"go.uber.org/zap"

	"github.com/moffa90/go-spilink/protocol"
)

// doubleBuffer holds two transfer slots and hands them out alternately, so a
// slot handed to the bus is never rewritten while the next one is prepared.
type doubleBuffer struct {
	slots   [2][protocol.TransferSize]byte
	nextIdx int
}

func (d *doubleBuffer) take() []byte {
	b := d.slots[d.nextIdx][:]
	d.nextIdx ^= 1
	return b
}

// txPipe is the outbound half of the link: one message at a time.
type txPipe struct {
	buffers doubleBuffer

	// next is the frame staged for the next transfer, nil when none
	next     []byte
	nextData bool

	// current is the staged frame handed to the in-flight transfer
	current []byte

	frame [protocol.MaxMessageSize]byte
	size  int
	sent  int
	acked int

	seqCurrent   uint8
	seqConfirmed uint8
	completed    bool
}

// finish returns the pipe to idle after a message; sequence numbers carry over.
func (p *txPipe) finish() {
	p.size = 0
	p.sent = 0
	p.acked = 0
	p.completed = false
}

func (p *txPipe) reset() {
	*p = txPipe{}
}

// inWindow reports whether seq acknowledges an unconfirmed fragment.
func (p *txPipe) inWindow(seq uint8) bool {
	base := int(p.seqConfirmed)
	last := int(p.seqCurrent)
	s := int(seq)

	if last < base {
		last += protocol.SeqModulo
	}
	if s < base {
		s += protocol.SeqModulo
	}
	return s > base && s <= last
}

// commit marks fragments up to seq as delivered.
func (p *txPipe) commit(seq uint8, capacity int) {
	start := int(p.seqConfirmed)
	s := int(seq)
	if s < start {
		s += protocol.SeqModulo
	}

	fragments := s - start
	if fragments == 0 {
		// Only reachable with sequence checking off: the ACK covers the oldest fragment.
		fragments = 1
	}
	n := fragments * capacity
	if n > p.sent-p.acked {
		n = p.sent - p.acked
	}
	p.acked += n

	if p.size > 0 && p.acked == p.size {
		p.completed = true
	}
	p.seqConfirmed = uint8(s % protocol.SeqModulo)
}

// capacity is the payload carried by one fragment at the current packet size.
func (t *Transport) capacity() int {
	return t.packetSize - protocol.Overhead
}

// stage claims the slot for the next transfer.
func (t *Transport) stage() []byte {
	buf := t.tx.buffers.take()[:t.packetSize]
	t.tx.next = buf
	t.tx.nextData = false
	return buf
}

// prepareData stages the next DATA fragment if the window allows it.
func (t *Transport) prepareData() {
	if t.tx.next != nil {
		t.log.Debug("prepare data: slot occupied")
		return
	}

	capacity := t.capacity()
	if t.tx.sent-t.tx.acked >= capacity*t.cfg.WindowSize {
		t.log.Debug("prepare data: window full",
			zap.Int("sent", t.tx.sent),
			zap.Int("acked", t.tx.acked),
		)
		return
	}

	if t.tx.sent == t.tx.size {
		// everything is out, waiting for ACK
		return
	}

	n := t.tx.size - t.tx.sent
	if n > capacity {
		n = capacity
	}
	last := t.tx.sent+n == t.tx.size
	seq := protocol.Sequence(t.tx.seqCurrent)

	buf := t.stage()
	if _, err := protocol.BuildData(buf, seq, last, t.tx.frame[t.tx.sent:t.tx.sent+n]); err != nil {
		t.log.Error("prepare data", zap.Error(err))
		t.tx.next = nil
		return
	}

	t.log.Debug("tx data",
		zap.Uint8("seq", seq),
		zap.Uint8("prev_seq", t.tx.seqCurrent),
		zap.Int("len", n),
		zap.Bool("last", last),
	)

	t.tx.seqCurrent = seq
	t.tx.sent += n
	t.tx.nextData = true
	t.stats.DataSent++
	t.injectTx(buf)
	t.armRetransmit()
}

// prepareRetransmit rewinds to the first unacknowledged fragment and resends it.
func (t *Transport) prepareRetransmit() {
	t.log.Debug("retransmit",
		zap.Int("sent", t.tx.sent),
		zap.Int("acked", t.tx.acked),
		zap.Uint8("seq", t.tx.seqCurrent),
		zap.Uint8("rewind_to", t.tx.seqConfirmed),
	)

	if t.tx.sent != t.tx.acked {
		t.stats.Retransmits++
	}
	t.tx.sent = t.tx.acked
	t.tx.seqCurrent = t.tx.seqConfirmed
	t.prepareData()
}

func (t *Transport) prepareAck(seq uint8) {
	if t.tx.next != nil {
		t.events.pushSeq(eventAck, seq)
		return
	}

	buf := t.stage()
	if _, err := protocol.BuildAck(buf, seq, false); err != nil {
		t.log.Error("prepare ack", zap.Error(err))
		t.tx.next = nil
		return
	}
	t.log.Debug("tx ack", zap.Uint8("seq", seq))
	t.stats.AcksSent++
	t.injectTx(buf)
}

func (t *Transport) prepareNack(seq uint8) {
	if t.tx.next != nil {
		t.events.pushSeq(eventNack, seq)
		return
	}

	flags := t.rx.nackFlags
	t.rx.nackFlags = 0

	buf := t.stage()
	if _, err := protocol.BuildNack(buf, seq, flags, false); err != nil {
		t.log.Error("prepare nack", zap.Error(err))
		t.tx.next = nil
		return
	}
	t.log.Debug("tx nack",
		zap.Uint8("seq", seq),
		zap.String("flags", protocol.NackFlagString(flags)),
	)
	t.stats.NacksSent++
	t.injectTx(buf)
}

func (t *Transport) prepareStatus() {
	if t.tx.next != nil {
		t.events.push(eventStatus)
		return
	}

	flags := t.rx.statusFlags
	t.rx.statusFlags = 0

	buf := t.stage()
	if _, err := protocol.BuildStatus(buf, flags); err != nil {
		t.log.Error("prepare status", zap.Error(err))
		t.tx.next = nil
		return
	}
	t.log.Info("tx status", zap.String("flags", protocol.NackFlagString(flags)))
	t.stats.StatusSent++
	t.injectTx(buf)
}

// commit applies an acknowledgement and keeps the retransmit timer running
// only while fragments remain unacknowledged.
func (t *Transport) commit(seq uint8) {
	t.tx.commit(seq, t.capacity())
	t.stopRetransmit()
	if t.tx.sent > t.tx.acked {
		t.armRetransmit()
	}
}

func (t *Transport) armRetransmit() {
	t.stopRetransmit()
	t.events.cancel(eventRetransmit)
	t.retransmit = t.clock.AfterFunc(t.cfg.RetransmitPeriod, t.events.retransmitTimeout)
}

func (t *Transport) stopRetransmit() {
	if t.retransmit != nil {
		t.retransmit.Stop()
		t.retransmit = nil
	}
}
