// Package host implements the master side of the SPI link: it clocks
// transfers, acknowledges the peripheral's DATA frames and sends its own
// messages stop-and-wait.
//
// # Basic Usage
//
//	peer := host.New(
//	    host.WithOnMessage(func(msg []byte) { fmt.Printf("% X\n", msg) }),
//	)
//	peer.Send([]byte("hello"))
//	for {
//	    if err := peer.Exchange(bus); err != nil {
//	        return err
//	    }
//	}
package host

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/moffa90/go-spilink/protocol"
)

const seqNone uint8 = 128

// Clocker performs one full-duplex transfer as SPI master.
type Clocker interface {
	Clock(mosi []byte) (miso []byte, err error)
}

// Stats counts peer activity.
type Stats struct {
	Transfers        uint64
	DataSent         uint64
	Retransmits      uint64
	AcksSent         uint64
	NacksSent        uint64
	CRCErrors        uint64
	Overflows        uint64
	StatusReceived   uint64
	MessagesSent     uint64
	MessagesReceived uint64
}

// Peer is the host end of the link. Frame and Handle must alternate, one
// pair per transfer; Exchange does both.
type Peer struct {
	mu  sync.Mutex
	cfg Config
	log *zap.Logger

	// outbound message, off is the start of the outstanding fragment
	out       []byte
	off       int
	fragLen   int
	txSeq     uint8
	waiting   bool
	since     int
	paused    bool
	pausedFor int

	// inbound reassembly
	in    []byte
	rxSeq uint8

	reply []byte

	remote     protocol.NullInfo
	haveRemote bool

	stats Stats
}

// New creates a peer.
func New(opts ...Option) *Peer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Peer{
		cfg:   cfg,
		log:   cfg.Logger,
		rxSeq: seqNone,
	}
}

// Send queues msg for the peripheral. ErrBusy is returned until the previous
// message has been acknowledged.
func (p *Peer) Send(msg []byte) error {
	if len(msg) == 0 || len(msg) > protocol.MaxMessageSize {
		return &MessageSizeError{Size: len(msg), Max: protocol.MaxMessageSize}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.out != nil {
		return ErrBusy
	}
	p.out = append([]byte(nil), msg...)
	p.off = 0
	p.waiting = false
	return nil
}

// Exchange runs one transfer on c.
func (p *Peer) Exchange(c Clocker) error {
	miso, err := c.Clock(p.Frame())
	if err != nil {
		return fmt.Errorf("host: exchange: %w", err)
	}
	p.Handle(miso)
	return nil
}

// Frame returns the bytes to clock out in the next transfer: a pending
// ACK or NACK first, then a DATA fragment, otherwise NULL filler.
func (p *Peer) Frame() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := make([]byte, p.cfg.PacketSize)

	if p.reply != nil {
		copy(buf, p.reply)
		p.reply = nil
		return buf
	}

	if p.out != nil && !p.paused && (!p.waiting || p.since >= p.cfg.RetryAfter) {
		if p.waiting {
			p.stats.Retransmits++
			p.log.Debug("resend fragment", zap.Uint8("seq", p.txSeq), zap.Int("offset", p.off))
		} else {
			p.txSeq = protocol.Sequence(p.txSeq)
		}

		n := len(p.out) - p.off
		if capacity := p.cfg.PacketSize - protocol.Overhead; n > capacity {
			n = capacity
		}
		last := p.off+n == len(p.out)
		if _, err := protocol.BuildData(buf, p.txSeq, last, p.out[p.off:p.off+n]); err != nil {
			p.log.Error("build data", zap.Error(err))
			return filler(buf)
		}

		p.fragLen = n
		p.waiting = true
		p.since = 0
		p.stats.DataSent++
		p.log.Debug("tx data", zap.Uint8("seq", p.txSeq), zap.Int("len", n), zap.Bool("last", last))
		return buf
	}

	return filler(buf)
}

func filler(buf []byte) []byte {
	for i := range buf {
		buf[i] = protocol.DefaultChar
	}
	return buf
}

// Handle interprets the frame the peripheral sent in the last transfer.
func (p *Peer) Handle(miso []byte) {
	p.mu.Lock()

	p.stats.Transfers++
	if p.waiting {
		p.since++
	}
	if p.paused {
		p.pausedFor++
		if p.pausedFor >= p.cfg.PauseLimit {
			p.log.Warn("no STATUS after overflow, resuming")
			p.paused = false
		}
	}

	var (
		deliver []byte
		sent    bool
		logText []byte
		logIdx  byte
	)

	f, err := protocol.Parse(miso)
	switch {
	case err != nil:
		p.log.Debug("rx: undecodable frame", zap.Error(err))

	case f.Type != protocol.FrameNull && f.Type != protocol.FrameLog && !p.crcOK(miso, f):
		p.stats.CRCErrors++
		p.log.Warn("rx: crc mismatch", zap.Stringer("type", f.Type), zap.Uint8("seq", f.Seq))
		if f.Type == protocol.FrameData {
			p.nack(f.Seq, protocol.NackCRC)
		}

	case f.Type == protocol.FrameData:
		deliver = p.handleData(f)

	case f.Type == protocol.FrameAck:
		sent = p.acknowledged(f.Seq)

	case f.Type == protocol.FrameNack:
		sent = p.handleNack(f)

	case f.Type == protocol.FrameStatus:
		p.handleStatus(f)

	case f.Type == protocol.FrameLog:
		logText = append([]byte(nil), f.Payload...)
		logIdx = f.Flags

	case f.Type == protocol.FrameNull:
		if info, err := protocol.ParseNull(miso); err == nil {
			p.remote = info
			p.haveRemote = true
		}
	}

	p.mu.Unlock()

	if deliver != nil && p.cfg.OnMessage != nil {
		p.cfg.OnMessage(deliver)
	}
	if sent && p.cfg.OnSent != nil {
		p.cfg.OnSent()
	}
	if logText != nil && p.cfg.OnLog != nil {
		p.cfg.OnLog(logIdx, logText)
	}
}

func (p *Peer) crcOK(miso []byte, f protocol.Frame) bool {
	if !p.cfg.CRCCheck {
		return true
	}
	return f.Length <= len(miso) && protocol.VerifyCRC(miso[:f.Length])
}

func (p *Peer) handleData(f protocol.Frame) []byte {
	if f.Seq == p.rxSeq {
		p.log.Debug("rx data: duplicate", zap.Uint8("seq", f.Seq))
		p.nack(f.Seq, protocol.NackDuplicate)
		return nil
	}

	if len(p.in)+len(f.Payload) > protocol.MaxMessageSize {
		p.log.Warn("rx data: message too large", zap.Int("size", len(p.in)+len(f.Payload)))
		p.in = nil
		p.stats.Overflows++
		p.nack(f.Seq, protocol.NackOverflow)
		return nil
	}

	p.in = append(p.in, f.Payload...)
	p.rxSeq = f.Seq
	p.ack(f.Seq)

	if !f.Last {
		return nil
	}
	msg := p.in
	p.in = nil
	p.stats.MessagesReceived++
	p.log.Debug("rx message", zap.Int("size", len(msg)))
	return msg
}

// acknowledged advances the outbound message when seq matches the
// outstanding fragment. It reports whether the message is complete.
func (p *Peer) acknowledged(seq uint8) bool {
	if !p.waiting || seq != p.txSeq {
		return false
	}

	p.off += p.fragLen
	p.waiting = false
	if p.off < len(p.out) {
		return false
	}

	p.out = nil
	p.off = 0
	p.stats.MessagesSent++
	return true
}

func (p *Peer) handleNack(f protocol.Frame) bool {
	if f.StatusResponse {
		return false
	}

	switch {
	case f.Flags&protocol.NackDuplicate != 0:
		// the peripheral already holds this fragment
		return p.acknowledged(f.Seq)

	case f.Flags&protocol.NackOverflow != 0:
		p.log.Info("peripheral overflow, pausing", zap.Uint8("seq", f.Seq))
		p.paused = true
		p.pausedFor = 0
		p.since = p.cfg.RetryAfter

	default:
		if p.waiting && f.Seq == p.txSeq {
			p.log.Debug("rx nack, resending",
				zap.Uint8("seq", f.Seq),
				zap.String("flags", protocol.NackFlagString(f.Flags)),
			)
			p.since = p.cfg.RetryAfter
		}
	}
	return false
}

// handleStatus resumes after an overflow and answers with a status-response ACK.
func (p *Peer) handleStatus(f protocol.Frame) {
	p.stats.StatusReceived++

	if p.paused {
		p.log.Info("peripheral resumed")
		p.paused = false
	} else {
		p.log.Info("rx status", zap.String("flags", protocol.NackFlagString(f.Flags)))
	}

	buf := make([]byte, p.cfg.PacketSize)
	filler(buf)
	if _, err := protocol.BuildAck(buf, 0, true); err == nil {
		p.reply = buf
	}
}

func (p *Peer) ack(seq uint8) {
	buf := filler(make([]byte, p.cfg.PacketSize))
	if _, err := protocol.BuildAck(buf, seq, false); err != nil {
		p.log.Error("build ack", zap.Error(err))
		return
	}
	p.reply = buf
	p.stats.AcksSent++
}

func (p *Peer) nack(seq uint8, flags byte) {
	buf := filler(make([]byte, p.cfg.PacketSize))
	if _, err := protocol.BuildNack(buf, seq, flags, false); err != nil {
		p.log.Error("build nack", zap.Error(err))
		return
	}
	p.reply = buf
	p.stats.NacksSent++
}

// Idle reports whether nothing is outbound, queued or partially received.
func (p *Peer) Idle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out == nil && p.reply == nil && len(p.in) == 0
}

// Remote returns the diagnostics of the last NULL frame from the peripheral.
func (p *Peer) Remote() (protocol.NullInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote, p.haveRemote
}

// Stats returns a snapshot of the counters.
func (p *Peer) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
