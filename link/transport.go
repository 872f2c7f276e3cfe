package link

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/moffa90/go-spilink/protocol"
)

// Transport is the peripheral side of the SPI link. It fragments outbound
// messages into DATA frames, reassembles inbound ones and answers the host
// with ACK, NACK and STATUS frames.
//
// All work happens in Process, which the owner calls whenever the bus
// completes a transfer or a timer fires. Process must be called from a
// single goroutine; Send, Stats and Close may be called from any goroutine.
type Transport struct {
	mu sync.Mutex

	bus   Bus
	line  Line
	cb    Callbacks
	cfg   Config
	log   *zap.Logger
	clock clockwork.Clock

	tx     txPipe
	rx     rxPipe
	logs   logSlot
	events eventQueue

	defaultReply [protocol.TransferSize]byte
	packetSize   int

	// pending counts completed transfers, committed those already interpreted
	pending   uint8
	committed uint8

	// xferGen invalidates completions of cancelled transfers
	xferGen     uint64
	sendingData bool
	sendingSeq  uint8

	retransmit  clockwork.Timer
	assertTimer clockwork.Timer
	assertGen   uint64

	lastAssert    time.Time
	lastXferDone  time.Time
	queueDeadline time.Time

	closed bool
	stats  Stats
}

// New creates a transport and arms the first transfer.
// The interrupt line is released and a STATUS frame is queued so the host
// learns the peripheral has (re)started.
//
// Example:
//
//	tr, err := link.New(bus, line, link.Callbacks{
//	    TxDone: func() { log.Println("sent") },
//	    RxDone: func(msg []byte) error { return handle(msg) },
//	}, link.WithLogger(logger))
func New(bus Bus, line Line, cb Callbacks, opts ...Option) (*Transport, error) {
	if bus == nil || line == nil || cb.TxDone == nil || cb.RxDone == nil {
		return nil, ErrNullPointer
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Transport{
		bus:        bus,
		line:       line,
		cb:         cb,
		cfg:        cfg,
		log:        cfg.Logger,
		clock:      cfg.Clock,
		packetSize: cfg.PacketSize,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rx.reset()

	t.events.push(eventStatus)
	t.makeNull()
	t.setLine(true)

	t.rx.next = t.rx.buffers.take()
	if err := t.startTransfer(t.defaultReply[:t.packetSize]); err != nil {
		return nil, fmt.Errorf("link: arm first transfer: %w", err)
	}
	t.setQueueDeadline()

	t.log.Info("link started",
		zap.Int("packet_size", t.packetSize),
		zap.Bool("crc_check", cfg.CRCCheck),
		zap.Bool("seq_check", cfg.SeqCheck),
		zap.Int("window", cfg.WindowSize),
		zap.Stringer("firmware", cfg.Firmware),
	)
	return t, nil
}

// MTU returns the largest message Send accepts.
func (t *Transport) MTU() int {
	return protocol.MaxMessageSize
}

// PacketSize returns the transfer size in use.
func (t *Transport) PacketSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.packetSize
}

// Send queues msg for transmission. Only one message may be outbound at a
// time; ErrBusy is returned until TxDone has been called for the previous one.
func (t *Transport) Send(msg []byte) error {
	if len(msg) == 0 || len(msg) > protocol.MaxMessageSize {
		return &MessageSizeError{Size: len(msg), Max: protocol.MaxMessageSize}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.tx.size != 0 {
		t.log.Warn("send rejected: message outbound",
			zap.Int("size", t.tx.size),
			zap.Int("acked", t.tx.acked),
		)
		return ErrBusy
	}

	copy(t.tx.frame[:], msg)
	t.tx.size = len(msg)
	t.tx.sent = 0
	t.tx.acked = 0
	t.setQueueDeadline()
	t.events.push(eventData)

	t.log.Debug("send queued", zap.Int("size", len(msg)))
	return nil
}

// Process runs one step of the link: watchdog, completed transfers, the next
// queued event, the log side channel and the interrupt line.
func (t *Transport) Process() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	if t.queueResetRequired() {
		return nil
	}

	t.handleTransfers()
	if t.closed {
		return nil
	}
	t.pollLogs()
	t.notifyHost()
	return nil
}

// Close cancels the armed transfer, stops all timers, releases the line and
// closes the bus.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	t.bus.Cancel()
	t.xferGen++
	t.stopRetransmit()
	t.stopAssertTimer()
	t.events.reset()
	t.tx.reset()
	t.rx.reset()

	t.log.Info("link closed")
	if err := multierr.Combine(t.line.Set(true), t.bus.Close()); err != nil {
		return fmt.Errorf("link: close: %w", err)
	}
	return nil
}

func (t *Transport) handleTransfers() {
	if t.tx.completed {
		t.tx.finish()
		t.setQueueDeadline()
		t.stats.MessagesSent++
		t.log.Debug("message delivered")
		t.unlocked(t.cb.TxDone)
		if t.closed {
			return
		}
	}

	for t.pending != t.committed {
		if t.rx.completed {
			t.deliver()
			if t.closed {
				return
			}
		}

		t.handleRx()
		t.committed = t.pending
	}

	if t.logs.state == logSent {
		t.logs.used = 0
		t.logs.state = logReady
	}

	t.makeNull()

	if t.tx.next == nil {
		if ev, ok := t.events.pop(); ok {
			t.dispatch(ev)
		}
	}
}

// deliver hands the reassembled message to RxDone.
func (t *Transport) deliver() {
	msg := t.rx.frame[:t.rx.size]

	var err error
	t.unlocked(func() { err = t.cb.RxDone(msg) })
	if t.closed {
		return
	}

	if errors.Is(err, ErrOutOfMemory) {
		t.log.Debug("rx message held: receiver out of memory", zap.Int("size", t.rx.size))
		return
	}
	if err != nil {
		t.log.Warn("rx callback failed", zap.Int("size", t.rx.size), zap.Error(err))
	}

	t.rx.finish()
	t.stats.MessagesReceived++

	if t.rx.statusFlags&protocol.NackBackpressure != 0 {
		t.rx.statusFlags &^= protocol.NackBackpressure
		t.events.push(eventStatus)
	}
}

func (t *Transport) dispatch(ev event) {
	switch ev.kind {
	case eventData:
		t.prepareData()
	case eventRetransmit:
		t.prepareRetransmit()
	case eventAck:
		t.prepareAck(ev.seq)
	case eventNack:
		t.prepareNack(ev.seq)
	case eventStatus:
		t.prepareStatus()
	default:
		t.log.Error("unknown event", zap.Stringer("event", ev.kind))
	}
}

// queueResetRequired resets the whole link when a message has been outbound
// longer than QueueResetTimeout. It reports whether the reset happened.
func (t *Transport) queueResetRequired() bool {
	if t.tx.size == 0 {
		t.setQueueDeadline()
		return false
	}

	now := t.clock.Now()
	if !now.After(t.queueDeadline) {
		return false
	}

	t.log.Warn("queue reset: message stuck",
		zap.Int("size", t.tx.size),
		zap.Int("sent", t.tx.sent),
		zap.Int("acked", t.tx.acked),
	)
	t.stats.QueueResets++

	t.bus.Cancel()
	t.xferGen++
	t.setQueueDeadline()
	t.stopRetransmit()
	t.stopAssertTimer()

	t.tx.reset()
	t.rx.reset()
	t.events.reset()
	t.sendingData = false

	t.setLine(true)
	t.events.push(eventStatus)
	t.makeNull()

	t.rx.next = t.rx.buffers.take()
	if err := t.startTransfer(t.defaultReply[:t.packetSize]); err != nil {
		t.log.Error("queue reset: arm transfer", zap.Error(err))
	}
	return true
}

func (t *Transport) setQueueDeadline() {
	t.queueDeadline = t.clock.Now().Add(t.cfg.QueueResetTimeout)
}

// makeNull refreshes the default reply with the current sequence state.
func (t *Transport) makeNull() {
	err := protocol.BuildNull(t.defaultReply[:t.packetSize], protocol.NullInfo{
		TestMode: t.cfg.TestMode,
		Version:  protocol.Version,
		RxSeq:    t.rx.seqConfirmed,
		TxSeq:    t.tx.seqConfirmed,
		Firmware: t.cfg.Firmware,
	})
	if err != nil {
		t.log.Error("build null frame", zap.Error(err))
	}
}

func (t *Transport) startTransfer(tx []byte) error {
	t.xferGen++
	gen := t.xferGen

	rx := t.rx.next[:t.packetSize]
	return t.bus.Transfer(tx, rx, func(n int, err error) {
		t.onTransferDone(gen, n, err)
	})
}

// onTransferDone runs on the bus goroutine when the master has clocked a
// transfer. It arms the next one straight away.
func (t *Transport) onTransferDone(gen uint64, n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || gen != t.xferGen {
		return
	}

	if err != nil {
		t.stats.TransferErrors++
		t.log.Error("transfer failed", zap.Error(&TransferError{Count: n, Err: err}))
		return
	}
	t.stats.Transfers++

	if n != t.packetSize {
		if t.packetSize == protocol.TransferSize && n < t.packetSize && n >= protocol.MinPacketSize {
			t.log.Warn("packet size trimmed", zap.Int("from", t.packetSize), zap.Int("to", n))
			t.packetSize = n
		} else {
			t.log.Error("unexpected transfer size", zap.Int("got", n), zap.Int("want", t.packetSize))
		}
	}

	now := t.clock.Now()
	t.lastXferDone = now
	t.deassert()

	if t.sendingData && !t.cfg.WaitForAcks {
		t.commit(t.sendingSeq)
	}

	if t.logs.state == logStaged {
		t.logs.state = logSent
		t.stats.LogsSent++
	}

	txPending := t.tx.next != nil
	tx := t.tx.next
	t.sendingData = txPending && t.tx.nextData
	if t.sendingData {
		t.sendingSeq = (tx[0] >> protocol.SeqShift) & protocol.SeqMask
	}
	if !txPending {
		if t.logs.state == logRead {
			tx = t.logs.buf[:]
			t.logs.state = logStaged
		} else {
			tx = t.defaultReply[:]
		}
	}
	t.tx.current = t.tx.next

	t.rx.current = t.rx.next
	t.rx.next = t.rx.buffers.take()

	if err := t.startTransfer(tx[:t.packetSize]); err != nil {
		t.log.Error("arm transfer", zap.Error(err))
	}

	t.tx.next = nil
	t.pending++

	if txPending {
		t.assert(now)
	}
}

// unlocked runs fn without the transport lock held.
func (t *Transport) unlocked(fn func()) {
	t.mu.Unlock()
	defer t.mu.Lock()
	fn()
}
