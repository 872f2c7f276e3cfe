package link

import "sync"

// eventKind selects what the next staged transfer will carry.
type eventKind uint8

const (
	eventData eventKind = iota
	eventRetransmit
	eventAck
	eventNack
	eventStatus
	numEvents
)

func (k eventKind) String() string {
	switch k {
	case eventData:
		return "DF"
	case eventRetransmit:
		return "DF retry"
	case eventAck:
		return "ACK"
	case eventNack:
		return "NACK"
	case eventStatus:
		return "STATUS"
	default:
		return "unknown"
	}
}

type event struct {
	kind eventKind

	// seq is the sequence number carried by ACK and NACK events
	seq uint8
}

// eventQueue is a FIFO in which each kind is queued at most once.
// It is shared with timer callbacks and carries its own lock.
type eventQueue struct {
	mu      sync.Mutex
	order   [numEvents]eventKind
	n       int
	pending [numEvents]bool
	seq     [numEvents]uint8
}

// push queues kind unless it is already queued.
func (q *eventQueue) push(kind eventKind) {
	q.mu.Lock()
	q.pushLocked(kind)
	q.mu.Unlock()
}

// pushSeq records seq for kind and queues it. A queued event keeps its
// position but carries the newest sequence number.
func (q *eventQueue) pushSeq(kind eventKind, seq uint8) {
	q.mu.Lock()
	q.seq[kind] = seq
	q.pushLocked(kind)
	q.mu.Unlock()
}

func (q *eventQueue) pushLocked(kind eventKind) {
	if q.pending[kind] {
		return
	}
	q.pending[kind] = true
	q.order[q.n] = kind
	q.n++
}

// pop removes the oldest event.
func (q *eventQueue) pop() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.n == 0 {
		return event{}, false
	}
	kind := q.order[0]
	copy(q.order[:], q.order[1:q.n])
	q.n--
	q.pending[kind] = false
	return event{kind: kind, seq: q.seq[kind]}, true
}

// cancel removes kind if it is queued.
func (q *eventQueue) cancel(kind eventKind) {
	q.mu.Lock()
	q.cancelLocked(kind)
	q.mu.Unlock()
}

func (q *eventQueue) cancelLocked(kind eventKind) {
	if !q.pending[kind] {
		return
	}
	for i := 0; i < q.n; i++ {
		if q.order[i] == kind {
			copy(q.order[i:], q.order[i+1:q.n])
			q.n--
			break
		}
	}
	q.pending[kind] = false
}

// queued reports whether kind is waiting.
func (q *eventQueue) queued(kind eventKind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending[kind]
}

// len returns the number of queued events.
func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *eventQueue) reset() {
	q.mu.Lock()
	q.n = 0
	q.pending = [numEvents]bool{}
	q.seq = [numEvents]uint8{}
	q.mu.Unlock()
}

// retransmitTimeout cancels a queued data event so the retransmit runs first.
func (q *eventQueue) retransmitTimeout() {
	q.mu.Lock()
	q.cancelLocked(eventData)
	q.pushLocked(eventRetransmit)
	q.mu.Unlock()
}
