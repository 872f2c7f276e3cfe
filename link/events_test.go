package link

import "testing"

func TestEventQueue(t *testing.T) {
	var q eventQueue

	q.push(eventStatus)
	q.pushSeq(eventAck, 1)
	q.push(eventStatus)
	q.pushSeq(eventAck, 2)
	q.push(eventData)

	if got := q.len(); got != 3 {
		t.Fatalf("len() = %d, want 3", got)
	}

	want := []event{
		{kind: eventStatus},
		{kind: eventAck, seq: 2},
		{kind: eventData},
	}
	for i, w := range want {
		ev, ok := q.pop()
		if !ok {
			t.Fatalf("pop() %d: queue empty", i)
		}
		if ev.kind != w.kind || ev.seq != w.seq {
			t.Errorf("pop() %d = %v/%d, want %v/%d", i, ev.kind, ev.seq, w.kind, w.seq)
		}
	}

	if _, ok := q.pop(); ok {
		t.Error("pop() on empty queue returned an event")
	}
}

func TestEventQueueCancel(t *testing.T) {
	var q eventQueue
	q.push(eventAck)
	q.push(eventData)
	q.push(eventNack)

	q.cancel(eventData)
	q.cancel(eventStatus)

	if q.queued(eventData) {
		t.Error("cancelled event still queued")
	}

	for _, want := range []eventKind{eventAck, eventNack} {
		ev, ok := q.pop()
		if !ok || ev.kind != want {
			t.Fatalf("pop() = %v, want %v", ev.kind, want)
		}
	}
}

func TestRetransmitTimeout(t *testing.T) {
	var q eventQueue
	q.push(eventData)
	q.push(eventAck)

	q.retransmitTimeout()
	q.retransmitTimeout()

	if q.queued(eventData) {
		t.Error("retransmit should replace a queued data event")
	}
	if got := q.len(); got != 2 {
		t.Fatalf("len() = %d, want 2", got)
	}

	q.reset()
	if got := q.len(); got != 0 {
		t.Errorf("len() after reset = %d, want 0", got)
	}
	if q.queued(eventRetransmit) {
		t.Error("reset left an event queued")
	}
}

func TestEventKindString(t *testing.T) {
	tests := []struct {
		kind eventKind
		want string
	}{
		{eventData, "DF"},
		{eventRetransmit, "DF retry"},
		{eventAck, "ACK"},
		{eventNack, "NACK"},
		{eventStatus, "STATUS"},
		{numEvents, "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
