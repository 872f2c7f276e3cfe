package link

import (
	"time"

	"go.uber.org/zap"
)

// notifyHost keeps the interrupt line asserted while anything waits to be
// clocked out. A line left low for longer than PulseThreshold is pulsed so an
// edge-triggered host does not miss it.
func (t *Transport) notifyHost() {
	if t.tx.next == nil && t.tx.current == nil && t.logs.used == 0 {
		return
	}

	now := t.clock.Now()
	if t.line.High() {
		t.assert(now)
		return
	}

	if now.Sub(t.lastAssert) > t.cfg.PulseThreshold {
		t.deassert()
		if t.cfg.PulseWidth > 0 {
			t.clock.Sleep(t.cfg.PulseWidth)
		}
		t.assert(t.clock.Now())
	}
}

// assert drives the line low no sooner than BackToBackDelay after the last
// transfer or assert, arming a timer when that moment has not come yet.
func (t *Transport) assert(now time.Time) {
	if t.assertTimer != nil {
		return
	}

	last := t.lastAssert
	if t.lastXferDone.After(last) {
		last = t.lastXferDone
	}
	at := last.Add(t.cfg.BackToBackDelay)

	if now.After(at) {
		t.assertNow(now)
		return
	}

	gen := t.assertGen
	t.assertTimer = t.clock.AfterFunc(at.Sub(now), func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.closed || gen != t.assertGen {
			return
		}
		t.assertTimer = nil
		t.assertNow(t.clock.Now())
	})
}

func (t *Transport) assertNow(now time.Time) {
	t.setLine(false)
	t.lastAssert = now
}

func (t *Transport) deassert() {
	t.stopAssertTimer()
	t.setLine(true)
}

func (t *Transport) stopAssertTimer() {
	t.assertGen++
	if t.assertTimer != nil {
		t.assertTimer.Stop()
		t.assertTimer = nil
	}
}

func (t *Transport) setLine(high bool) {
	if err := t.line.Set(high); err != nil {
		t.log.Error("set interrupt line", zap.Bool("high", high), zap.Error(err))
	}
}
