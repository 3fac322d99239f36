package session

import "time"

// Debouncer holds at most one pending deferred action. Scheduling replaces
// the pending action. It is not safe for concurrent use: the owning
// goroutine calls every method, and fire only posts back to it.
type Debouncer struct {
	delay time.Duration
	timer *time.Timer
	seq   uint64
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule cancels any pending action and arranges for fire to run with the
// new schedule's sequence number once the delay elapses.
func (d *Debouncer) Schedule(fire func(seq uint64)) uint64 {
	d.Cancel()
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() { fire(seq) })
	return seq
}

// Cancel drops the pending action, if any.
func (d *Debouncer) Cancel() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether an action is scheduled and not yet claimed.
func (d *Debouncer) Pending() bool {
	return d.timer != nil
}

// Claim reports whether seq is the live schedule and, if so, marks it
// consumed. A fire that raced with Schedule or Cancel is rejected.
func (d *Debouncer) Claim(seq uint64) bool {
	if d.timer == nil || seq != d.seq {
		return false
	}
	d.timer = nil
	return true
}
