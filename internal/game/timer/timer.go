// Package timer provides named, cancellable deadline timers for round
// state machines. Every delay in the round engine goes through this
// package so tearing down a round interrupts any in-flight wait instead
// of leaving a callback to fire into torn-down state.
package timer

import (
	"context"
	"sync"
	"time"
)

// Options configures an armed timer.
type Options struct {
	// Label names the timer for logs and deadline rendering.
	Label string
	// WarningLead fires OnWarning this long before the deadline. Zero
	// disables the warning.
	WarningLead time.Duration
	// OnWarning runs once at deadline minus WarningLead unless the timer
	// fired or was cleared first.
	OnWarning func()
}

// Timer is a single armed deadline. It fires at most once; Clear before
// expiry guarantees the fire callback never runs.
type Timer struct {
	mu       sync.Mutex
	fire     *time.Timer
	warn     *time.Timer
	fired    bool
	cleared  bool
	label    string
	deadline time.Time
}

// Start arms a timer that runs onFire after duration. The returned timer
// carries the absolute deadline for rendering and persistence.
func Start(duration time.Duration, onFire func(), opts Options) *Timer {
	t := &Timer{
		label:    opts.Label,
		deadline: time.Now().UTC().Add(duration),
	}

	// Both timers are assigned under the mutex so a callback from a very
	// short duration cannot observe a partially armed timer.
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fire = time.AfterFunc(duration, func() {
		t.mu.Lock()
		if t.cleared || t.fired {
			t.mu.Unlock()
			return
		}
		t.fired = true
		if t.warn != nil {
			t.warn.Stop()
		}
		t.mu.Unlock()
		if onFire != nil {
			onFire()
		}
	})

	if opts.WarningLead > 0 && opts.WarningLead < duration && opts.OnWarning != nil {
		onWarning := opts.OnWarning
		t.warn = time.AfterFunc(duration-opts.WarningLead, func() {
			t.mu.Lock()
			if t.cleared || t.fired {
				t.mu.Unlock()
				return
			}
			t.mu.Unlock()
			onWarning()
		})
	}

	return t
}

// Clear cancels the timer and its warning. It reports whether the fire
// callback was prevented; false means the timer already fired.
func (t *Timer) Clear() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired {
		return false
	}
	if t.cleared {
		return true
	}
	t.cleared = true
	if t.fire != nil {
		t.fire.Stop()
	}
	if t.warn != nil {
		t.warn.Stop()
	}
	return true
}

// Deadline returns the absolute time the timer fires.
func (t *Timer) Deadline() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.deadline
}

// Label returns the timer's human-readable name.
func (t *Timer) Label() string {
	if t == nil {
		return ""
	}
	return t.label
}

// Sleep waits for the duration or until ctx is cancelled, whichever comes
// first. It is the only sanctioned "wait N milliseconds" primitive in the
// round engine.
func Sleep(ctx context.Context, duration time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if duration <= 0 {
		return nil
	}
	t := time.NewTimer(duration)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
