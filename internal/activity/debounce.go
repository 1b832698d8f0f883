package activity

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// debouncer runs fn once delay has passed without another trigger. It holds
// at most one pending timer; each trigger stops and replaces it.
type debouncer struct {
	clock quartz.Clock
	delay time.Duration
	fn    func()
	tag   string

	mu      sync.Mutex
	timer   *quartz.Timer
	gen     uint64
	stopped bool
}

func newDebouncer(clock quartz.Clock, delay time.Duration, tag string, fn func()) *debouncer {
	return &debouncer{clock: clock, delay: delay, fn: fn, tag: tag}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) }, "debounce", d.tag)
}

// fire runs fn unless the timer that called it was superseded or stopped
// while its callback was already in flight.
func (d *debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// pending reports whether a run is scheduled.
func (d *debouncer) pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// stop cancels any pending run. Later triggers are ignored.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
