package scheduler

import (
	"sync"
	"time"

	"github.com/pedrocostadev/ai-notebook-sub000/core"
)

// DefaultProgressWindow coalesces progress updates arriving closer together than this.
const DefaultProgressWindow = 100 * time.Millisecond

// Progress reports how far a job has advanced.
type Progress struct {
	DocumentId core.ID
	ChapterId  core.ID
	JobId      core.ID
	Stage      string
	Processed  int
	Total      int
	Percent    int
}

// ProgressListener receives progress events. It is called synchronously
// and must not block.
type ProgressListener func(Progress)

func percentOf(processed, total int) int {
	if total <= 0 {
		return 100
	}
	if processed >= total {
		return 100
	}
	if processed <= 0 {
		return 0
	}
	return processed * 100 / total
}

// debouncer forwards progress to a listener, passing 0% and 100% through
// immediately and collapsing anything else within window to the latest value.
type debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	emit    ProgressListener
	last    time.Time
	pending *Progress
	timer   *time.Timer
	closed  bool
}

func newDebouncer(window time.Duration, emit ProgressListener) *debouncer {
	return &debouncer{window: window, emit: emit}
}

func (d *debouncer) update(p Progress) {
	if d == nil || d.emit == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	now := time.Now()
	if p.Percent <= 0 || p.Percent >= 100 {
		d.stopTimer()
		d.pending = nil
		d.last = now
		d.emit(p)
		return
	}

	if d.timer == nil && now.Sub(d.last) >= d.window {
		d.last = now
		d.emit(p)
		return
	}

	d.pending = &p
	if d.timer == nil {
		d.timer = time.AfterFunc(d.window-now.Sub(d.last), d.flush)
	}
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timer = nil
	if d.closed || d.pending == nil {
		return
	}
	d.last = time.Now()
	p := *d.pending
	d.pending = nil
	d.emit(p)
}

// close emits any coalesced update and stops further delivery.
func (d *debouncer) close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimer()
	if d.pending != nil && d.emit != nil {
		d.emit(*d.pending)
		d.pending = nil
	}
	d.closed = true
}

// stopTimer must be called with the lock held.
func (d *debouncer) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
