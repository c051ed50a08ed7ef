package geocode

import (
	"context"
	"strings"
	"sync"
	"time"
)

// SuggestFunc fetches suggestions for a settled query.
type SuggestFunc func(ctx context.Context, query string) []Place

// Debouncer turns a stream of keystrokes into at most one suggestion
// request per pause in typing. Every Input bumps a sequence number; a
// request only fires, and its result is only emitted, while its sequence
// is still the newest. A slow response for an old query can therefore
// never overwrite suggestions for a newer one.
type Debouncer struct {
	ctx     context.Context
	delay   time.Duration
	suggest SuggestFunc
	emit    func([]Place)

	mu     sync.Mutex
	timer  *time.Timer
	seq    uint64
	closed bool
}

func NewDebouncer(ctx context.Context, delay time.Duration, suggest SuggestFunc, emit func([]Place)) *Debouncer {
	return &Debouncer{ctx: ctx, delay: delay, suggest: suggest, emit: emit}
}

// Input records the current text of the search box.
func (d *Debouncer) Input(query string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
	seq := d.seq

	if strings.TrimSpace(query) == "" {
		d.mu.Unlock()
		d.emit([]Place{})
		return
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq, query) })
	d.mu.Unlock()
}

// Close stops any pending request; later results are discarded.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire(seq uint64, query string) {
	if !d.current(seq) {
		return
	}
	places := d.suggest(d.ctx, query)
	if !d.current(seq) {
		return
	}
	d.emit(places)
}

func (d *Debouncer) current(seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed && seq == d.seq
}
