package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DebounceKey identifies one command in one chat.
type DebounceKey struct {
	ChatID  int64
	Command string
}

// Debouncer keeps one single-token bucket per (chat, command) pair. A bucket
// refills once per window, so at most one command per window is accepted.
// Entries are never evicted; the key space is bounded by the chats and
// commands actually seen.
type Debouncer struct {
	mu     sync.Mutex
	limits map[DebounceKey]*debounceEntry
	now    func() time.Time
}

type debounceEntry struct {
	limiter  *rate.Limiter
	accepted time.Time
}

func NewDebouncer(now func() time.Time) *Debouncer {
	if now == nil {
		now = time.Now
	}
	return &Debouncer{
		limits: make(map[DebounceKey]*debounceEntry, 64),
		now:    now,
	}
}

func debounceLimit(window time.Duration) rate.Limit {
	if window <= 0 {
		return rate.Inf
	}
	return rate.Every(window)
}

// Allow reports whether the command may run. It records the acceptance time
// when it returns true. A window <= 0 always allows.
func (d *Debouncer) Allow(key DebounceKey, window time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	limit := debounceLimit(window)
	e, ok := d.limits[key]
	if !ok {
		e = &debounceEntry{limiter: rate.NewLimiter(limit, 1)}
		d.limits[key] = e
	} else if e.limiter.Limit() != limit {
		// A fresh bucket is full; the acceptance time below still applies.
		e.limiter = rate.NewLimiter(limit, 1)
	}

	// The bucket is full again at exactly accepted+window; that call is
	// still inside the window.
	if ok && window > 0 && now.Sub(e.accepted) <= window {
		return false
	}
	if !e.limiter.AllowN(now, 1) {
		return false
	}
	e.accepted = now
	return true
}

// Remaining returns how long until key is accepted again, or 0.
func (d *Debouncer) Remaining(key DebounceKey, window time.Duration) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.limits[key]
	if !ok || window <= 0 {
		return 0
	}
	left := window - d.now().Sub(e.accepted)
	if left < 0 {
		return 0
	}
	return left
}

func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.limits)
}
