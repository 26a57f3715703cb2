// Package throttle limits repeated failed login attempts per client
package throttle

import (
	"sync"
	"time"

	"github.com/mcoot/cardroom/internal/dependencies/clock"
)

// Config holds throttle settings
type Config struct {
	Window      time.Duration
	MaxFailures int
}

// DefaultConfig allows 10 failures per rolling minute
func DefaultConfig() Config {
	return Config{
		Window:      60 * time.Second,
		MaxFailures: 10,
	}
}

// Throttle tracks recent failures per client key in a sliding window
type Throttle struct {
	cfg   Config
	clock clock.Clock

	mu        sync.Mutex
	clients   map[string]*failures
	lastPrune time.Time
}

// failures is a fixed-size ring of failure times, oldest at head
type failures struct {
	times []time.Time
	head  int
	count int
}

// New creates a Throttle
func New(cfg Config, clk clock.Clock) *Throttle {
	defaults := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaults.MaxFailures
	}
	return &Throttle{
		cfg:     cfg,
		clock:   clk,
		clients: make(map[string]*failures),
	}
}

// Window returns the sliding window length
func (t *Throttle) Window() time.Duration {
	return t.cfg.Window
}

// Allow reports whether key may attempt another login
func (t *Throttle) Allow(key string) bool {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pruneLocked(now)
	f, ok := t.clients[key]
	if !ok {
		return true
	}
	f.expire(now.Add(-t.cfg.Window))
	return f.count < t.cfg.MaxFailures
}

// RecordFailure notes a failed attempt by key
func (t *Throttle) RecordFailure(key string) {
	now := t.clock.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.clients[key]
	if !ok {
		f = &failures{times: make([]time.Time, t.cfg.MaxFailures)}
		t.clients[key] = f
	}
	f.expire(now.Add(-t.cfg.Window))
	f.push(now)
}

// Reset forgets key's failures
func (t *Throttle) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.clients, key)
}

// Tracked returns the number of clients with recorded failures
func (t *Throttle) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// pruneLocked drops clients whose failures have all aged out. It runs at most
// once per window.
func (t *Throttle) pruneLocked(now time.Time) {
	if now.Sub(t.lastPrune) < t.cfg.Window {
		return
	}
	t.lastPrune = now
	cutoff := now.Add(-t.cfg.Window)
	for key, f := range t.clients {
		f.expire(cutoff)
		if f.count == 0 {
			delete(t.clients, key)
		}
	}
}

func (f *failures) expire(cutoff time.Time) {
	for f.count > 0 && !f.times[f.head].After(cutoff) {
		f.head = (f.head + 1) % len(f.times)
		f.count--
	}
}

// push records at, overwriting the oldest entry when full
func (f *failures) push(at time.Time) {
	idx := (f.head + f.count) % len(f.times)
	f.times[idx] = at
	if f.count < len(f.times) {
		f.count++
		return
	}
	f.head = (f.head + 1) % len(f.times)
}
