package ratelimiter

import (
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config bounds how many requests a single client may issue within a
// trailing window.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRequests: 60,
		Window:      60 * time.Second,
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxRequests, validation.Required, validation.Min(1)),
		validation.Field(&c.Window, validation.Required, validation.Min(time.Duration(1))),
	)
}

// RateLimiter admits requests per client using a sliding window over the
// timestamps of recently accepted requests. Entries older than the window
// are pruned lazily on access; an idle client's slice lingers until its
// next request, which is acceptable because the client key space is
// bounded (network addresses).
type RateLimiter struct {
	mutex   sync.Mutex
	clients map[string][]time.Time
	cfg     Config
}

func New(cfg Config) (*RateLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &RateLimiter{
		clients: make(map[string][]time.Time),
		cfg:     cfg,
	}, nil
}

// Allow reports whether a request from clientKey is admitted. Accepted
// requests are recorded; rejected attempts are not, so a rejected client
// does not extend its own penalty.
func (rl *RateLimiter) Allow(clientKey string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	recent := rl.prune(clientKey, now)

	if len(recent) >= rl.cfg.MaxRequests {
		return false
	}

	rl.clients[clientKey] = append(recent, now)
	return true
}

// RetryAfter returns how long clientKey must wait before its next request
// can be admitted. It is 0 whenever the client is currently under the
// limit, and never exceeds the window.
func (rl *RateLimiter) RetryAfter(clientKey string) time.Duration {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	recent := rl.prune(clientKey, now)

	if len(recent) < rl.cfg.MaxRequests {
		return 0
	}

	// The oldest in-window entry expires first.
	wait := rl.cfg.Window - now.Sub(recent[0])
	if wait < 0 {
		return 0
	}
	if wait > rl.cfg.Window {
		return rl.cfg.Window
	}
	return wait
}

// prune drops entries older than the window and returns what remains.
// Callers hold the mutex. A client whose window emptied is removed from
// the map entirely.
func (rl *RateLimiter) prune(clientKey string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.cfg.Window)

	entries := rl.clients[clientKey]
	idx := 0
	for idx < len(entries) && !entries[idx].After(cutoff) {
		idx++
	}

	if idx == 0 {
		return entries
	}

	remaining := entries[idx:]
	if len(remaining) == 0 {
		delete(rl.clients, clientKey)
		return nil
	}

	rl.clients[clientKey] = remaining
	return remaining
}

// Stats is a point-in-time view of the limiter's tracked state.
type Stats struct {
	ActiveClients   int `json:"active_clients"`
	TrackedRequests int `json:"tracked_requests"`
}

func (rl *RateLimiter) Stats() Stats {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	total := 0
	for _, entries := range rl.clients {
		total += len(entries)
	}

	return Stats{
		ActiveClients:   len(rl.clients),
		TrackedRequests: total,
	}
}
