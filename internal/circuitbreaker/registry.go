package circuitbreaker

import (
	"sync"
)

// Registry is a named collection of breakers sharing a default
// configuration. Breakers are created lazily on first access and live for
// the process lifetime; the name space is bounded by the number of
// distinct dependencies, so there is no eviction.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	defaults Config
}

func NewRegistry(defaults Config) (*Registry, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}

	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		defaults: defaults,
	}, nil
}

// Get returns the breaker for name, creating it with the registry's
// default configuration on first access. Creation is idempotent under
// concurrent first access.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	cb = &CircuitBreaker{
		name:  name,
		cfg:   r.defaults,
		state: StateClosed,
	}
	r.breakers[name] = cb
	return cb
}

func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}

// Stats returns a point-in-time snapshot of every registered breaker.
func (r *Registry) Stats() map[string]Stats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]Stats, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.Stats()
	}
	return stats
}
