package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking calls
	StateHalfOpen              // Admitting trial calls
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config holds the thresholds governing a breaker's state machine.
type Config struct {
	FailureThreshold int           // consecutive failures before opening
	Timeout          time.Duration // how long to stay open before a trial
	SuccessThreshold int           // consecutive trial successes before closing
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		SuccessThreshold: 2,
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.FailureThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.SuccessThreshold, validation.Required, validation.Min(1)),
	)
}

// OpenError is returned when a call is rejected because the breaker is open.
// The wrapped operation was never invoked. RetryAfter estimates how long
// until the breaker will admit a trial call.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open, retry after %s", e.Name, e.RetryAfter)
}

// CircuitBreaker guards calls to a single external dependency. It starts
// closed, opens after FailureThreshold consecutive failures, and admits
// trial calls again once Timeout has elapsed. The mutex covers only state
// bookkeeping; the wrapped operation runs with the lock released, so
// concurrent callers may run operations (including half-open trials) in
// parallel.
type CircuitBreaker struct {
	name string
	cfg  Config

	mutex       sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
	openedAt    time.Time
}

func New(name string, cfg Config) (*CircuitBreaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("circuit breaker %q: %w", name, err)
	}

	return &CircuitBreaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
	}, nil
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Do invokes op if the breaker admits the call. When the breaker is open
// and the timeout has not elapsed, op is not invoked and an *OpenError is
// returned. The operation's own error is recorded and passed through
// unchanged; the breaker never retries.
func (cb *CircuitBreaker) Do(op func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := op()
	cb.record(err)
	return err
}

// allow decides admission and performs the lazy OPEN -> HALF-OPEN
// transition. The first call at or after the timeout is the trial call.
func (cb *CircuitBreaker) allow() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateOpen:
		elapsed := time.Since(cb.openedAt)
		if elapsed < cb.cfg.Timeout {
			return &OpenError{Name: cb.name, RetryAfter: cb.cfg.Timeout - elapsed}
		}
		cb.state = StateHalfOpen
		cb.successes = 0
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if err != nil {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.open()
		}
	case StateHalfOpen:
		// A single failed trial re-opens the breaker.
		cb.open()
	case StateOpen:
		// An operation admitted earlier finished after the breaker
		// already re-opened. Nothing left to transition.
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
		}
	case StateOpen:
		// Stale outcome from before the breaker opened; ignore.
	}
}

func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.successes = 0
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Stats is a point-in-time snapshot of a breaker's counters.
type Stats struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Failures    int       `json:"failure_count"`
	Successes   int       `json:"success_count"`
	LastFailure time.Time `json:"last_failure"`
}

func (cb *CircuitBreaker) Stats() Stats {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return Stats{
		Name:        cb.name,
		State:       cb.state.String(),
		Failures:    cb.failures,
		Successes:   cb.successes,
		LastFailure: cb.lastFailure,
	}
}

// Call runs an operation that produces a value through the breaker. On
// rejection the zero value is returned along with the *OpenError.
func Call[T any](cb *CircuitBreaker, op func() (T, error)) (T, error) {
	var result T
	err := cb.Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	})
	return result, err
}
