// Package circuitbreaker implements the circuit breaker pattern for calls
// to external dependencies such as the vector store and relational store.
//
// A circuit breaker prevents cascading failures by temporarily rejecting
// calls to a failing dependency. It has three states:
//
//   - CLOSED: Normal operation, calls pass through
//   - OPEN: Dependency failing, calls rejected with *OpenError
//   - HALF-OPEN: Testing if the dependency recovered
//
// Usage:
//
//	registry, _ := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig())
//	cb := registry.Get("vector_store")
//	err := cb.Do(func() error {
//	    return store.Upsert(ctx, batch)
//	})
//	var openErr *circuitbreaker.OpenError
//	if errors.As(err, &openErr) {
//	    // Dependency unavailable, fall back or shed load
//	}
package circuitbreaker
