// Package handler implements the HTTP surface of the reliability layer:
// the rate-limit middleware gating every inbound request and the health
// endpoint exposing breaker, backpressure, and limiter snapshots.
package handler
