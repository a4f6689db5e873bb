// Package ratelimiter implements per-client sliding-window admission
// control for inbound HTTP requests.
//
// Each client key (typically a source IP) maps to the timestamps of its
// recently accepted requests. A request is admitted while fewer than
// MaxRequests timestamps fall inside the trailing window; otherwise the
// caller is expected to respond with 429 and a Retry-After header derived
// from RetryAfter.
package ratelimiter
