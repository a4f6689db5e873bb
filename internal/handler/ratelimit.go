package handler

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stavrosp/flowguard/internal/metrics"
	"github.com/stavrosp/flowguard/internal/ratelimiter"
)

// RateLimit gates every inbound request through the sliding-window
// limiter, keyed by client IP. A limited client gets 429 with a
// Retry-After header; only admitted requests reach the wrapped handler.
func RateLimit(
	limiter *ratelimiter.RateLimiter,
	collector *metrics.Collector,
	logger *slog.Logger,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := extractClientIP(r)

			if !limiter.Allow(clientKey) {
				retryAfter := limiter.RetryAfter(clientKey)

				logger.Warn("Request rate limited",
					slog.String("client", clientKey),
					slog.String("path", r.URL.Path),
					slog.Duration("retry_after", retryAfter))
				emitEvent(collector, metrics.Event{
					Type:      metrics.EventRequestLimited,
					Timestamp: time.Now(),
					ClientKey: clientKey,
				})

				w.Header().Set("Retry-After", formatRetryAfter(retryAfter))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			emitEvent(collector, metrics.Event{
				Type:      metrics.EventRequestAllowed,
				Timestamp: time.Now(),
				ClientKey: clientKey,
			})

			next.ServeHTTP(w, r)
		})
	}
}

// formatRetryAfter renders a whole number of seconds, rounded up so the
// client never retries early. Retry-After is never negative.
func formatRetryAfter(d time.Duration) string {
	seconds := int64(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func emitEvent(collector *metrics.Collector, event metrics.Event) {
	if collector == nil {
		return
	}
	collector.Emit(event)
}
