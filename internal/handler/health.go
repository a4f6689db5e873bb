package handler

import (
	"encoding/json"
	"net/http"

	"github.com/stavrosp/flowguard/internal/backpressure"
	"github.com/stavrosp/flowguard/internal/circuitbreaker"
	"github.com/stavrosp/flowguard/internal/ratelimiter"
)

type healthResponse struct {
	Status       string                          `json:"status"`
	Breakers     map[string]circuitbreaker.Stats `json:"breakers"`
	Backpressure backpressure.Status             `json:"backpressure"`
	RateLimiter  ratelimiter.Stats               `json:"rate_limiter"`
}

// Health reports the reliability layer's view of the system: per-breaker
// state, the latest backpressure status, and rate limiter occupancy.
// Status degrades to "degraded" when processing is paused or any breaker
// is open.
func Health(
	registry *circuitbreaker.Registry,
	controller *backpressure.Controller,
	limiter *ratelimiter.RateLimiter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:       "ok",
			Breakers:     registry.Stats(),
			Backpressure: controller.LastStatus(),
			RateLimiter:  limiter.Stats(),
		}

		if resp.Backpressure.Paused {
			resp.Status = "degraded"
		}
		for _, stats := range resp.Breakers {
			if stats.State == "OPEN" {
				resp.Status = "degraded"
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
