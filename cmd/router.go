package main

import (
	"net/http"

	"github.com/stavrosp/flowguard/internal/metrics"
)

func setupRouter(healthHandler http.HandlerFunc, collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/metrics", collector.Handler())

	return mux
}
