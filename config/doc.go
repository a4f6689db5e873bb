// Package config handles loading and parsing of configuration from YAML
// files and environment variables. It defines the application
// configuration structure covering the server, logging, circuit breaker
// thresholds, rate limiting, backpressure sources, and the processing
// pipeline.
package config
