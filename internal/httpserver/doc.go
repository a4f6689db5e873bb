// Package httpserver wraps the standard library HTTP server with address
// validation and graceful shutdown for the service's health and metrics
// surface.
package httpserver
