// Package logger provides structured logging with configurable log
// levels. It wraps the standard log/slog package: JSON output in prod,
// text elsewhere, with service and environment attributes on every line.
package logger
