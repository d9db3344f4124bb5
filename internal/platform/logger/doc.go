// Package logger provides structured logging functionality for the application
// using Go's standard library log/slog package. It builds the process-wide
// JSON logger and carries request- or operation-scoped loggers in a context.
package logger
