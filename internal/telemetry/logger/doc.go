// Package logger provides structured logging for node processes.
//
// This package wraps log/slog for structured logging:
//
//   - logger.go: Logger interface, slog-backed implementation, level control
//   - context.go: Context propagation for loggers and RPC correlation ids
//   - redact.go: Sensitive key-based redaction
//
// Features:
//
//   - JSON and text output formats
//   - Dynamic log level filtering
//   - Context propagation for per-request log correlation
package logger
