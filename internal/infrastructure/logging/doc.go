// Package logging provides structured logging for the Gray Logic component runtime.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the runtime.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("binding active", "binding", key)
//	logger.Error("store save failed", "error", err)
//
// Packages that log accept a small Logger interface (Debug/Info/Warn/Error)
// so *logging.Logger can be injected without import cycles.
package logging
