// Package logging provides structured logging for the GPIO remote runtime.
//
// It wraps log/slog so every entry carries the same default fields
// (service, version) and honours the configured level and format.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("device connected", "endpoint", "10.0.0.12:8080")
//
// Never log secrets such as the JWT secret or MQTT password.
package logging
